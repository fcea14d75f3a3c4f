package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    insurance_id TEXT,
    diagnosis_code TEXT NOT NULL,
    procedure_code TEXT NOT NULL,
    patient_age INTEGER NOT NULL,
    patient_gender TEXT,
    patient_location TEXT,
    provider_location TEXT,
    hospital_name TEXT,
    amount REAL NOT NULL,
    claim_date TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_provider ON claims(provider_id, claim_date);
CREATE INDEX IF NOT EXISTS idx_claims_patient ON claims(patient_id, claim_date);
`

const schemaScoreResults = `
CREATE TABLE IF NOT EXISTS score_results (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    provider_id TEXT,
    model TEXT NOT NULL,
    label INTEGER NOT NULL,
    probability REAL NOT NULL,
    risk_level TEXT NOT NULL,
    reasons TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_score_results_claim ON score_results(claim_id);
CREATE INDEX IF NOT EXISTS idx_score_results_probability ON score_results(probability);
CREATE INDEX IF NOT EXISTS idx_score_results_created ON score_results(created_at);
`

const schemaModelArtifacts = `
CREATE TABLE IF NOT EXISTS model_artifacts (
    id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    version INTEGER NOT NULL,
    blob BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_artifacts_model ON model_artifacts(model, version);
`

const schemaMetricsSnapshots = `
CREATE TABLE IF NOT EXISTS metrics_snapshots (
    model TEXT NOT NULL,
    accuracy REAL NOT NULL,
    precision_pos REAL NOT NULL,
    recall_pos REAL NOT NULL,
    f1 REAL NOT NULL,
    roc_auc REAL NOT NULL,
    confusion TEXT NOT NULL,
    samples INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_snapshots_model ON metrics_snapshots(model, created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaScoreResults,
		schemaModelArtifacts,
		schemaMetricsSnapshots,
		schemaRuleConfigs,
	}
}
