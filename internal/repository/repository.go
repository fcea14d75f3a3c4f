// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim stores a single claim.
func (r *SQLRepository) SaveClaim(ctx context.Context, claim *domain.Claim) error {
	if claim == nil || claim.ID == "" {
		return fmt.Errorf("%w: claim id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO claims (
			id, patient_id, provider_id, insurance_id,
			diagnosis_code, procedure_code, patient_age, patient_gender,
			patient_location, provider_location, hospital_name,
			amount, claim_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			diagnosis_code = excluded.diagnosis_code,
			procedure_code = excluded.procedure_code
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.PatientID, claim.ProviderID, claim.InsuranceID,
		claim.DiagnosisCode, claim.ProcedureCode, claim.PatientAge, claim.PatientGender,
		claim.PatientLocation, claim.ProviderLocation, claim.HospitalName,
		claim.Amount, claim.ClaimDate, claim.CreatedAt,
	)
	return err
}

// SaveClaims stores a batch of claims in one transaction.
func (r *SQLRepository) SaveClaims(ctx context.Context, claims []*domain.Claim) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO claims (
			id, patient_id, provider_id, insurance_id,
			diagnosis_code, procedure_code, patient_age, patient_gender,
			patient_location, provider_location, hospital_name,
			amount, claim_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, claim := range claims {
		if claim.ID == "" {
			return fmt.Errorf("%w: claim id is required", ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx,
			claim.ID, claim.PatientID, claim.ProviderID, claim.InsuranceID,
			claim.DiagnosisCode, claim.ProcedureCode, claim.PatientAge, claim.PatientGender,
			claim.PatientLocation, claim.ProviderLocation, claim.HospitalName,
			claim.Amount, claim.ClaimDate, claim.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetClaim retrieves a claim by ID.
func (r *SQLRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	query := `
		SELECT id, patient_id, provider_id, insurance_id,
			   diagnosis_code, procedure_code, patient_age, patient_gender,
			   patient_location, provider_location, hospital_name,
			   amount, claim_date, created_at
		FROM claims
		WHERE id = ?
	`

	var c domain.Claim
	err := r.db.QueryRowContext(ctx, r.rebind(query), claimID).Scan(
		&c.ID, &c.PatientID, &c.ProviderID, &c.InsuranceID,
		&c.DiagnosisCode, &c.ProcedureCode, &c.PatientAge, &c.PatientGender,
		&c.PatientLocation, &c.ProviderLocation, &c.HospitalName,
		&c.Amount, &c.ClaimDate, &c.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClaimsByProvider retrieves a provider's claims since a cutoff.
func (r *SQLRepository) GetClaimsByProvider(ctx context.Context, providerID string, since time.Time) ([]*domain.Claim, error) {
	query := `
		SELECT id, patient_id, provider_id, insurance_id,
			   diagnosis_code, procedure_code, patient_age, patient_gender,
			   patient_location, provider_location, hospital_name,
			   amount, claim_date, created_at
		FROM claims
		WHERE provider_id = ? AND claim_date >= ?
		ORDER BY claim_date DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), providerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(
			&c.ID, &c.PatientID, &c.ProviderID, &c.InsuranceID,
			&c.DiagnosisCode, &c.ProcedureCode, &c.PatientAge, &c.PatientGender,
			&c.PatientLocation, &c.ProviderLocation, &c.HospitalName,
			&c.Amount, &c.ClaimDate, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		claims = append(claims, &c)
	}
	return claims, rows.Err()
}

// SaveScore stores a scoring outcome.
func (r *SQLRepository) SaveScore(ctx context.Context, score *domain.ScoreResult) error {
	if score == nil || score.ID == "" {
		return fmt.Errorf("%w: score id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(score.Reasons)

	query := `
		INSERT INTO score_results (
			id, claim_id, provider_id, model, label, probability, risk_level, reasons, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ID, score.ClaimID, score.ProviderID, score.Model,
		score.Label, score.Probability, string(score.RiskLevel),
		string(reasons), score.CreatedAt,
	)
	return err
}

// GetScore retrieves a scoring outcome by ID.
func (r *SQLRepository) GetScore(ctx context.Context, scoreID string) (*domain.ScoreResult, error) {
	query := `
		SELECT id, claim_id, provider_id, model, label, probability, risk_level, reasons, created_at
		FROM score_results
		WHERE id = ?
	`

	var s domain.ScoreResult
	var risk, reasons string
	err := r.db.QueryRowContext(ctx, r.rebind(query), scoreID).Scan(
		&s.ID, &s.ClaimID, &s.ProviderID, &s.Model,
		&s.Label, &s.Probability, &risk, &reasons, &s.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.RiskLevel = domain.RiskLevel(risk)
	if reasons != "" {
		json.Unmarshal([]byte(reasons), &s.Reasons)
	}
	return &s, nil
}

// ListHighRiskScores retrieves recent scores at or above a probability.
func (r *SQLRepository) ListHighRiskScores(ctx context.Context, minProbability float64, limit int) ([]*domain.ScoreResult, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, claim_id, provider_id, model, label, probability, risk_level, reasons, created_at
		FROM score_results
		WHERE probability >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), minProbability, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*domain.ScoreResult
	for rows.Next() {
		var s domain.ScoreResult
		var risk, reasons string
		if err := rows.Scan(
			&s.ID, &s.ClaimID, &s.ProviderID, &s.Model,
			&s.Label, &s.Probability, &risk, &reasons, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.RiskLevel = domain.RiskLevel(risk)
		if reasons != "" {
			json.Unmarshal([]byte(reasons), &s.Reasons)
		}
		scores = append(scores, &s)
	}
	return scores, rows.Err()
}

// SaveArtifact stores a serialized model, bumping its version.
func (r *SQLRepository) SaveArtifact(ctx context.Context, artifact *domain.ModelArtifact) error {
	if artifact == nil || artifact.Model == "" {
		return fmt.Errorf("%w: artifact model name is required", ErrInvalidInput)
	}
	if len(artifact.Blob) == 0 {
		return fmt.Errorf("%w: artifact blob is empty", ErrInvalidInput)
	}

	var version int
	verQuery := `SELECT COALESCE(MAX(version), 0) FROM model_artifacts WHERE model = ?`
	if err := r.db.QueryRowContext(ctx, r.rebind(verQuery), artifact.Model).Scan(&version); err != nil {
		return err
	}
	artifact.Version = version + 1
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO model_artifacts (id, model, version, blob, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		artifact.ID, artifact.Model, artifact.Version, artifact.Blob, artifact.CreatedAt,
	)
	return err
}

// GetLatestArtifact retrieves the newest serialized model by name.
func (r *SQLRepository) GetLatestArtifact(ctx context.Context, model string) (*domain.ModelArtifact, error) {
	query := `
		SELECT id, model, version, blob, created_at
		FROM model_artifacts
		WHERE model = ?
		ORDER BY version DESC
		LIMIT 1
	`

	var a domain.ModelArtifact
	err := r.db.QueryRowContext(ctx, r.rebind(query), model).Scan(
		&a.ID, &a.Model, &a.Version, &a.Blob, &a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveMetrics stores an evaluation snapshot.
func (r *SQLRepository) SaveMetrics(ctx context.Context, metrics *domain.ModelMetrics) error {
	if metrics == nil || metrics.Model == "" {
		return fmt.Errorf("%w: metrics model name is required", ErrInvalidInput)
	}

	confusion, _ := json.Marshal(metrics.Confusion)

	query := `
		INSERT INTO metrics_snapshots (
			model, accuracy, precision_pos, recall_pos, f1, roc_auc, confusion, samples, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		metrics.Model, metrics.Accuracy, metrics.Precision, metrics.Recall,
		metrics.F1, metrics.ROCAUC, string(confusion), metrics.Samples, metrics.Timestamp,
	)
	return err
}

// GetLatestMetrics retrieves the newest snapshot for a model.
func (r *SQLRepository) GetLatestMetrics(ctx context.Context, model string) (*domain.ModelMetrics, error) {
	query := `
		SELECT model, accuracy, precision_pos, recall_pos, f1, roc_auc, confusion, samples, created_at
		FROM metrics_snapshots
		WHERE model = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var m domain.ModelMetrics
	var confusion string
	err := r.db.QueryRowContext(ctx, r.rebind(query), model).Scan(
		&m.Model, &m.Accuracy, &m.Precision, &m.Recall,
		&m.F1, &m.ROCAUC, &confusion, &m.Samples, &m.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(confusion), &m.Confusion)
	return &m, nil
}

// SaveRuleConfig stores a screening rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the newest enabled version of a rule.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)
	return &cfg, nil
}

// ListRuleConfigs retrieves all active screening rules.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
