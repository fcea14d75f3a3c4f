package domain

import "time"

// Assessment statuses
const (
	StatusAlert   = "ALRT"
	StatusNoAlert = "NALT"
)

// Assessment is the final decision for a single claim, combining the
// ensemble probability with screening rule and fraud scheme results.
type Assessment struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	Timestamp time.Time `json:"timestamp"`

	// ALRT or NALT
	Status string `json:"status"`

	// Final fraud score in [0, 1]
	Score     float64   `json:"score"`
	RiskLevel RiskLevel `json:"riskLevel"`

	RuleResults   []RuleResult   `json:"ruleResults,omitempty"`
	SchemeResults []SchemeResult `json:"schemeResults,omitempty"`
	Reasons       []string       `json:"reasons,omitempty"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata carries processing diagnostics.
type AssessmentMetadata struct {
	TraceID          string `json:"traceId,omitempty"`
	RulesEvaluated   int    `json:"rulesEvaluated"`
	SchemesEvaluated int    `json:"schemesEvaluated"`
	DecisionMs       int64  `json:"decisionMs"`
	TotalMs          int64  `json:"totalMs"`
	EngineVersion    string `json:"engineVersion"`
}

// BatchReport aggregates assessments over a batch of claims.
type BatchReport struct {
	Claims        int               `json:"claims"`
	Flagged       int               `json:"flagged"`
	FraudRate     float64           `json:"fraudRate"`
	TotalAmount   float64           `json:"totalAmount"`
	FlaggedAmount float64           `json:"flaggedAmount"`
	ByRisk        map[RiskLevel]int `json:"byRisk"`
	ByProvider    []ProviderSummary `json:"byProvider"`
	Assessments   []*Assessment     `json:"assessments,omitempty"`
}

// ProviderSummary aggregates batch results for a single provider.
type ProviderSummary struct {
	ProviderID      string  `json:"providerId"`
	Claims          int     `json:"claims"`
	Flagged         int     `json:"flagged"`
	MeanProbability float64 `json:"meanProbability"`
	TotalAmount     float64 `json:"totalAmount"`
}
