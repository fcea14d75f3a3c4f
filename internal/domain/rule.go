package domain

// RuleConfig defines a claim screening rule configuration.
// Screening rules run ahead of the models and attach reason codes to
// scored claims.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate against a claim
	Expression string `json:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleBand maps a score range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	SubRuleRef string   `json:"subRuleRef"` // e.g., ".pass", ".fail", ".review"
	Reason     string   `json:"reason"`
}

// RuleResult is the output of a screening rule evaluation.
type RuleResult struct {
	RuleID     string  `json:"ruleId"`
	ClaimID    string  `json:"claimId"`
	SubRuleRef string  `json:"subRuleRef"` // ".pass", ".fail", ".err"
	Score      float64 `json:"score"`      // The computed value
	Reason     string  `json:"reason"`
	ProcessMs  int64   `json:"processMs"` // Processing time in milliseconds
}

// Predefined rule outcomes
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeFail   = ".fail"
	RuleOutcomeReview = ".review"
	RuleOutcomeError  = ".err"
)

// FraudScheme describes a named fraud pattern as a weighted combination
// of screening rules. A scheme triggers when its weighted score meets
// the alert threshold.
type FraudScheme struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Rules          []SchemeRule `json:"rules"`
	AlertThreshold float64      `json:"alertThreshold"`
	Enabled        bool         `json:"enabled"`
}

// SchemeRule references a screening rule with its weight in the scheme.
type SchemeRule struct {
	RuleID string  `json:"ruleId"`
	Weight float64 `json:"weight"`
}

// SchemeResult is the output of a fraud scheme evaluation.
type SchemeResult struct {
	SchemeID      string             `json:"schemeId"`
	SchemeName    string             `json:"schemeName"`
	Score         float64            `json:"score"`
	Threshold     float64            `json:"threshold"`
	Triggered     bool               `json:"triggered"`
	Contributions []RuleContribution `json:"contributions"`
	ProcessMs     int64              `json:"processMs"`
}

// RuleContribution records how much a single rule added to a scheme score.
type RuleContribution struct {
	RuleID       string  `json:"ruleId"`
	RuleScore    float64 `json:"ruleScore"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}
