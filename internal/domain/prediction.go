package domain

import (
	"time"
)

// Prediction is the structured result of scoring a claim batch.
// One shape regardless of policy or requested detail; callers pick the
// fields they need.
type Prediction struct {
	ID        string       `json:"id"`
	Model     string       `json:"model"`
	Policy    VotingPolicy `json:"policy"`
	Timestamp time.Time    `json:"timestamp"`

	// Per-claim outputs, aligned with the input batch order.
	Labels        []int       `json:"labels"`
	Probabilities []float64   `json:"probabilities"`
	RiskLevels    []RiskLevel `json:"riskLevels"`

	// Per-model probability vectors keyed by model name.
	// Populated only for ensemble predictions.
	ModelProbabilities map[string][]float64 `json:"modelProbabilities,omitempty"`

	// Screening rule hits per claim index.
	RuleHits map[int][]RuleResult `json:"ruleHits,omitempty"`

	// Batch summary for alerting dashboards.
	Summary PredictionSummary `json:"summary"`
}

// PredictionSummary aggregates a scored batch.
type PredictionSummary struct {
	Claims          int     `json:"claims"`
	Flagged         int     `json:"flagged"`
	FraudRate       float64 `json:"fraudRate"`
	MeanProbability float64 `json:"meanProbability"`
	HighRisk        int     `json:"highRisk"` // HIGH or CRITICAL
}

// Summarize fills the batch summary from the per-claim vectors.
func (p *Prediction) Summarize() {
	n := len(p.Labels)
	p.Summary.Claims = n
	if n == 0 {
		return
	}
	var flagged, highRisk int
	var total float64
	for i, label := range p.Labels {
		if label == 1 {
			flagged++
		}
		total += p.Probabilities[i]
		if p.RiskLevels[i] == RiskHigh || p.RiskLevels[i] == RiskCritical {
			highRisk++
		}
	}
	p.Summary.Flagged = flagged
	p.Summary.FraudRate = float64(flagged) / float64(n)
	p.Summary.MeanProbability = total / float64(n)
	p.Summary.HighRisk = highRisk
}
