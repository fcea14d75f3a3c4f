package domain

import (
	"fmt"
	"time"
)

// Model names used across the service, persistence, and the API.
const (
	ModelEnsemble   = "ensemble"
	ModelClassifier = "classifier"
	ModelDetector   = "detector"
	ModelCluster    = "cluster"
)

// VotingPolicy selects how the ensemble combines base model outputs.
type VotingPolicy string

const (
	// PolicyWeighted blends probabilities by the ensemble weights.
	PolicyWeighted VotingPolicy = "weighted"

	// PolicyMajority hardens each model to a vote; two of three flags fraud.
	PolicyMajority VotingPolicy = "majority"

	// PolicyUnanimous flags fraud only when all three models agree.
	PolicyUnanimous VotingPolicy = "unanimous"
)

// ParsePolicy validates a voting policy string.
func ParsePolicy(s string) (VotingPolicy, error) {
	switch VotingPolicy(s) {
	case PolicyWeighted, PolicyMajority, PolicyUnanimous:
		return VotingPolicy(s), nil
	}
	return "", fmt.Errorf("unknown voting policy %q", s)
}

// EnsembleWeights holds the blend weights for the three base models.
// Weights are normalized to sum 1.0 on every assignment.
type EnsembleWeights struct {
	Classifier float64 `json:"classifier"`
	Detector   float64 `json:"detector"`
	Cluster    float64 `json:"cluster"`
}

// DefaultWeights returns the default ensemble blend.
func DefaultWeights() EnsembleWeights {
	return EnsembleWeights{Classifier: 0.5, Detector: 0.3, Cluster: 0.2}
}

// Validate rejects negative components and all-zero weight sets.
func (w EnsembleWeights) Validate() error {
	if w.Classifier < 0 || w.Detector < 0 || w.Cluster < 0 {
		return fmt.Errorf("ensemble weights must be non-negative, got %+v", w)
	}
	if w.Sum() == 0 {
		return fmt.Errorf("ensemble weights must not all be zero")
	}
	return nil
}

// Sum returns the total of the three components.
func (w EnsembleWeights) Sum() float64 {
	return w.Classifier + w.Detector + w.Cluster
}

// Normalized returns the weights scaled to sum 1.0.
func (w EnsembleWeights) Normalized() EnsembleWeights {
	total := w.Sum()
	if total == 0 {
		return w
	}
	return EnsembleWeights{
		Classifier: w.Classifier / total,
		Detector:   w.Detector / total,
		Cluster:    w.Cluster / total,
	}
}

// ConfusionMatrix counts binary outcomes against ground truth.
type ConfusionMatrix struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`
}

// ModelMetrics is the evaluation snapshot for a single model.
// Precision, recall, and F1 are for the positive (fraud) class.
type ModelMetrics struct {
	Model     string          `json:"model"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	ROCAUC    float64         `json:"rocAuc"`
	Confusion ConfusionMatrix `json:"confusionMatrix"`
	Samples   int             `json:"samples"`
	Timestamp time.Time       `json:"timestamp"`
}

// RiskLevel buckets a fraud probability for alerting.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL" // p >= 0.8
	RiskHigh     RiskLevel = "HIGH"     // p >= 0.6
	RiskMedium   RiskLevel = "MEDIUM"   // p >= 0.4
	RiskLow      RiskLevel = "LOW"
)

// RiskLevelFor maps a probability to its alerting bucket.
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p >= 0.8:
		return RiskCritical
	case p >= 0.6:
		return RiskHigh
	case p >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ScoreResult is a persisted per-claim scoring outcome.
type ScoreResult struct {
	ID          string    `json:"id"`
	ClaimID     string    `json:"claimId"`
	ProviderID  string    `json:"providerId"`
	Model       string    `json:"model"`
	Label       int       `json:"label"`
	Probability float64   `json:"probability"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Reasons     []string  `json:"reasons,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ModelArtifact is a serialized fitted model stored in the repository.
type ModelArtifact struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Version   int       `json:"version"`
	Blob      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// ModelStatus reports the lifecycle state of the ensemble and its members.
type ModelStatus struct {
	Trained       bool            `json:"trained"`
	Members       map[string]bool `json:"members"`
	Weights       EnsembleWeights `json:"weights"`
	Policy        VotingPolicy    `json:"policy"`
	FeatureCount  int             `json:"featureCount"`
	FraudClusters int             `json:"fraudClusters"`
	TrainedAt     *time.Time      `json:"trainedAt,omitempty"`
}
