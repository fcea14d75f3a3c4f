package model

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/feature"
)

// Ensemble combines the classifier, the reconstruction detector, and
// the cluster detector behind a single train/predict surface. Model
// state is guarded by one coarse RWMutex; training is the only writer.
type Ensemble struct {
	mu sync.RWMutex

	pipeline   *feature.Pipeline
	classifier *Classifier
	detector   *ReconstructionDetector
	cluster    *ClusterDetector

	weights   domain.EnsembleWeights
	policy    domain.VotingPolicy
	metrics   map[string]*domain.ModelMetrics
	trainedAt *time.Time

	cfg domain.ModelConfig
}

// NewEnsemble creates an untrained ensemble with default weights and
// the weighted voting policy.
func NewEnsemble(cfg domain.ModelConfig) *Ensemble {
	return &Ensemble{
		pipeline:   feature.NewPipeline(),
		classifier: NewClassifier(cfg),
		detector:   NewReconstructionDetector(cfg),
		cluster:    NewClusterDetector(cfg),
		weights:    domain.DefaultWeights().Normalized(),
		policy:     domain.PolicyWeighted,
		metrics:    make(map[string]*domain.ModelMetrics),
		cfg:        cfg,
	}
}

// Weights returns the current blend weights.
func (e *Ensemble) Weights() domain.EnsembleWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// SetWeights validates and normalizes a new weight set.
func (e *Ensemble) SetWeights(w domain.EnsembleWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.weights = w.Normalized()
	e.mu.Unlock()
	return nil
}

// Policy returns the current voting policy.
func (e *Ensemble) Policy() domain.VotingPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetPolicy validates and applies a voting policy.
func (e *Ensemble) SetPolicy(p domain.VotingPolicy) error {
	if _, err := domain.ParsePolicy(string(p)); err != nil {
		return err
	}
	e.mu.Lock()
	e.policy = p
	e.mu.Unlock()
	return nil
}

// Trained reports whether all three members are trained.
func (e *Ensemble) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained()
}

func (e *Ensemble) trained() bool {
	return e.classifier.Trained() && e.detector.Trained() && e.cluster.Trained()
}

// Status reports lifecycle state for the API.
func (e *Ensemble) Status() domain.ModelStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.ModelStatus{
		Trained: e.trained(),
		Members: map[string]bool{
			domain.ModelClassifier: e.classifier.Trained(),
			domain.ModelDetector:   e.detector.Trained(),
			domain.ModelCluster:    e.cluster.Trained(),
		},
		Weights:       e.weights,
		Policy:        e.policy,
		FeatureCount:  len(e.pipeline.Columns),
		FraudClusters: e.cluster.FraudClusterCount(),
		TrainedAt:     e.trainedAt,
	}
}

// Metrics returns the latest evaluation snapshots keyed by model name.
func (e *Ensemble) Metrics() map[string]*domain.ModelMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*domain.ModelMetrics, len(e.metrics))
	for k, v := range e.metrics {
		copied := *v
		out[k] = &copied
	}
	return out
}

// Train fits the feature pipeline and all three members on a labeled
// claim batch, searches blend weights on the holdout, and records the
// evaluation snapshots. Members train in parallel.
func (e *Ensemble) Train(ctx context.Context, claims []*domain.Claim, labels []int) (map[string]*domain.ModelMetrics, error) {
	if len(claims) != len(labels) {
		return nil, fmt.Errorf("ensemble: %d claims with %d labels", len(claims), len(labels))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	trainIdx, testIdx, err := feature.Split(len(claims), e.cfg.TestRatio, e.cfg.Seed)
	if err != nil {
		return nil, err
	}
	trainClaims := takeClaims(claims, trainIdx)
	testClaims := takeClaims(claims, testIdx)
	yTrain := feature.TakeLabels(labels, trainIdx)
	yTest := feature.TakeLabels(labels, testIdx)

	pipeline := feature.NewPipeline()
	xTrain, err := pipeline.Fit(trainClaims)
	if err != nil {
		return nil, err
	}
	xTest, err := pipeline.Transform(testClaims)
	if err != nil {
		return nil, err
	}

	classifier := NewClassifier(e.cfg)
	detector := NewReconstructionDetector(e.cfg)
	cluster := NewClusterDetector(e.cfg)

	var normal [][]float64
	for i, row := range xTrain {
		if yTrain[i] == 0 {
			normal = append(normal, row)
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return classifier.Train(xTrain, yTrain) })
	g.Go(func() error {
		_, err := detector.Train(normal)
		return err
	})
	g.Go(func() error { return cluster.Train(xTrain, yTrain) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pc, err := classifier.Probabilities(xTest)
	if err != nil {
		return nil, err
	}
	pd, err := detector.Probabilities(xTest)
	if err != nil {
		return nil, err
	}
	pk, err := cluster.Probabilities(xTest)
	if err != nil {
		return nil, err
	}

	weights, _, err := OptimizeWeights(yTest, pc, pd, pk)
	if err != nil {
		return nil, err
	}

	metrics := map[string]*domain.ModelMetrics{
		domain.ModelClassifier: Evaluate(domain.ModelClassifier, yTest, pc, 0.5),
		domain.ModelDetector:   Evaluate(domain.ModelDetector, yTest, pd, 0.5),
		domain.ModelCluster:    Evaluate(domain.ModelCluster, yTest, pk, 0.5),
		domain.ModelEnsemble:   Evaluate(domain.ModelEnsemble, yTest, combineWeighted(weights, pc, pd, pk), 0.5),
	}

	now := time.Now().UTC()
	e.pipeline = pipeline
	e.classifier = classifier
	e.detector = detector
	e.cluster = cluster
	e.weights = weights
	e.metrics = metrics
	e.trainedAt = &now

	// copy from the local map; the write lock is still held
	out := make(map[string]*domain.ModelMetrics, len(metrics))
	for k, v := range metrics {
		copied := *v
		out[k] = &copied
	}
	return out, nil
}

// Predict scores a claim batch with the current policy, or with an
// explicit override.
func (e *Ensemble) Predict(claims []*domain.Claim, override domain.VotingPolicy) (*domain.Prediction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained() {
		return nil, fmt.Errorf("ensemble: %w", ErrNotTrained)
	}
	policy := e.policy
	if override != "" {
		parsed, err := domain.ParsePolicy(string(override))
		if err != nil {
			return nil, err
		}
		policy = parsed
	}

	x, err := e.pipeline.Transform(claims)
	if err != nil {
		return nil, err
	}
	pc, err := e.classifier.Probabilities(x)
	if err != nil {
		return nil, err
	}
	pd, err := e.detector.Probabilities(x)
	if err != nil {
		return nil, err
	}
	pk, err := e.cluster.Probabilities(x)
	if err != nil {
		return nil, err
	}
	detectorVotes, err := e.detector.Votes(x)
	if err != nil {
		return nil, err
	}

	var labels []int
	var probs []float64
	switch policy {
	case domain.PolicyWeighted:
		probs = combineWeighted(e.weights, pc, pd, pk)
		labels = HardLabels(probs, 0.5)
	case domain.PolicyMajority:
		labels, probs = combineMajority(pc, pk, detectorVotes)
	case domain.PolicyUnanimous:
		labels, probs = combineUnanimous(pc, pd, pk, detectorVotes)
	}

	risks := make([]domain.RiskLevel, len(probs))
	for i, p := range probs {
		risks[i] = domain.RiskLevelFor(p)
	}

	pred := &domain.Prediction{
		Model:         domain.ModelEnsemble,
		Policy:        policy,
		Timestamp:     time.Now().UTC(),
		Labels:        labels,
		Probabilities: probs,
		RiskLevels:    risks,
		ModelProbabilities: map[string][]float64{
			domain.ModelClassifier: pc,
			domain.ModelDetector:   pd,
			domain.ModelCluster:    pk,
		},
	}
	pred.Summarize()
	return pred, nil
}

// PredictMember scores a batch with a single base model.
func (e *Ensemble) PredictMember(name string, claims []*domain.Claim) (*domain.Prediction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch name {
	case domain.ModelClassifier, domain.ModelDetector, domain.ModelCluster:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
	if !e.trained() {
		return nil, fmt.Errorf("ensemble: %w", ErrNotTrained)
	}

	x, err := e.pipeline.Transform(claims)
	if err != nil {
		return nil, err
	}

	var probs []float64
	var labels []int
	switch name {
	case domain.ModelClassifier:
		if probs, err = e.classifier.Probabilities(x); err != nil {
			return nil, err
		}
		labels = HardLabels(probs, 0.5)
	case domain.ModelDetector:
		if probs, err = e.detector.Probabilities(x); err != nil {
			return nil, err
		}
		if labels, err = e.detector.Votes(x); err != nil {
			return nil, err
		}
	case domain.ModelCluster:
		if probs, err = e.cluster.Probabilities(x); err != nil {
			return nil, err
		}
		labels = HardLabels(probs, 0.5)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}

	risks := make([]domain.RiskLevel, len(probs))
	for i, p := range probs {
		risks[i] = domain.RiskLevelFor(p)
	}
	pred := &domain.Prediction{
		Model:         name,
		Policy:        domain.PolicyWeighted,
		Timestamp:     time.Now().UTC(),
		Labels:        labels,
		Probabilities: probs,
		RiskLevels:    risks,
	}
	pred.Summarize()
	return pred, nil
}

// combineWeighted blends probabilities by weight. The result is a
// convex combination, so it stays within the min and max of the
// member probabilities.
func combineWeighted(w domain.EnsembleWeights, pc, pd, pk []float64) []float64 {
	out := make([]float64, len(pc))
	for i := range out {
		out[i] = w.Classifier*pc[i] + w.Detector*pd[i] + w.Cluster*pk[i]
	}
	return out
}

// combineMajority hardens each member to a vote: classifier and
// cluster at 0.5, detector by its own train-time threshold. The
// reported probability is the vote share, not a calibrated
// probability.
func combineMajority(pc, pk []float64, detectorVotes []int) ([]int, []float64) {
	labels := make([]int, len(pc))
	probs := make([]float64, len(pc))
	for i := range pc {
		votes := detectorVotes[i]
		if pc[i] >= 0.5 {
			votes++
		}
		if pk[i] >= 0.5 {
			votes++
		}
		if votes >= 2 {
			labels[i] = 1
		}
		probs[i] = float64(votes) / 3
	}
	return labels, probs
}

// combineUnanimous flags only rows every member votes on. The
// probability is the element-wise minimum, also not calibrated.
func combineUnanimous(pc, pd, pk []float64, detectorVotes []int) ([]int, []float64) {
	labels := make([]int, len(pc))
	probs := make([]float64, len(pc))
	for i := range pc {
		if pc[i] >= 0.5 && pk[i] >= 0.5 && detectorVotes[i] == 1 {
			labels[i] = 1
		}
		probs[i] = math3Min(pc[i], pd[i], pk[i])
	}
	return labels, probs
}

func math3Min(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func takeClaims(claims []*domain.Claim, idx []int) []*domain.Claim {
	out := make([]*domain.Claim, len(idx))
	for i, j := range idx {
		out[i] = claims[j]
	}
	return out
}

// ensembleArtifact is the gob envelope for a fitted ensemble.
type ensembleArtifact struct {
	Pipeline   *feature.Pipeline
	Classifier *Classifier
	Detector   *ReconstructionDetector
	Cluster    *ClusterDetector
	Weights    domain.EnsembleWeights
	Policy     domain.VotingPolicy
	Metrics    map[string]*domain.ModelMetrics
	TrainedAt  *time.Time
}

// Save serializes every fitted artifact: pipeline statistics,
// encoders, model parameters, thresholds, weights, and policy.
func (e *Ensemble) Save() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.trained() {
		return nil, fmt.Errorf("ensemble: %w", ErrNotTrained)
	}
	art := ensembleArtifact{
		Pipeline:   e.pipeline,
		Classifier: e.classifier,
		Detector:   e.detector,
		Cluster:    e.cluster,
		Weights:    e.weights,
		Policy:     e.policy,
		Metrics:    e.metrics,
		TrainedAt:  e.trainedAt,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&art); err != nil {
		return nil, fmt.Errorf("ensemble: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load restores a serialized ensemble. A round-trip reproduces
// identical predictions.
func (e *Ensemble) Load(data []byte) error {
	var art ensembleArtifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&art); err != nil {
		return fmt.Errorf("ensemble: decode: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = art.Pipeline
	e.classifier = art.Classifier
	e.detector = art.Detector
	e.cluster = art.Cluster
	e.weights = art.Weights.Normalized()
	e.policy = art.Policy
	if art.Metrics != nil {
		e.metrics = art.Metrics
	}
	e.trainedAt = art.TrainedAt
	return nil
}
