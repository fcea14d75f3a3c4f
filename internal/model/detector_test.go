package model

import (
	"errors"
	"math/rand"
	"testing"
)

// correlatedNormal generates points on a noisy line through the origin,
// so the first principal component captures almost all variance.
func correlatedNormal(n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, n)
	for i := range out {
		t := rng.NormFloat64()
		out[i] = []float64{t, 2 * t, -t + rng.NormFloat64()*0.05}
	}
	return out
}

func TestReconstructionDetector(t *testing.T) {
	cfg := testModelConfig()
	cfg.Components = 1

	t.Run("AnomalyScoresHigher", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		normal := correlatedNormal(200, 1)
		if _, err := d.Train(normal); err != nil {
			t.Fatalf("train failed: %v", err)
		}

		// one typical point and one far off the fitted subspace
		errs, err := d.Errors([][]float64{{1, 2, -1}, {3, -6, 3}})
		if err != nil {
			t.Fatalf("errors failed: %v", err)
		}
		if errs[1] <= errs[0] {
			t.Errorf("expected anomaly error above normal error, got %v vs %v", errs[1], errs[0])
		}

		votes, err := d.Votes([][]float64{{1, 2, -1}, {3, -6, 3}})
		if err != nil {
			t.Fatalf("votes failed: %v", err)
		}
		if votes[0] != 0 {
			t.Error("expected no vote for typical point")
		}
		if votes[1] != 1 {
			t.Error("expected vote for anomalous point")
		}
	})

	t.Run("ThresholdIsTrainingPercentile", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		normal := correlatedNormal(200, 2)
		if _, err := d.Train(normal); err != nil {
			t.Fatalf("train failed: %v", err)
		}

		votes, err := d.Votes(normal)
		if err != nil {
			t.Fatalf("votes failed: %v", err)
		}
		flagged := 0
		for _, v := range votes {
			flagged += v
		}
		// the cut sits at the 95th percentile of these very errors
		if flagged > 12 {
			t.Errorf("expected about 5%% of training rows above threshold, got %d of 200", flagged)
		}
	})

	t.Run("DeterministicForSeed", func(t *testing.T) {
		normal := correlatedNormal(150, 7)
		a := NewReconstructionDetector(cfg)
		b := NewReconstructionDetector(cfg)
		if _, err := a.Train(normal); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if _, err := b.Train(normal); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if a.Threshold != b.Threshold {
			t.Errorf("thresholds differ between identically seeded runs: %v vs %v", a.Threshold, b.Threshold)
		}
	})

	t.Run("ProbabilitiesInUnitRange", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		if _, err := d.Train(correlatedNormal(100, 3)); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		probs, err := d.Probabilities(correlatedNormal(50, 4))
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}
		for i, p := range probs {
			if p < 0 || p > 1 {
				t.Errorf("probability %d out of range: %v", i, p)
			}
		}
	})

	t.Run("ExplainedVarianceReturned", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		explained, err := d.Train(correlatedNormal(100, 5))
		if err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if len(explained) != 1 {
			t.Fatalf("expected 1 component, got %d", len(explained))
		}
		if explained[0] <= 0 {
			t.Errorf("expected positive explained variance, got %v", explained[0])
		}
	})

	t.Run("UntrainedRejected", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		if _, err := d.Errors([][]float64{{1, 2, 3}}); !errors.Is(err, ErrNotTrained) {
			t.Errorf("expected ErrNotTrained, got %v", err)
		}
	})

	t.Run("EmptyTrainingRejected", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		if _, err := d.Train(nil); err == nil {
			t.Error("expected error for empty training set")
		}
	})

	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		d := NewReconstructionDetector(cfg)
		normal := correlatedNormal(100, 6)
		if _, err := d.Train(normal); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		before, err := d.Errors(normal)
		if err != nil {
			t.Fatalf("errors failed: %v", err)
		}

		blob, err := d.Save()
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		restored := &ReconstructionDetector{}
		if err := restored.Load(blob); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		after, err := restored.Errors(normal)
		if err != nil {
			t.Fatalf("errors failed: %v", err)
		}
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("error %d differs after round trip", i)
			}
		}
		if restored.Threshold != d.Threshold {
			t.Errorf("threshold differs: %v vs %v", restored.Threshold, d.Threshold)
		}
	})
}
