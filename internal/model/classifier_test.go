package model

import (
	"errors"
	"testing"

	"github.com/opensource-health/heron/internal/domain"
)

func testModelConfig() domain.ModelConfig {
	cfg := domain.DefaultModelConfig()
	cfg.Epochs = 100
	cfg.ClusterMax = 4
	return cfg
}

// separableData builds a 2D set: negatives around (-2,-2), positives
// around (+2,+2).
func separableData() ([][]float64, []int) {
	var x [][]float64
	var y []int
	offsets := []float64{-0.3, -0.1, 0.1, 0.3}
	for _, dx := range offsets {
		for _, dy := range offsets {
			x = append(x, []float64{-2 + dx, -2 + dy})
			y = append(y, 0)
			x = append(x, []float64{2 + dx, 2 + dy})
			y = append(y, 1)
		}
	}
	return x, y
}

func TestClassifier(t *testing.T) {
	t.Run("SeparatesClasses", func(t *testing.T) {
		x, y := separableData()
		c := NewClassifier(testModelConfig())
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if !c.Trained() {
			t.Fatal("expected classifier trained")
		}

		probs, err := c.Probabilities([][]float64{{-2, -2}, {2, 2}})
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}
		if probs[0] >= 0.5 {
			t.Errorf("expected negative point below 0.5, got %v", probs[0])
		}
		if probs[1] <= 0.5 {
			t.Errorf("expected positive point above 0.5, got %v", probs[1])
		}
	})

	t.Run("DeterministicForSeed", func(t *testing.T) {
		x, y := separableData()
		c1 := NewClassifier(testModelConfig())
		c2 := NewClassifier(testModelConfig())
		if err := c1.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if err := c2.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		for j := range c1.W {
			if c1.W[j] != c2.W[j] {
				t.Fatalf("weight %d differs: %v vs %v", j, c1.W[j], c2.W[j])
			}
		}
		if c1.B != c2.B {
			t.Errorf("bias differs: %v vs %v", c1.B, c2.B)
		}
	})

	t.Run("UntrainedRejected", func(t *testing.T) {
		c := NewClassifier(testModelConfig())
		if _, err := c.Probabilities([][]float64{{0, 0}}); !errors.Is(err, ErrNotTrained) {
			t.Errorf("expected ErrNotTrained, got %v", err)
		}
	})

	t.Run("BadShapeRejected", func(t *testing.T) {
		c := NewClassifier(testModelConfig())
		if err := c.Train(nil, nil); err == nil {
			t.Error("expected error for empty training data")
		}
		if err := c.Train([][]float64{{1}}, []int{0, 1}); err == nil {
			t.Error("expected error for mismatched labels")
		}
	})

	t.Run("FeatureWidthChecked", func(t *testing.T) {
		x, y := separableData()
		c := NewClassifier(testModelConfig())
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if _, err := c.Probabilities([][]float64{{1, 2, 3}}); err == nil {
			t.Error("expected error for wrong feature width")
		}
	})

	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		x, y := separableData()
		c := NewClassifier(testModelConfig())
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		before, err := c.Probabilities(x)
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}

		blob, err := c.Save()
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		restored := &Classifier{}
		if err := restored.Load(blob); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		after, err := restored.Probabilities(x)
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}

		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("probability %d differs after round trip: %v vs %v", i, before[i], after[i])
			}
		}
	})
}
