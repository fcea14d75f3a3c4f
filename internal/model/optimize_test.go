package model

import (
	"errors"
	"math"
	"testing"
)

func TestOptimizeWeights(t *testing.T) {
	t.Run("NoPositiveLabels", func(t *testing.T) {
		y := []int{0, 0, 0}
		p := []float64{0.1, 0.2, 0.3}
		if _, _, err := OptimizeWeights(y, p, p, p); !errors.Is(err, ErrNoPositiveLabels) {
			t.Errorf("expected ErrNoPositiveLabels, got %v", err)
		}
	})

	t.Run("MismatchedShapes", func(t *testing.T) {
		if _, _, err := OptimizeWeights([]int{1, 0}, []float64{0.5}, []float64{0.5, 0.5}, []float64{0.5, 0.5}); err == nil {
			t.Error("expected error for mismatched shapes")
		}
	})

	t.Run("FavorsInformativeModel", func(t *testing.T) {
		// classifier is perfectly informative, detector is flat, and the
		// cluster detector is confidently wrong
		y := []int{1, 0, 1, 0, 1, 0, 1, 0}
		pc := []float64{0.9, 0.1, 0.9, 0.1, 0.9, 0.1, 0.9, 0.1}
		pd := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
		pk := []float64{0.1, 0.9, 0.1, 0.9, 0.1, 0.9, 0.1, 0.9}

		w, f1, err := OptimizeWeights(y, pc, pd, pk)
		if err != nil {
			t.Fatalf("optimize failed: %v", err)
		}
		if f1 != 1 {
			t.Errorf("expected F1 of 1 on separable data, got %v", f1)
		}
		if w.Classifier <= w.Cluster {
			t.Errorf("expected classifier weight to dominate, got %+v", w)
		}
	})

	t.Run("ResultIsNormalized", func(t *testing.T) {
		y := []int{1, 0, 1, 0}
		p := []float64{0.9, 0.1, 0.8, 0.2}
		w, _, err := OptimizeWeights(y, p, p, p)
		if err != nil {
			t.Fatalf("optimize failed: %v", err)
		}
		if math.Abs(w.Sum()-1) > 1e-9 {
			t.Errorf("expected weights to sum 1, got %v", w.Sum())
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		y := []int{1, 0, 0, 1, 0, 1}
		pc := []float64{0.7, 0.3, 0.4, 0.6, 0.2, 0.8}
		pd := []float64{0.6, 0.5, 0.3, 0.7, 0.4, 0.5}
		pk := []float64{0.5, 0.2, 0.6, 0.4, 0.3, 0.9}

		w1, f1a, err := OptimizeWeights(y, pc, pd, pk)
		if err != nil {
			t.Fatalf("optimize failed: %v", err)
		}
		w2, f1b, err := OptimizeWeights(y, pc, pd, pk)
		if err != nil {
			t.Fatalf("optimize failed: %v", err)
		}
		if w1 != w2 || f1a != f1b {
			t.Errorf("expected identical results, got %+v/%v and %+v/%v", w1, f1a, w2, f1b)
		}
	})
}
