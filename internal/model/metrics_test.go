package model

import (
	"math"
	"testing"

	"github.com/opensource-health/heron/internal/domain"
)

func TestHardLabels(t *testing.T) {
	labels := HardLabels([]float64{0.1, 0.5, 0.9}, 0.5)
	if labels[0] != 0 || labels[1] != 1 || labels[2] != 1 {
		t.Errorf("expected [0 1 1], got %v", labels)
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy([]int{1, 0, 1, 0}, []int{1, 0, 0, 0}); got != 0.75 {
		t.Errorf("expected 0.75, got %v", got)
	}
	if got := Accuracy(nil, nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}

func TestPrecisionRecallF1(t *testing.T) {
	t.Run("PerfectPrediction", func(t *testing.T) {
		p, r, f1 := PrecisionRecallF1([]int{1, 0, 1}, []int{1, 0, 1})
		if p != 1 || r != 1 || f1 != 1 {
			t.Errorf("expected perfect scores, got p=%v r=%v f1=%v", p, r, f1)
		}
	})

	t.Run("NoPositivePredictions", func(t *testing.T) {
		p, r, f1 := PrecisionRecallF1([]int{1, 1, 0}, []int{0, 0, 0})
		if p != 0 || r != 0 || f1 != 0 {
			t.Errorf("expected zeros, got p=%v r=%v f1=%v", p, r, f1)
		}
	})

	t.Run("MixedPrediction", func(t *testing.T) {
		// tp=1 fp=1 fn=1
		p, r, f1 := PrecisionRecallF1([]int{1, 0, 1, 0}, []int{1, 1, 0, 0})
		if p != 0.5 || r != 0.5 {
			t.Errorf("expected 0.5/0.5, got p=%v r=%v", p, r)
		}
		if math.Abs(f1-0.5) > 1e-9 {
			t.Errorf("expected f1 0.5, got %v", f1)
		}
	})
}

func TestConfusion(t *testing.T) {
	cm := Confusion([]int{1, 1, 0, 0}, []int{1, 0, 1, 0})
	if cm.TruePositives != 1 || cm.FalseNegatives != 1 || cm.FalsePositives != 1 || cm.TrueNegatives != 1 {
		t.Errorf("unexpected confusion matrix: %+v", cm)
	}
}

func TestROCAUC(t *testing.T) {
	t.Run("PerfectSeparation", func(t *testing.T) {
		auc := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9})
		if math.Abs(auc-1) > 1e-9 {
			t.Errorf("expected AUC 1, got %v", auc)
		}
	})

	t.Run("InvertedSeparation", func(t *testing.T) {
		auc := ROCAUC([]int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9})
		if math.Abs(auc) > 1e-9 {
			t.Errorf("expected AUC 0, got %v", auc)
		}
	})

	t.Run("AllTiedScores", func(t *testing.T) {
		auc := ROCAUC([]int{1, 0, 1, 0}, []float64{0.5, 0.5, 0.5, 0.5})
		if math.Abs(auc-0.5) > 1e-9 {
			t.Errorf("expected AUC 0.5 for ties, got %v", auc)
		}
	})

	t.Run("SingleClass", func(t *testing.T) {
		auc := ROCAUC([]int{0, 0, 0}, []float64{0.1, 0.5, 0.9})
		if auc != 0.5 {
			t.Errorf("expected AUC 0.5 for single class, got %v", auc)
		}
	})
}

func TestEvaluate(t *testing.T) {
	m := Evaluate(domain.ModelClassifier, []int{1, 0, 1, 0}, []float64{0.9, 0.1, 0.8, 0.2}, 0.5)

	if m.Model != domain.ModelClassifier {
		t.Errorf("expected model %s, got %s", domain.ModelClassifier, m.Model)
	}
	if m.Accuracy != 1 || m.F1 != 1 {
		t.Errorf("expected perfect metrics, got %+v", m)
	}
	if m.Samples != 4 {
		t.Errorf("expected 4 samples, got %d", m.Samples)
	}
	if m.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}
