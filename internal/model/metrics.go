package model

import (
	"sort"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// HardLabels thresholds probabilities into binary labels.
func HardLabels(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

// Accuracy is the share of correct predictions.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// PrecisionRecallF1 computes positive-class precision, recall, and F1.
// Degenerate denominators yield zero instead of NaN.
func PrecisionRecallF1(yTrue, yPred []int) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// Confusion builds the binary confusion matrix.
func Confusion(yTrue, yPred []int) domain.ConfusionMatrix {
	var cm domain.ConfusionMatrix
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			cm.TruePositives++
		case yTrue[i] == 0 && yPred[i] == 1:
			cm.FalsePositives++
		case yTrue[i] == 0 && yPred[i] == 0:
			cm.TrueNegatives++
		default:
			cm.FalseNegatives++
		}
	}
	return cm
}

// ROCAUC computes the area under the ROC curve as the rank statistic
// of positive over negative scores, with tie correction. Returns 0.5
// when only one class is present.
func ROCAUC(yTrue []int, probs []float64) float64 {
	n := len(yTrue)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	// average ranks over ties
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n-1 && probs[idx[j+1]] == probs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i, y := range yTrue {
		if y == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// Evaluate produces a full metrics snapshot for one model from ground
// truth and continuous probabilities.
func Evaluate(name string, yTrue []int, probs []float64, threshold float64) *domain.ModelMetrics {
	yPred := HardLabels(probs, threshold)
	precision, recall, f1 := PrecisionRecallF1(yTrue, yPred)
	return &domain.ModelMetrics{
		Model:     name,
		Accuracy:  Accuracy(yTrue, yPred),
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		ROCAUC:    ROCAUC(yTrue, probs),
		Confusion: Confusion(yTrue, yPred),
		Samples:   len(yTrue),
		Timestamp: time.Now().UTC(),
	}
}
