package model

import (
	"fmt"

	"github.com/opensource-health/heron/internal/domain"
)

// weight search grid: 5 evenly spaced classifier weights in [0.2, 0.8]
// and 5 detector weights in [0.1, 0.6]. The cluster weight is the
// remainder and must land in [0.1, 0.6].
const (
	gridSteps = 5

	classifierLo = 0.2
	classifierHi = 0.8
	detectorLo   = 0.1
	detectorHi   = 0.6
	clusterLo    = 0.1
	clusterHi    = 0.6
)

// OptimizeWeights grid-searches blend weights that maximize the
// positive-class F1 of the weighted policy on a validation set. The
// comparison is strict, so the first maximum in grid order wins and
// the search is deterministic. A validation set without positive
// labels is a configuration error.
func OptimizeWeights(yVal []int, pc, pd, pk []float64) (domain.EnsembleWeights, float64, error) {
	if len(yVal) == 0 || len(yVal) != len(pc) || len(yVal) != len(pd) || len(yVal) != len(pk) {
		return domain.EnsembleWeights{}, 0, fmt.Errorf("optimize: mismatched validation shapes")
	}
	hasPositive := false
	for _, y := range yVal {
		if y == 1 {
			hasPositive = true
			break
		}
	}
	if !hasPositive {
		return domain.EnsembleWeights{}, 0, ErrNoPositiveLabels
	}

	best := domain.DefaultWeights().Normalized()
	bestF1 := -1.0

	for i := 0; i < gridSteps; i++ {
		wc := linspace(classifierLo, classifierHi, i)
		for j := 0; j < gridSteps; j++ {
			wd := linspace(detectorLo, detectorHi, j)
			wk := 1 - wc - wd
			if wk < clusterLo-1e-9 || wk > clusterHi+1e-9 {
				continue
			}
			w := domain.EnsembleWeights{Classifier: wc, Detector: wd, Cluster: wk}
			probs := combineWeighted(w, pc, pd, pk)
			_, _, f1 := PrecisionRecallF1(yVal, HardLabels(probs, 0.5))
			if f1 > bestF1 {
				bestF1 = f1
				best = w
			}
		}
	}
	return best.Normalized(), bestF1, nil
}

// linspace returns the i-th of gridSteps evenly spaced values in
// [lo, hi].
func linspace(lo, hi float64, i int) float64 {
	return lo + (hi-lo)*float64(i)/float64(gridSteps-1)
}
