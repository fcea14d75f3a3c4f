package feature

import (
	"fmt"
	"math/rand"
)

// Split shuffles row indices with the given seed and cuts off the last
// testRatio fraction as the holdout.
func Split(n int, testRatio float64, seed int64) (trainIdx, testIdx []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("split: need at least 2 rows, got %d", n)
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("split: test ratio %.2f out of (0,1)", testRatio)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n) * testRatio)
	if nTest == 0 {
		nTest = 1
	}
	cut := n - nTest
	return perm[:cut], perm[cut:], nil
}

// Take selects rows of a matrix by index.
func Take(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

// TakeLabels selects label rows by index.
func TakeLabels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
