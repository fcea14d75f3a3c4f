package feature

import (
	"fmt"
	"math"
)

// StandardScaler standardizes columns to zero mean and unit variance.
// Statistics are fixed at fit time. Fields are exported for gob.
type StandardScaler struct {
	Mean   []float64
	Std    []float64
	Fitted bool
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 || len(x[0]) == 0 {
		return fmt.Errorf("scaler: empty input")
	}
	nRows := float64(len(x))
	nCols := len(x[0])

	s.Mean = make([]float64, nCols)
	s.Std = make([]float64, nCols)

	for _, row := range x {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= nRows
	}

	for _, row := range x {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / nRows)
		if s.Std[j] == 0 {
			// constant column, leave values centered at zero
			s.Std[j] = 1
		}
	}
	s.Fitted = true
	return nil
}

// Transform standardizes a matrix with the fitted statistics.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, fmt.Errorf("scaler: not fitted")
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("%w: row has %d columns, scaler fitted on %d", ErrSchemaMismatch, len(row), len(s.Mean))
		}
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = (v - s.Mean[j]) / s.Std[j]
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms the same matrix.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
