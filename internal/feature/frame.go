// Package feature turns raw claims into numeric model inputs: derived
// columns, categorical encoding, scaling, and schema alignment.
package feature

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is returned when an input batch cannot produce a
// column that the model saw during training.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

const epsilon = 1e-8

// Frame is a column-oriented numeric table. Column order is stable and
// significant; adding a column that already exists is a no-op so that
// derivation passes stay idempotent.
type Frame struct {
	names []string
	cols  map[string][]float64
	rows  int
}

// NewFrame creates an empty frame with a fixed row count.
func NewFrame(rows int) *Frame {
	return &Frame{
		cols: make(map[string][]float64),
		rows: rows,
	}
}

// Rows returns the row count.
func (f *Frame) Rows() int { return f.rows }

// Names returns the column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns a column by name.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// AddColumn inserts a column. Existing columns are left untouched.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.rows)
	}
	if f.Has(name) {
		return nil
	}
	f.names = append(f.names, name)
	f.cols[name] = values
	return nil
}

// Matrix returns a row-major matrix of the named columns, in the given
// order. With no names it uses every column in insertion order.
func (f *Frame) Matrix(names ...string) ([][]float64, error) {
	if len(names) == 0 {
		names = f.names
	}
	out := make([][]float64, f.rows)
	for i := range out {
		out[i] = make([]float64, len(names))
	}
	for j, name := range names {
		col, ok := f.cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, name)
		}
		for i := range col {
			out[i][j] = col[i]
		}
	}
	return out, nil
}
