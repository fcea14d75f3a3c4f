package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/feature"
)

// ReconstructionDetector scores anomalies by how poorly a row is
// reconstructed from its top principal components. It is trained on
// normal rows only; fraud reconstructs badly because it was never part
// of the fitted subspace. Exported fields are gob-serialized.
type ReconstructionDetector struct {
	Means      []float64
	Components [][]float64 // k x d unit vectors
	Explained  []float64

	// Threshold is the hard-vote cut: the percentile of training
	// reconstruction errors, fixed at train time.
	Threshold  float64
	Percentile float64

	K        int
	MaxIters int
	Seed     int64
	Fitted   bool
}

// NewReconstructionDetector creates an untrained detector from config.
func NewReconstructionDetector(cfg domain.ModelConfig) *ReconstructionDetector {
	return &ReconstructionDetector{
		K:          cfg.Components,
		MaxIters:   100,
		Percentile: cfg.DetectorPercentile,
		Seed:       cfg.Seed,
	}
}

// Name identifies the detector in status and persistence.
func (d *ReconstructionDetector) Name() string { return domain.ModelDetector }

// Trained reports whether Train has completed.
func (d *ReconstructionDetector) Trained() bool { return d.Fitted }

// Train fits the principal subspace on normal rows and fixes the vote
// threshold at the configured percentile of training errors. Returns
// the per-component explained variance as a training history.
func (d *ReconstructionDetector) Train(normal [][]float64) ([]float64, error) {
	if len(normal) == 0 {
		return nil, fmt.Errorf("detector: no normal rows to train on")
	}
	dim := len(normal[0])
	k := d.K
	if k <= 0 || k > dim {
		k = dim
	}
	rng := rand.New(rand.NewSource(d.Seed))

	// center
	d.Means = make([]float64, dim)
	for _, row := range normal {
		for j, v := range row {
			d.Means[j] += v
		}
	}
	for j := range d.Means {
		d.Means[j] /= float64(len(normal))
	}
	z := make([][]float64, len(normal))
	for i, row := range normal {
		z[i] = make([]float64, dim)
		for j, v := range row {
			z[i][j] = v - d.Means[j]
		}
	}

	// power iteration with deflation, one component at a time
	d.Components = make([][]float64, 0, k)
	d.Explained = make([]float64, 0, k)
	for comp := 0; comp < k; comp++ {
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.Float64()
		}
		v = unitVector(v)

		var eigen float64
		for t := 0; t < d.MaxIters; t++ {
			w := make([]float64, dim)
			for _, row := range z {
				s := dot(row, v)
				for j, rv := range row {
					w[j] += s * rv
				}
			}
			eigen = vectorNorm(w)
			if eigen < 1e-12 {
				break
			}
			next := unitVector(w)
			if math.Abs(dot(next, v)) > 1-1e-10 {
				v = next
				break
			}
			v = next
		}
		d.Components = append(d.Components, v)
		d.Explained = append(d.Explained, eigen/float64(len(normal)))

		// deflate: remove the found direction from every row
		for i, row := range z {
			s := dot(row, v)
			for j := range row {
				z[i][j] -= s * v[j]
			}
		}
	}

	errs := d.reconstructionErrors(normal)
	d.Threshold = feature.Percentile(errs, d.Percentile)
	d.Fitted = true
	return d.Explained, nil
}

// Errors returns the raw per-row reconstruction error.
func (d *ReconstructionDetector) Errors(x [][]float64) ([]float64, error) {
	if !d.Fitted {
		return nil, fmt.Errorf("detector: %w", ErrNotTrained)
	}
	if len(x) > 0 && len(x[0]) != len(d.Means) {
		return nil, fmt.Errorf("detector: row has %d features, model has %d", len(x[0]), len(d.Means))
	}
	return d.reconstructionErrors(x), nil
}

// Probabilities min-max normalizes reconstruction errors over the
// batch into [0,1]. A flat batch maps to all zeros.
func (d *ReconstructionDetector) Probabilities(x [][]float64) ([]float64, error) {
	errs, err := d.Errors(x)
	if err != nil {
		return nil, err
	}
	if len(errs) == 0 {
		return nil, nil
	}
	lo, hi := errs[0], errs[0]
	for _, e := range errs {
		if e < lo {
			lo = e
		}
		if e > hi {
			hi = e
		}
	}
	span := hi - lo + 1e-8
	out := make([]float64, len(errs))
	for i, e := range errs {
		out[i] = (e - lo) / span
	}
	return out, nil
}

// Votes hardens rows against the fixed train-time error threshold.
func (d *ReconstructionDetector) Votes(x [][]float64) ([]int, error) {
	errs, err := d.Errors(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(errs))
	for i, e := range errs {
		if e > d.Threshold {
			out[i] = 1
		}
	}
	return out, nil
}

func (d *ReconstructionDetector) reconstructionErrors(x [][]float64) []float64 {
	out := make([]float64, len(x))
	dim := len(d.Means)
	for i, row := range x {
		centered := make([]float64, dim)
		for j, v := range row {
			centered[j] = v - d.Means[j]
		}
		recon := make([]float64, dim)
		for _, comp := range d.Components {
			s := dot(centered, comp)
			for j, cv := range comp {
				recon[j] += s * cv
			}
		}
		var mse float64
		for j := range centered {
			diff := centered[j] - recon[j]
			mse += diff * diff
		}
		out[i] = mse / float64(dim)
	}
	return out
}

// Save serializes the fitted model.
func (d *ReconstructionDetector) Save() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("detector: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load restores a serialized model.
func (d *ReconstructionDetector) Load(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(d); err != nil {
		return fmt.Errorf("detector: decode: %w", err)
	}
	return nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func vectorNorm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

func unitVector(v []float64) []float64 {
	n := vectorNorm(v)
	if n == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}
