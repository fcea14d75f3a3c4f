package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/opensource-health/heron/internal/domain"
)

// Classifier is a binary logistic regression trained with mini-batch
// gradient descent. Probabilities are the native sigmoid output for
// the positive class. Exported fields are gob-serialized.
type Classifier struct {
	W []float64
	B float64

	LearningRate float64
	Epochs       int
	BatchSize    int
	Seed         int64
	Fitted       bool
}

// NewClassifier creates an untrained classifier from config.
func NewClassifier(cfg domain.ModelConfig) *Classifier {
	return &Classifier{
		LearningRate: cfg.LearningRate,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		Seed:         cfg.Seed,
	}
}

// Name identifies the classifier in status and persistence.
func (c *Classifier) Name() string { return domain.ModelClassifier }

// Trained reports whether Train has completed.
func (c *Classifier) Trained() bool { return c.Fitted }

// Train fits the weights on features and binary labels. The positive
// class gradient is upweighted by the inverse class ratio so rare
// fraud rows are not drowned out.
func (c *Classifier) Train(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("classifier: bad training shape: %d rows, %d labels", len(x), len(y))
	}
	nFeatures := len(x[0])
	rng := rand.New(rand.NewSource(c.Seed))

	c.W = make([]float64, nFeatures)
	for i := range c.W {
		c.W[i] = rng.NormFloat64() * 0.01
	}
	c.B = 0

	// class weighting: w_pos = n_neg / n_pos
	var nPos float64
	for _, label := range y {
		if label == 1 {
			nPos++
		}
	}
	posWeight := 1.0
	if nPos > 0 && nPos < float64(len(y)) {
		posWeight = (float64(len(y)) - nPos) / nPos
	}

	batchSize := c.BatchSize
	if batchSize <= 0 || batchSize > len(x) {
		batchSize = len(x)
	}

	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}

	for ep := 0; ep < c.Epochs; ep++ {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for start := 0; start < len(idx); start += batchSize {
			end := start + batchSize
			if end > len(idx) {
				end = len(idx)
			}
			c.step(x, y, idx[start:end], posWeight)
		}
	}
	c.Fitted = true
	return nil
}

func (c *Classifier) step(x [][]float64, y []int, batch []int, posWeight float64) {
	gW := make([]float64, len(c.W))
	gB := 0.0
	for _, i := range batch {
		row := x[i]
		sum := c.B
		for j, v := range row {
			sum += c.W[j] * v
		}
		p := sigmoid(sum)
		d := p - float64(y[i])
		if y[i] == 1 {
			d *= posWeight
		}
		for j, v := range row {
			gW[j] += d * v
		}
		gB += d
	}
	scale := c.LearningRate / float64(len(batch))
	for j := range c.W {
		c.W[j] -= scale * gW[j]
	}
	c.B -= scale * gB
}

// Probabilities returns the positive-class probability for each row.
// Rows are scored in parallel across CPU cores.
func (c *Classifier) Probabilities(x [][]float64) ([]float64, error) {
	if !c.Fitted {
		return nil, fmt.Errorf("classifier: %w", ErrNotTrained)
	}
	if len(x) == 0 {
		return nil, nil
	}
	if len(x[0]) != len(c.W) {
		return nil, fmt.Errorf("classifier: row has %d features, model has %d", len(x[0]), len(c.W))
	}

	out := make([]float64, len(x))
	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (len(x) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if end > len(x) {
			end = len(x)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				sum := c.B
				for j, v := range x[i] {
					sum += c.W[j] * v
				}
				out[i] = sigmoid(sum)
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}

// Save serializes the fitted model.
func (c *Classifier) Save() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("classifier: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load restores a serialized model.
func (c *Classifier) Load(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
		return fmt.Errorf("classifier: decode: %w", err)
	}
	return nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
