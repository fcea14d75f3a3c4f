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
	"github.com/opensource-health/heron/internal/feature"
)

// ClusterDetector groups claims with k-means and scores a claim by the
// fraud rate of its cluster. The cluster count is chosen by maximizing
// the mean silhouette over a candidate range; fraud clusters are the
// ones whose fraud rate reaches a percentile of the per-cluster rate
// distribution. Exported fields are gob-serialized.
type ClusterDetector struct {
	Centers    [][]float64
	K          int
	FraudRates []float64
	Identified bool

	MinK           int
	MaxK           int
	MaxIters       int
	RatePercentile float64
	Seed           int64
	Fitted         bool
}

// NewClusterDetector creates an untrained detector from config.
func NewClusterDetector(cfg domain.ModelConfig) *ClusterDetector {
	return &ClusterDetector{
		MinK:           cfg.ClusterMin,
		MaxK:           cfg.ClusterMax,
		MaxIters:       300,
		RatePercentile: cfg.FraudClusterPercentile,
		Seed:           cfg.Seed,
	}
}

// Name identifies the detector in status and persistence.
func (c *ClusterDetector) Name() string { return domain.ModelCluster }

// Trained reports whether Train has completed.
func (c *ClusterDetector) Trained() bool { return c.Fitted }

// FraudClusterCount returns how many clusters are marked fraudulent.
func (c *ClusterDetector) FraudClusterCount() int {
	if !c.Identified {
		return 0
	}
	cutoff := feature.Percentile(c.FraudRates, c.RatePercentile)
	n := 0
	for _, r := range c.FraudRates {
		if r >= cutoff {
			n++
		}
	}
	return n
}

// Train clusters the features, picking k by silhouette, then uses the
// labels to identify fraud clusters.
func (c *ClusterDetector) Train(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("cluster: bad training shape: %d rows, %d labels", len(x), len(y))
	}
	minK, maxK := c.MinK, c.MaxK
	if minK < 2 {
		minK = 2
	}
	if maxK >= len(x) {
		maxK = len(x) - 1
	}
	if maxK < minK {
		maxK = minK
	}

	bestScore := math.Inf(-1)
	var bestCenters [][]float64
	var bestAssign []int
	for k := minK; k <= maxK; k++ {
		centers, assign := kmeansFit(x, k, c.MaxIters, c.Seed)
		score := silhouette(x, assign, k)
		if score > bestScore {
			bestScore = score
			bestCenters = centers
			bestAssign = assign
			c.K = k
		}
	}
	c.Centers = bestCenters
	c.Fitted = true

	return c.IdentifyFraudClusters(bestAssign, y)
}

// IdentifyFraudClusters computes per-cluster fraud rates from labeled
// assignments and marks the high-rate clusters.
func (c *ClusterDetector) IdentifyFraudClusters(assign []int, y []int) error {
	if !c.Fitted {
		return fmt.Errorf("cluster: %w", ErrNotTrained)
	}
	if len(assign) != len(y) {
		return fmt.Errorf("cluster: %d assignments for %d labels", len(assign), len(y))
	}
	counts := make([]float64, c.K)
	frauds := make([]float64, c.K)
	for i, cl := range assign {
		counts[cl]++
		if y[i] == 1 {
			frauds[cl]++
		}
	}
	c.FraudRates = make([]float64, c.K)
	for i := range c.FraudRates {
		if counts[i] > 0 {
			c.FraudRates[i] = frauds[i] / counts[i]
		}
	}
	c.Identified = true
	return nil
}

// Assign maps each row to its nearest cluster center.
func (c *ClusterDetector) Assign(x [][]float64) ([]int, error) {
	if !c.Fitted {
		return nil, fmt.Errorf("cluster: %w", ErrNotTrained)
	}
	if len(x) > 0 && len(x[0]) != len(c.Centers[0]) {
		return nil, fmt.Errorf("cluster: row has %d features, centers have %d", len(x[0]), len(c.Centers[0]))
	}
	return assignRows(x, c.Centers), nil
}

// Probabilities returns the fraud rate of each row's cluster. Calling
// this before fraud clusters are identified is a precondition error,
// never a silent zero vector.
func (c *ClusterDetector) Probabilities(x [][]float64) ([]float64, error) {
	if !c.Fitted {
		return nil, fmt.Errorf("cluster: %w", ErrNotTrained)
	}
	if !c.Identified {
		return nil, fmt.Errorf("cluster: %w", ErrClustersNotIdentified)
	}
	assign, err := c.Assign(x)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(assign))
	for i, cl := range assign {
		out[i] = c.FraudRates[cl]
	}
	return out, nil
}

// Save serializes the fitted model.
func (c *ClusterDetector) Save() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("cluster: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load restores a serialized model.
func (c *ClusterDetector) Load(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
		return fmt.Errorf("cluster: decode: %w", err)
	}
	return nil
}

// kmeansFit runs Lloyd iterations from a kmeans++ seeding.
func kmeansFit(x [][]float64, k, maxIters int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed + int64(k)))
	centers := initCenters(x, k, rng)
	assign := make([]int, len(x))

	for iter := 0; iter < maxIters; iter++ {
		next := assignRows(x, centers)
		changed := false
		for i := range next {
			if next[i] != assign[i] {
				changed = true
			}
			assign[i] = next[i]
		}
		if iter > 0 && !changed {
			break
		}

		// recompute centers
		dim := len(x[0])
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, row := range x {
			cl := assign[i]
			counts[cl]++
			for j, v := range row {
				sums[cl][j] += v
			}
		}
		for cl := 0; cl < k; cl++ {
			if counts[cl] == 0 {
				// empty cluster, reseed from a random row
				copy(centers[cl], x[rng.Intn(len(x))])
				continue
			}
			for j := range sums[cl] {
				centers[cl][j] = sums[cl][j] / float64(counts[cl])
			}
		}
	}
	return centers, assign
}

// initCenters seeds k-means++ style: each new center is drawn with
// probability proportional to squared distance from existing centers.
func initCenters(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	first := make([]float64, len(x[0]))
	copy(first, x[rng.Intn(len(x))])
	centers = append(centers, first)

	dists := make([]float64, len(x))
	for len(centers) < k {
		var total float64
		for i, row := range x {
			d := math.Inf(1)
			for _, c := range centers {
				if dd := sqDist(row, c); dd < d {
					d = dd
				}
			}
			dists[i] = d
			total += d
		}
		var pick int
		if total == 0 {
			pick = rng.Intn(len(x))
		} else {
			r := rng.Float64() * total
			for i, d := range dists {
				r -= d
				if r <= 0 {
					pick = i
					break
				}
			}
		}
		next := make([]float64, len(x[0]))
		copy(next, x[pick])
		centers = append(centers, next)
	}
	return centers
}

// assignRows finds the nearest center per row, chunked across cores.
func assignRows(x [][]float64, centers [][]float64) []int {
	out := make([]int, len(x))
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
				best := 0
				bestD := math.Inf(1)
				for cl, c := range centers {
					if d := sqDist(x[i], c); d < bestD {
						bestD = d
						best = cl
					}
				}
				out[i] = best
			}
		}(start, end)
	}
	wg.Wait()
	return out
}

// silhouette is the mean silhouette coefficient over all rows.
func silhouette(x [][]float64, assign []int, k int) float64 {
	n := len(x)
	if n < 2 || k < 2 {
		return -1
	}
	counts := make([]int, k)
	for _, cl := range assign {
		counts[cl]++
	}

	var total float64
	var scored int
	for i := 0; i < n; i++ {
		own := assign[i]
		if counts[own] < 2 {
			continue
		}
		sums := make([]float64, k)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sums[assign[j]] += math.Sqrt(sqDist(x[i], x[j]))
		}
		a := sums[own] / float64(counts[own]-1)
		b := math.Inf(1)
		for cl := 0; cl < k; cl++ {
			if cl == own || counts[cl] == 0 {
				continue
			}
			if mean := sums[cl] / float64(counts[cl]); mean < b {
				b = mean
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
			scored++
		}
	}
	if scored == 0 {
		return -1
	}
	return total / float64(scored)
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
