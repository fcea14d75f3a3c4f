package model

import (
	"errors"
	"math/rand"
	"testing"
)

// twoBlobs places points around (-5,-5) and (5,5). Fraud labels are
// concentrated in the second blob.
func twoBlobs(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, 0, 2*n)
	y := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		x = append(x, []float64{-5 + rng.NormFloat64()*0.3, -5 + rng.NormFloat64()*0.3})
		y = append(y, 0)
	}
	for i := 0; i < n; i++ {
		x = append(x, []float64{5 + rng.NormFloat64()*0.3, 5 + rng.NormFloat64()*0.3})
		if i%4 == 0 {
			y = append(y, 0)
		} else {
			y = append(y, 1)
		}
	}
	return x, y
}

func TestClusterDetector(t *testing.T) {
	cfg := testModelConfig()

	t.Run("FraudBlobScoresHigher", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		x, y := twoBlobs(60, 1)
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}

		probs, err := c.Probabilities([][]float64{{-5, -5}, {5, 5}})
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}
		if probs[1] <= probs[0] {
			t.Errorf("expected fraud blob rate above clean blob rate, got %v vs %v", probs[1], probs[0])
		}
		if probs[0] > 0.05 {
			t.Errorf("expected clean blob rate near zero, got %v", probs[0])
		}
	})

	t.Run("FraudClusterIdentified", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		x, y := twoBlobs(60, 2)
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if !c.Identified {
			t.Fatal("expected fraud clusters identified after training")
		}
		if got := c.FraudClusterCount(); got < 1 {
			t.Errorf("expected at least one fraud cluster, got %d", got)
		}
	})

	t.Run("AssignSeparatesBlobs", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		x, y := twoBlobs(60, 3)
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		assign, err := c.Assign([][]float64{{-5, -5}, {-4.8, -5.1}, {5, 5}})
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if assign[0] != assign[1] {
			t.Error("expected nearby points in the same cluster")
		}
		if assign[0] == assign[2] {
			t.Error("expected opposite blobs in different clusters")
		}
	})

	t.Run("UntrainedRejected", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		if _, err := c.Assign([][]float64{{0, 0}}); !errors.Is(err, ErrNotTrained) {
			t.Errorf("expected ErrNotTrained from Assign, got %v", err)
		}
		if _, err := c.Probabilities([][]float64{{0, 0}}); !errors.Is(err, ErrNotTrained) {
			t.Errorf("expected ErrNotTrained from Probabilities, got %v", err)
		}
	})

	t.Run("UnidentifiedClustersRejected", func(t *testing.T) {
		c := &ClusterDetector{
			Centers: [][]float64{{-5, -5}, {5, 5}},
			K:       2,
			Fitted:  true,
		}
		if _, err := c.Probabilities([][]float64{{0, 0}}); !errors.Is(err, ErrClustersNotIdentified) {
			t.Errorf("expected ErrClustersNotIdentified, got %v", err)
		}
	})

	t.Run("MismatchedShapeRejected", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		x, _ := twoBlobs(10, 4)
		if err := c.Train(x, []int{0, 1}); err == nil {
			t.Error("expected error for mismatched rows and labels")
		}
	})

	t.Run("IdentifyRequiresMatchingLabels", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		x, y := twoBlobs(20, 5)
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		if err := c.IdentifyFraudClusters([]int{0, 1}, []int{0}); err == nil {
			t.Error("expected error for mismatched assignments and labels")
		}
	})

	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		c := NewClusterDetector(cfg)
		x, y := twoBlobs(60, 6)
		if err := c.Train(x, y); err != nil {
			t.Fatalf("train failed: %v", err)
		}
		before, err := c.Probabilities(x)
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}

		blob, err := c.Save()
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		restored := &ClusterDetector{}
		if err := restored.Load(blob); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		after, err := restored.Probabilities(x)
		if err != nil {
			t.Fatalf("probabilities failed: %v", err)
		}
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("probability %d differs after round trip", i)
			}
		}
		if restored.K != c.K {
			t.Errorf("cluster count differs: %d vs %d", restored.K, c.K)
		}
	})
}
