// Benchmark tool for testing Heron against synthetic labeled claims.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 5000
//
// This tool:
//   1. Trains the server's ensemble on a generated training set
//   2. Generates a held-out labeled claim set with a different seed
//   3. Sends claim batches to Heron for scoring
//   4. Compares Heron's labels with ground truth
//   5. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-health/heron/internal/datagen"
	"github.com/opensource-health/heron/internal/domain"
)

// PredictRequest mirrors the Heron scoring request format.
type PredictRequest struct {
	Claims []domain.ClaimRequest `json:"claims"`
	Policy string                `json:"policy,omitempty"`
}

// PredictResponse mirrors the Heron scoring response format.
type PredictResponse struct {
	Prediction *domain.Prediction `json:"prediction"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fraud scored as fraud
	FalsePositives int64 // Legitimate scored as fraud
	TrueNegatives  int64 // Legitimate scored as legitimate
	FalseNegatives int64 // Fraud scored as legitimate (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

type batch struct {
	claims []domain.ClaimRequest
	labels []int
}

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	count := flag.Int("count", 5000, "Number of evaluation claims to score")
	fraudRate := flag.Float64("fraud", 0.15, "Fraud rate in the generated claims")
	trainCount := flag.Int("train", 2000, "Training set size (0 = skip server training)")
	seed := flag.Int64("seed", 42, "Training data seed; evaluation uses seed+1")
	batchSize := flag.Int("batch", 50, "Claims per scoring request")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	policy := flag.String("policy", "", "Voting policy override (weighted, majority, unanimous)")
	verbose := flag.Bool("verbose", false, "Print each batch result")
	flag.Parse()

	fmt.Println("===============================================================")
	fmt.Println("         HERON BENCHMARK - Claims Fraud Detection")
	fmt.Println("===============================================================")
	fmt.Printf("\nHeron URL:   %s\n", *baseURL)
	fmt.Printf("Claims:      %d\n", *count)
	fmt.Printf("Fraud Rate:  %.2f\n", *fraudRate)
	fmt.Printf("Train Size:  %d\n", *trainCount)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Printf("Workers:     %d\n", *workers)
	if *policy != "" {
		fmt.Printf("Policy:      %s\n", *policy)
	}
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("Heron is healthy")

	// Train the server on a generated set
	if *trainCount > 0 {
		fmt.Printf("\nTraining server ensemble on %d claims...\n", *trainCount)
		if err := trainServer(*baseURL, *trainCount, *fraudRate, *seed); err != nil {
			fmt.Printf("ERROR: training failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Training complete")
	}

	// Generate the held-out evaluation set with a different seed
	fmt.Printf("\nGenerating %d evaluation claims...\n", *count)
	gen := datagen.New(*seed + 1)
	claims, labels := gen.Generate(*count, *fraudRate)

	fraudCount := 0
	for _, l := range labels {
		if l == 1 {
			fraudCount++
		}
	}
	fmt.Printf("Generated %d claims\n", len(claims))
	fmt.Printf("  - Fraud:      %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(claims)))
	fmt.Printf("  - Legitimate: %d (%.2f%%)\n", len(claims)-fraudCount, 100*float64(len(claims)-fraudCount)/float64(len(claims)))

	batches := makeBatches(claims, labels, *batchSize)

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(batches, *baseURL, *policy, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func trainServer(baseURL string, count int, fraudRate float64, seed int64) error {
	body, err := json.Marshal(map[string]any{
		"generate": map[string]any{
			"count":     count,
			"fraudRate": fraudRate,
			"seed":      seed,
		},
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(baseURL+"/api/v1/models/train", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func makeBatches(claims []*domain.Claim, labels []int, size int) []batch {
	if size <= 0 {
		size = 50
	}

	var batches []batch
	for start := 0; start < len(claims); start += size {
		end := start + size
		if end > len(claims) {
			end = len(claims)
		}

		b := batch{
			claims: make([]domain.ClaimRequest, 0, end-start),
			labels: labels[start:end],
		}
		for _, c := range claims[start:end] {
			b.claims = append(b.claims, domain.ClaimRequest{
				ID:               c.ID,
				PatientID:        c.PatientID,
				ProviderID:       c.ProviderID,
				InsuranceID:      c.InsuranceID,
				DiagnosisCode:    c.DiagnosisCode,
				ProcedureCode:    c.ProcedureCode,
				PatientAge:       c.PatientAge,
				PatientGender:    c.PatientGender,
				PatientLocation:  c.PatientLocation,
				ProviderLocation: c.ProviderLocation,
				HospitalName:     c.HospitalName,
				Amount:           c.Amount,
				ClaimDate:        c.ClaimDate.Format(time.RFC3339),
			})
		}
		batches = append(batches, b)
	}
	return batches
}

func runBenchmark(batches []batch, baseURL, policy string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan batch, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for b := range work {
				start := time.Now()
				result, err := scoreBatch(client, baseURL, policy, b.claims)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, int64(len(b.claims)))

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, int64(len(b.claims)))
					if verbose {
						fmt.Printf("ERROR: batch of %d -> %v\n", len(b.claims), err)
					}
					continue
				}

				for i, actual := range b.labels {
					if actual == 1 {
						atomic.AddInt64(&metrics.TotalFraud, 1)
					} else {
						atomic.AddInt64(&metrics.TotalNonFraud, 1)
					}

					predicted := result.Prediction.Labels[i] == 1
					switch {
					case predicted && actual == 1:
						atomic.AddInt64(&metrics.TruePositives, 1)
					case predicted && actual == 0:
						atomic.AddInt64(&metrics.FalsePositives, 1)
					case !predicted && actual == 0:
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					default:
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}
				}

				if verbose {
					fmt.Printf("batch %-4d claims | flagged %-4d | mean p %.3f | %4d ms\n",
						len(b.claims),
						result.Prediction.Summary.Flagged,
						result.Prediction.Summary.MeanProbability,
						elapsed,
					)
				}
			}
		}()
	}

	// Send work
	for _, b := range batches {
		work <- b
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func scoreBatch(client *http.Client, baseURL, policy string, claims []domain.ClaimRequest) (*PredictResponse, error) {
	req := PredictRequest{
		Claims: claims,
		Policy: policy,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Prediction == nil || len(result.Prediction.Labels) != len(claims) {
		return nil, fmt.Errorf("malformed prediction response")
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n===============================================================")
	fmt.Println("                     BENCHMARK RESULTS")
	fmt.Println("===============================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Legitimate: %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                       Predicted")
	fmt.Println("                   FRAUD       CLEAN")
	fmt.Println("              +----------+----------+")
	fmt.Printf("   Actual  F  | %8d | %8d |  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              +----------+----------+")
	fmt.Printf("           C  | %8d | %8d |  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              +----------+----------+")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flags, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\nDETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%)\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms/claim\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	// Interpretation
	fmt.Printf("\nINTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   Low precision - many false alarms")
	} else {
		fmt.Println("   Very low precision - mostly false alarms")
	}

	fmt.Println()
}
