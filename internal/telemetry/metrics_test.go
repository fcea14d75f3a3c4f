package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RequestsTotal.WithLabelValues("GET", "/health", "200").Inc()
	m.PredictionsTotal.WithLabelValues("weighted").Inc()
	m.ClaimsScored.Add(10)
	m.HighRiskTotal.Inc()
	m.TrainingsTotal.Inc()
	m.TrainingDuration.Observe(1.5)
	m.ModelF1.WithLabelValues("ensemble").Set(0.92)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"heron_http_requests_total",
		"heron_predictions_total",
		"heron_claims_scored_total",
		"heron_high_risk_claims_total",
		"heron_trainings_total",
		"heron_training_duration_seconds",
		"heron_model_f1_score",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestDuplicateRegistryIsolation(t *testing.T) {
	// Separate registries must not conflict
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}
