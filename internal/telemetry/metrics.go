// Package telemetry exposes Prometheus metrics for the scoring service.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors, served at /metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	PredictionsTotal *prometheus.CounterVec
	ClaimsScored     prometheus.Counter
	HighRiskTotal    prometheus.Counter
	TrainingsTotal   prometheus.Counter
	TrainingDuration prometheus.Histogram
	ModelF1          *prometheus.GaugeVec
}

// New registers the service collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on a custom registry.
// Tests use this to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heron",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "heron",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heron",
			Name:      "predictions_total",
			Help:      "Prediction batches served, by voting policy.",
		}, []string{"policy"}),

		ClaimsScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "heron",
			Name:      "claims_scored_total",
			Help:      "Individual claims scored.",
		}),

		HighRiskTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "heron",
			Name:      "high_risk_claims_total",
			Help:      "Claims flagged at HIGH or CRITICAL risk.",
		}),

		TrainingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "heron",
			Name:      "trainings_total",
			Help:      "Completed ensemble training runs.",
		}),

		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heron",
			Name:      "training_duration_seconds",
			Help:      "Wall time of ensemble training runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		ModelF1: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "heron",
			Name:      "model_f1_score",
			Help:      "Holdout F1 score per model from the latest training run.",
		}, []string{"model"}),
	}
}
