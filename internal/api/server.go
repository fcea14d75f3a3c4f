package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-health/heron/internal/analyze"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/model"
	"github.com/opensource-health/heron/internal/rules"
	"github.com/opensource-health/heron/internal/telemetry"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, ensemble *model.Ensemble, engine *rules.Engine, schemes *rules.SchemeEngine, assessor *analyze.Assessor, metrics *telemetry.Metrics, version string, modelCfg domain.ModelConfig) *Server {
	handler := NewHandler(repo, cache, bus, ensemble, engine, schemes, assessor, metrics, version, modelCfg)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)            // CORS for browser clients
	router.Use(RecoverMiddleware)         // Recover from panics
	router.Use(TracingMiddleware)         // OpenTelemetry tracing
	router.Use(LoggingMiddleware)         // Request logging
	router.Use(MetricsMiddleware(metrics))
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Prometheus scrape endpoint
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Scoring
		r.Post("/predict", handler.Predict)
		r.Post("/predict/async", handler.PredictAsync)
		r.Post("/analyze/batch", handler.AnalyzeBatch)

		// Model lifecycle
		r.Post("/models/train", handler.Train)
		r.Get("/models/status", handler.ModelStatus)
		r.Get("/models/performance", handler.ModelPerformance)
		r.Put("/models/weights", handler.UpdateWeights)
		r.Put("/models/policy", handler.UpdatePolicy)
		r.Post("/models/save", handler.SaveModel)
		r.Post("/models/load", handler.LoadModel)

		// Synthetic data
		r.Post("/generate/demo-data", handler.GenerateDemoData)

		// Alerting
		r.Get("/alerts/high-risk", handler.HighRiskAlerts)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)

		// Fraud scheme management
		r.Get("/schemes", handler.ListSchemes)
		r.Get("/schemes/{id}", handler.GetScheme)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
