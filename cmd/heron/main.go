// Heron - Claims fraud scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.health
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-health/heron/internal/analyze"
	"github.com/opensource-health/heron/internal/api"
	"github.com/opensource-health/heron/internal/bus"
	"github.com/opensource-health/heron/internal/cache"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/model"
	"github.com/opensource-health/heron/internal/repository"
	"github.com/opensource-health/heron/internal/rules"
	"github.com/opensource-health/heron/internal/telemetry"
	"github.com/opensource-health/heron/internal/velocity"
	"github.com/opensource-health/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)
	slog.Info("velocity service initialized")

	// Initialize Rule Engine with velocity getter
	engine, err := rules.NewEngine(velocitySvc.GetVelocityGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Seed builtin screening rules, then overlay database rules
	if err := loadRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize Fraud Scheme Engine
	schemeEngine := rules.NewSchemeEngine()
	schemeEngine.LoadSchemes(rules.DefaultSchemes())
	slog.Info("scheme engine initialized", "schemes_count", schemeEngine.SchemeCount())

	// Initialize Assessor
	assessor := analyze.NewAssessor()
	slog.Info("assessor initialized", "threshold", assessor.AlertThreshold)

	// Initialize ML Ensemble
	ensemble := model.NewEnsemble(cfg.Model)
	if artifact, err := repo.GetLatestArtifact(ctx, domain.ModelEnsemble); err == nil {
		if err := ensemble.Load(artifact.Blob); err != nil {
			slog.Warn("failed to load saved model, starting untrained", "error", err)
		} else {
			slog.Info("loaded saved model", "version", artifact.Version)
		}
	} else {
		slog.Info("no saved model found, train via POST /api/v1/models/train")
	}

	// Initialize Prometheus metrics
	metrics := telemetry.New()

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, ensemble, engine, schemeEngine, assessor)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, ensemble, engine, schemeEngine, assessor, metrics, Version, cfg.Model)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// applyEnvOverrides applies HERON_* environment settings on top of the
// tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("HERON_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HERON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HERON_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("HERON_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("HERON_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Repository.PostgresPort = port
		}
	}
	if v := os.Getenv("HERON_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("HERON_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("HERON_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("HERON_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HERON_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("HERON_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HERON_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}
	if v := os.Getenv("HERON_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Model.Seed = seed
		}
	}
}

// loadRules seeds the builtin screening rules and overlays any rules
// stored in the database. Database rules win on ID collision.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		return err
	}

	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                    HERON")
	fmt.Println("         Claims Fraud Scoring Engine")
	fmt.Println("          Eyes on every claim.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/v1/models/train        - Train the ensemble")
	fmt.Println("    GET  /api/v1/models/status       - Model lifecycle state")
	fmt.Println("    GET  /api/v1/models/performance  - Evaluation metrics")
	fmt.Println("    PUT  /api/v1/models/weights      - Update blend weights")
	fmt.Println("    PUT  /api/v1/models/policy       - Update voting policy")
	fmt.Println("    POST /api/v1/models/save         - Persist fitted model")
	fmt.Println("    POST /api/v1/models/load         - Load latest saved model")
	fmt.Println("    POST /api/v1/predict             - Score a claim batch")
	fmt.Println("    POST /api/v1/predict/async       - Queue a claim batch")
	fmt.Println("    POST /api/v1/analyze/batch       - Batch fraud report")
	fmt.Println("    POST /api/v1/generate/demo-data  - Synthesize claims")
	fmt.Println("    GET  /api/v1/alerts/high-risk    - Recent high-risk scores")
	fmt.Println("    GET  /api/v1/rules               - List screening rules")
	fmt.Println("    POST /api/v1/rules               - Create a rule")
	fmt.Println("    POST /api/v1/rules/reload        - Hot-reload rules")
	fmt.Println("    GET  /api/v1/schemes             - List fraud schemes")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println("    GET  /metrics                    - Prometheus metrics")
	fmt.Println()
}
