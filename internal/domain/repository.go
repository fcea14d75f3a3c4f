// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, claim *Claim) error
	SaveClaims(ctx context.Context, claims []*Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	GetClaimsByProvider(ctx context.Context, providerID string, since time.Time) ([]*Claim, error)

	// Score results
	SaveScore(ctx context.Context, score *ScoreResult) error
	GetScore(ctx context.Context, scoreID string) (*ScoreResult, error)
	ListHighRiskScores(ctx context.Context, minProbability float64, limit int) ([]*ScoreResult, error)

	// Model artifacts (serialized fitted models)
	SaveArtifact(ctx context.Context, artifact *ModelArtifact) error
	GetLatestArtifact(ctx context.Context, model string) (*ModelArtifact, error)

	// Metrics snapshots
	SaveMetrics(ctx context.Context, metrics *ModelMetrics) error
	GetLatestMetrics(ctx context.Context, model string) (*ModelMetrics, error)

	// Screening rule configuration
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
