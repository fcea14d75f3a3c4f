// Package velocity provides provider claim velocity calculation.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// Service calculates claim filing velocity for providers. Counts are
// cached per provider to keep screening cheap on hot paths.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: 30 * time.Second,
	}
}

// GetClaimCount returns the number of claims a provider filed within a
// time window. This is the VelocityGetter function signature expected
// by the rule engine.
func (s *Service) GetClaimCount(ctx context.Context, providerID string, windowSecs int) (int64, error) {
	if providerID == "" {
		return 0, fmt.Errorf("providerID is required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	cacheKey := fmt.Sprintf("velocity:%s:%d", providerID, windowSecs)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var count int64
			if _, err := fmt.Sscanf(string(cached), "%d", &count); err == nil {
				return count, nil
			}
		}
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	claims, err := s.repo.GetClaimsByProvider(ctx, providerID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to get claims: %w", err)
	}
	count := int64(len(claims))

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, []byte(fmt.Sprintf("%d", count)), s.cacheTTL)
	}

	return count, nil
}

// GetVelocityGetter returns a VelocityGetter function for the rule engine.
func (s *Service) GetVelocityGetter() func(ctx context.Context, providerID string, windowSecs int) (int64, error) {
	return s.GetClaimCount
}
