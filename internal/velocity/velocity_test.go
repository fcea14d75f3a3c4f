package velocity

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/cache"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/repository"
)

func TestVelocityService(t *testing.T) {
	// Create temp database
	tmpFile, err := os.CreateTemp("", "velocity-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	// Create repository
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	// Create cache
	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	// Create velocity service
	svc := NewService(repo, lruCache)

	ctx := context.Background()

	t.Run("EmptyDatabase", func(t *testing.T) {
		count, err := svc.GetClaimCount(ctx, "PROV_0001", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for empty database, got %d", count)
		}
	})

	t.Run("WithClaims", func(t *testing.T) {
		// Insert some claims
		for i := 0; i < 5; i++ {
			claim := &domain.Claim{
				ID:            fmt.Sprintf("CLM_%08d", i),
				PatientID:     "PAT_000001",
				ProviderID:    "PROV_0002",
				DiagnosisCode: "J18.9",
				ProcedureCode: "99213",
				Amount:        150.0,
				ClaimDate:     time.Now().UTC(),
				CreatedAt:     time.Now().UTC(),
			}
			if err := repo.SaveClaim(ctx, claim); err != nil {
				t.Fatalf("failed to save claim: %v", err)
			}
		}

		count, err := svc.GetClaimCount(ctx, "PROV_0002", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 5 {
			t.Errorf("expected count 5 for provider, got %d", count)
		}

		// Check unknown provider
		count, err = svc.GetClaimCount(ctx, "PROV_9999", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for unknown provider, got %d", count)
		}
	})

	t.Run("CachedCount", func(t *testing.T) {
		// First call populates the cache
		count, err := svc.GetClaimCount(ctx, "PROV_0002", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 5 {
			t.Errorf("expected count 5, got %d", count)
		}

		// Add another claim; cached value should still be served
		claim := &domain.Claim{
			ID:         "CLM_00000099",
			PatientID:  "PAT_000001",
			ProviderID: "PROV_0002",
			Amount:     150.0,
			ClaimDate:  time.Now().UTC(),
			CreatedAt:  time.Now().UTC(),
		}
		if err := repo.SaveClaim(ctx, claim); err != nil {
			t.Fatalf("failed to save claim: %v", err)
		}

		count, err = svc.GetClaimCount(ctx, "PROV_0002", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 5 {
			t.Errorf("expected cached count 5, got %d", count)
		}
	})

	t.Run("RequiresProviderID", func(t *testing.T) {
		_, err := svc.GetClaimCount(ctx, "", 3600)
		if err == nil {
			t.Error("expected error for empty providerID")
		}
	})

	t.Run("VelocityGetter", func(t *testing.T) {
		getter := svc.GetVelocityGetter()
		if getter == nil {
			t.Fatal("GetVelocityGetter returned nil")
		}

		count, err := getter(ctx, "PROV_0002", 3600)
		if err != nil {
			t.Fatalf("VelocityGetter failed: %v", err)
		}
		if count != 5 {
			t.Errorf("expected count 5, got %d", count)
		}
	})
}

func TestNoDataSource(t *testing.T) {
	svc := &Service{} // No repo

	ctx := context.Background()
	_, err := svc.GetClaimCount(ctx, "PROV_0001", 3600)
	if err == nil {
		t.Error("expected error with no data source")
	}
}
