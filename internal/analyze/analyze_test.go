package analyze

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

func TestAssessor(t *testing.T) {
	assessor := NewAssessor()
	ctx := context.Background()

	t.Run("AllPass", func(t *testing.T) {
		input := &AssessInput{
			ClaimID:     "CLM_00000001",
			TraceID:     "trace-001",
			Probability: 0.2,
			StartTime:   time.Now(),
			RuleResults: []domain.RuleResult{
				{RuleID: "rule-1", Score: 0.0, SubRuleRef: domain.RuleOutcomePass},
				{RuleID: "rule-2", Score: 0.0, SubRuleRef: domain.RuleOutcomePass},
			},
		}

		a := assessor.Assess(ctx, input)

		if a.Status != domain.StatusNoAlert {
			t.Errorf("expected NALT, got %s", a.Status)
		}
		if a.Score != 0.2 {
			t.Errorf("expected score 0.2, got %.2f", a.Score)
		}
		if a.ClaimID != "CLM_00000001" {
			t.Errorf("expected claimID 'CLM_00000001', got '%s'", a.ClaimID)
		}
		if a.Metadata.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", a.Metadata.TraceID)
		}
		if a.Metadata.RulesEvaluated != 2 {
			t.Errorf("expected 2 rules evaluated, got %d", a.Metadata.RulesEvaluated)
		}
	})

	t.Run("RuleFailure", func(t *testing.T) {
		input := &AssessInput{
			ClaimID:     "CLM_00000002",
			Probability: 0.1,
			StartTime:   time.Now(),
			RuleResults: []domain.RuleResult{
				{RuleID: "rule-1", Score: 1.0, SubRuleRef: domain.RuleOutcomeFail, Reason: "high amount"},
			},
		}

		a := assessor.Assess(ctx, input)

		if a.Status != domain.StatusAlert {
			t.Errorf("expected ALRT for rule failure, got %s", a.Status)
		}
		if len(a.Reasons) != 1 || a.Reasons[0] != "high amount" {
			t.Errorf("expected reason 'high amount', got %v", a.Reasons)
		}
	})

	t.Run("HighProbability", func(t *testing.T) {
		input := &AssessInput{
			ClaimID:     "CLM_00000003",
			Probability: 0.85,
			StartTime:   time.Now(),
		}

		a := assessor.Assess(ctx, input)

		if a.Status != domain.StatusAlert {
			t.Errorf("expected ALRT for high probability, got %s", a.Status)
		}
		if a.RiskLevel != domain.RiskCritical {
			t.Errorf("expected CRITICAL risk, got %s", a.RiskLevel)
		}
	})

	t.Run("SchemeTriggered", func(t *testing.T) {
		input := &AssessInput{
			ClaimID:     "CLM_00000004",
			Probability: 0.3,
			StartTime:   time.Now(),
			SchemeResults: []domain.SchemeResult{
				{SchemeID: "scheme-1", SchemeName: "Phantom billing", Score: 0.9, Triggered: true},
			},
		}

		a := assessor.Assess(ctx, input)

		if a.Status != domain.StatusAlert {
			t.Errorf("expected ALRT for triggered scheme, got %s", a.Status)
		}

		// Scheme score dominates the model probability
		if a.Score != 0.9 {
			t.Errorf("expected score 0.9, got %.2f", a.Score)
		}

		found := false
		for _, r := range a.Reasons {
			if r == "fraud scheme: Phantom billing" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected scheme reason, got %v", a.Reasons)
		}
	})

	t.Run("EmptyResults", func(t *testing.T) {
		input := &AssessInput{
			ClaimID:     "CLM_00000005",
			Probability: 0.1,
			StartTime:   time.Now(),
		}

		a := assessor.Assess(ctx, input)

		if a.Status != domain.StatusNoAlert {
			t.Errorf("expected NALT for empty results, got %s", a.Status)
		}
		if a.Score != 0.1 {
			t.Errorf("expected score 0.1, got %.2f", a.Score)
		}
	})

	t.Run("ScoreCappedAtOne", func(t *testing.T) {
		input := &AssessInput{
			ClaimID:     "CLM_00000006",
			Probability: 0.5,
			StartTime:   time.Now(),
			SchemeResults: []domain.SchemeResult{
				{SchemeID: "scheme-1", Score: 1.4, Triggered: true},
			},
		}

		a := assessor.Assess(ctx, input)

		if a.Score != 1.0 {
			t.Errorf("expected score capped at 1.0, got %.2f", a.Score)
		}
	})
}

func TestShouldAlert(t *testing.T) {
	if !ShouldAlert(&domain.Assessment{Status: domain.StatusAlert}) {
		t.Error("expected true for ALRT")
	}
	if ShouldAlert(&domain.Assessment{Status: domain.StatusNoAlert}) {
		t.Error("expected false for NALT")
	}
}

func TestBuildReport(t *testing.T) {
	claims := []*domain.Claim{
		{ID: "c1", ProviderID: "PROV_0001", Amount: 1000},
		{ID: "c2", ProviderID: "PROV_0001", Amount: 2000},
		{ID: "c3", ProviderID: "PROV_0002", Amount: 500},
	}
	assessments := []*domain.Assessment{
		{ClaimID: "c1", Status: domain.StatusAlert, Score: 0.9, RiskLevel: domain.RiskCritical},
		{ClaimID: "c2", Status: domain.StatusNoAlert, Score: 0.2, RiskLevel: domain.RiskLow},
		{ClaimID: "c3", Status: domain.StatusNoAlert, Score: 0.1, RiskLevel: domain.RiskLow},
	}

	report := BuildReport(claims, assessments)

	if report.Claims != 3 {
		t.Errorf("expected 3 claims, got %d", report.Claims)
	}
	if report.Flagged != 1 {
		t.Errorf("expected 1 flagged, got %d", report.Flagged)
	}
	if report.FraudRate < 0.33 || report.FraudRate > 0.34 {
		t.Errorf("expected fraud rate ~0.33, got %.3f", report.FraudRate)
	}
	if report.TotalAmount != 3500 {
		t.Errorf("expected total amount 3500, got %.0f", report.TotalAmount)
	}
	if report.FlaggedAmount != 1000 {
		t.Errorf("expected flagged amount 1000, got %.0f", report.FlaggedAmount)
	}
	if report.ByRisk[domain.RiskCritical] != 1 {
		t.Errorf("expected 1 critical claim, got %d", report.ByRisk[domain.RiskCritical])
	}

	if len(report.ByProvider) != 2 {
		t.Fatalf("expected 2 provider summaries, got %d", len(report.ByProvider))
	}

	// Provider with flagged claims sorts first
	if report.ByProvider[0].ProviderID != "PROV_0001" {
		t.Errorf("expected PROV_0001 first, got %s", report.ByProvider[0].ProviderID)
	}
	if report.ByProvider[0].Claims != 2 || report.ByProvider[0].Flagged != 1 {
		t.Errorf("unexpected PROV_0001 summary: %+v", report.ByProvider[0])
	}
	if report.ByProvider[0].TotalAmount != 3000 {
		t.Errorf("expected PROV_0001 amount 3000, got %.0f", report.ByProvider[0].TotalAmount)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil, nil)

	if report.Claims != 0 || report.Flagged != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if report.FraudRate != 0 {
		t.Errorf("expected fraud rate 0, got %.2f", report.FraudRate)
	}
}
