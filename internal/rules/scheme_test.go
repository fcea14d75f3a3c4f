package rules

import (
	"testing"

	"github.com/opensource-health/heron/internal/domain"
)

func testScheme() *domain.FraudScheme {
	return &domain.FraudScheme{
		ID:   "scheme-test",
		Name: "Test Scheme",
		Rules: []domain.SchemeRule{
			{RuleID: "rule-a", Weight: 0.6},
			{RuleID: "rule-b", Weight: 0.4},
		},
		AlertThreshold: 0.5,
		Enabled:        true,
	}
}

func TestSchemeEngineCreation(t *testing.T) {
	engine := NewSchemeEngine()
	defer engine.Close()

	if engine.SchemeCount() != 0 {
		t.Errorf("expected 0 schemes, got %d", engine.SchemeCount())
	}
}

func TestLoadSchemes(t *testing.T) {
	engine := NewSchemeEngine()
	defer engine.Close()

	disabled := testScheme()
	disabled.ID = "scheme-disabled"
	disabled.Enabled = false

	engine.LoadSchemes([]*domain.FraudScheme{testScheme(), disabled})

	if engine.SchemeCount() != 1 {
		t.Errorf("expected 1 enabled scheme, got %d", engine.SchemeCount())
	}
}

func TestEvaluateSchemes(t *testing.T) {
	engine := NewSchemeEngine()
	defer engine.Close()

	engine.LoadSchemes([]*domain.FraudScheme{testScheme()})

	t.Run("Triggered", func(t *testing.T) {
		results := engine.EvaluateSchemes([]domain.RuleResult{
			{RuleID: "rule-a", Score: 1.0},
			{RuleID: "rule-b", Score: 1.0},
		})

		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}

		// 1.0*0.6 + 1.0*0.4 = 1.0 >= 0.5
		if results[0].Score != 1.0 {
			t.Errorf("expected score 1.0, got %.2f", results[0].Score)
		}
		if !results[0].Triggered {
			t.Error("expected scheme to trigger")
		}
		if len(results[0].Contributions) != 2 {
			t.Errorf("expected 2 contributions, got %d", len(results[0].Contributions))
		}
	})

	t.Run("NotTriggered", func(t *testing.T) {
		results := engine.EvaluateSchemes([]domain.RuleResult{
			{RuleID: "rule-a", Score: 0.0},
			{RuleID: "rule-b", Score: 1.0},
		})

		// 0.0*0.6 + 1.0*0.4 = 0.4 < 0.5
		if results[0].Score != 0.4 {
			t.Errorf("expected score 0.4, got %.2f", results[0].Score)
		}
		if results[0].Triggered {
			t.Error("scheme should not trigger below threshold")
		}
	})

	t.Run("MissingRuleSkipped", func(t *testing.T) {
		results := engine.EvaluateSchemes([]domain.RuleResult{
			{RuleID: "rule-a", Score: 1.0},
		})

		if results[0].Score != 0.6 {
			t.Errorf("expected score 0.6 with missing rule, got %.2f", results[0].Score)
		}
		if len(results[0].Contributions) != 1 {
			t.Errorf("expected 1 contribution, got %d", len(results[0].Contributions))
		}
	})

	t.Run("ThresholdBoundary", func(t *testing.T) {
		scheme := testScheme()
		scheme.AlertThreshold = 0.6
		engine.ReloadSchemes([]*domain.FraudScheme{scheme})

		results := engine.EvaluateSchemes([]domain.RuleResult{
			{RuleID: "rule-a", Score: 1.0},
		})

		// Score exactly at threshold triggers
		if !results[0].Triggered {
			t.Error("expected trigger at exact threshold")
		}

		engine.ReloadSchemes([]*domain.FraudScheme{testScheme()})
	})
}

func TestEvaluateSchemeByID(t *testing.T) {
	engine := NewSchemeEngine()
	defer engine.Close()

	engine.LoadSchemes([]*domain.FraudScheme{testScheme()})

	result, found := engine.EvaluateScheme("scheme-test", []domain.RuleResult{
		{RuleID: "rule-a", Score: 1.0},
		{RuleID: "rule-b", Score: 0.5},
	})
	if !found {
		t.Fatal("expected scheme to be found")
	}

	// 1.0*0.6 + 0.5*0.4 = 0.8
	if result.Score != 0.8 {
		t.Errorf("expected score 0.8, got %.2f", result.Score)
	}

	_, found = engine.EvaluateScheme("nonexistent", nil)
	if found {
		t.Error("expected nonexistent scheme to not be found")
	}
}

func TestGetTriggeredSchemes(t *testing.T) {
	engine := NewSchemeEngine()
	defer engine.Close()

	low := testScheme()
	high := testScheme()
	high.ID = "scheme-high"
	high.AlertThreshold = 2.0 // unreachable

	engine.LoadSchemes([]*domain.FraudScheme{low, high})

	triggered := engine.GetTriggeredSchemes([]domain.RuleResult{
		{RuleID: "rule-a", Score: 1.0},
		{RuleID: "rule-b", Score: 1.0},
	})

	if len(triggered) != 1 {
		t.Fatalf("expected 1 triggered scheme, got %d", len(triggered))
	}
	if triggered[0].SchemeID != "scheme-test" {
		t.Errorf("expected scheme-test triggered, got %s", triggered[0].SchemeID)
	}
}

func TestDefaultSchemesReferenceBuiltinRules(t *testing.T) {
	known := make(map[string]bool)
	for _, r := range BuiltinRules() {
		known[r.ID] = true
	}

	for _, scheme := range DefaultSchemes() {
		for _, sr := range scheme.Rules {
			if !known[sr.RuleID] {
				t.Errorf("scheme %s references unknown rule %s", scheme.ID, sr.RuleID)
			}
		}
	}
}
