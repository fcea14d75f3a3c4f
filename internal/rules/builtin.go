package rules

import "github.com/opensource-health/heron/internal/domain"

func limit(v float64) *float64 { return &v }

// BuiltinRules returns the default claim screening rules. They are
// seeded into the database on first start and can be replaced via the
// rules API afterwards.
func BuiltinRules() []*domain.RuleConfig {
	failBands := []domain.RuleBand{
		{LowerLimit: limit(0), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "within normal range"},
		{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeFail, Reason: "screening rule triggered"},
	}

	return []*domain.RuleConfig{
		{
			ID:          "rule-high-amount",
			Name:        "High claim amount",
			Description: "Flags claims above the high-amount screening threshold",
			Version:     "1.0.0",
			Expression:  "amount > 50000.0",
			Bands:       failBands,
			Enabled:     true,
		},
		{
			ID:          "rule-night-claim",
			Name:        "Off-hours claim",
			Description: "Flags claims filed between 22:00 and 05:00",
			Version:     "1.0.0",
			Expression:  "claim_hour >= 22 || claim_hour <= 5",
			Bands:       failBands,
			Enabled:     true,
		},
		{
			ID:          "rule-location-mismatch",
			Name:        "Location mismatch",
			Description: "Flags claims where patient and provider locations differ",
			Version:     "1.0.0",
			Expression:  "patient_location != provider_location",
			Bands: []domain.RuleBand{
				{LowerLimit: limit(0), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "locations match"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "patient treated outside home region"},
			},
			Enabled: true,
		},
		{
			ID:          "rule-provider-velocity",
			Name:        "Provider claim velocity",
			Description: "Flags providers filing an unusual number of claims in an hour",
			Version:     "1.0.0",
			Expression:  "velocity_count > 20",
			Bands:       failBands,
			Enabled:     true,
		},
		{
			ID:          "rule-pediatric-procedure",
			Name:        "Age-inconsistent procedure",
			Description: "Flags gallbladder surgery billed for pediatric patients",
			Version:     "1.0.0",
			Expression:  "procedure_code == '47562' && patient_age < 12",
			Bands:       failBands,
			Enabled:     true,
		},
	}
}

// DefaultSchemes returns the default fraud schemes built on the
// builtin screening rules.
func DefaultSchemes() []*domain.FraudScheme {
	return []*domain.FraudScheme{
		{
			ID:          "scheme-phantom-billing",
			Name:        "Phantom billing",
			Description: "Services billed that were never rendered",
			Rules: []domain.SchemeRule{
				{RuleID: "rule-night-claim", Weight: 0.5},
				{RuleID: "rule-provider-velocity", Weight: 0.5},
			},
			AlertThreshold: 0.8,
			Enabled:        true,
		},
		{
			ID:          "scheme-billing-inflation",
			Name:        "Billing inflation",
			Description: "Claim amounts inflated beyond procedure norms",
			Rules: []domain.SchemeRule{
				{RuleID: "rule-high-amount", Weight: 0.7},
				{RuleID: "rule-provider-velocity", Weight: 0.3},
			},
			AlertThreshold: 0.7,
			Enabled:        true,
		},
		{
			ID:          "scheme-identity-misuse",
			Name:        "Identity misuse",
			Description: "Claims inconsistent with the patient identity on file",
			Rules: []domain.SchemeRule{
				{RuleID: "rule-location-mismatch", Weight: 0.4},
				{RuleID: "rule-pediatric-procedure", Weight: 0.6},
			},
			AlertThreshold: 0.6,
			Enabled:        true,
		},
	}
}
