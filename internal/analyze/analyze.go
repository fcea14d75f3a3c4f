// Package analyze produces final claim assessments and batch reports.
// It aggregates the ensemble probability with screening rule and fraud
// scheme results to make a final alert decision.
package analyze

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-health/heron/internal/domain"
)

// EngineVersion stamps assessments with the decision engine release.
const EngineVersion = "heron-1.0"

// Assessor aggregates model and rule results into a final decision.
type Assessor struct {
	// Threshold above which a claim is flagged as ALERT
	AlertThreshold float64
}

// NewAssessor creates an assessor with default settings.
func NewAssessor() *Assessor {
	return &Assessor{
		AlertThreshold: 0.7,
	}
}

// AssessInput contains all data needed for a decision on one claim.
type AssessInput struct {
	ClaimID       string
	TraceID       string
	Probability   float64
	RuleResults   []domain.RuleResult
	SchemeResults []domain.SchemeResult
	StartTime     time.Time
}

// Assess evaluates one claim and produces a final assessment.
func (a *Assessor) Assess(ctx context.Context, input *AssessInput) *domain.Assessment {
	start := time.Now()

	assessment := &domain.Assessment{
		ID:            uuid.New().String(),
		ClaimID:       input.ClaimID,
		Timestamp:     time.Now().UTC(),
		RuleResults:   input.RuleResults,
		SchemeResults: input.SchemeResults,
	}

	ruleFailure := false
	for _, r := range input.RuleResults {
		if r.SubRuleRef == domain.RuleOutcomeFail {
			ruleFailure = true
		}
		if r.SubRuleRef == domain.RuleOutcomeFail || r.SubRuleRef == domain.RuleOutcomeReview {
			if r.Reason != "" {
				assessment.Reasons = append(assessment.Reasons, r.Reason)
			}
		}
	}

	schemeTriggered := false
	maxSchemeScore := 0.0
	for _, s := range input.SchemeResults {
		if s.Triggered {
			schemeTriggered = true
			assessment.Reasons = append(assessment.Reasons, "fraud scheme: "+s.SchemeName)
		}
		if s.Score > maxSchemeScore {
			maxSchemeScore = s.Score
		}
	}

	// Final score is the stronger of the model probability and the
	// scheme evidence, capped at 1.
	score := input.Probability
	if maxSchemeScore > score {
		score = maxSchemeScore
	}
	if score > 1 {
		score = 1
	}

	assessment.Score = score
	assessment.RiskLevel = domain.RiskLevelFor(score)

	if schemeTriggered || ruleFailure || input.Probability >= a.AlertThreshold {
		assessment.Status = domain.StatusAlert
	} else {
		assessment.Status = domain.StatusNoAlert
	}

	decisionMs := time.Since(start).Milliseconds()
	totalMs := decisionMs
	if !input.StartTime.IsZero() {
		totalMs = time.Since(input.StartTime).Milliseconds()
	}

	assessment.Metadata = domain.AssessmentMetadata{
		TraceID:          input.TraceID,
		RulesEvaluated:   len(input.RuleResults),
		SchemesEvaluated: len(input.SchemeResults),
		DecisionMs:       decisionMs,
		TotalMs:          totalMs,
		EngineVersion:    EngineVersion,
	}

	return assessment
}

// ShouldAlert returns true if the assessment should trigger an alert.
func ShouldAlert(a *domain.Assessment) bool {
	return a.Status == domain.StatusAlert
}

// BuildReport aggregates assessments over a batch of claims. Claims
// and assessments must be index-aligned.
func BuildReport(claims []*domain.Claim, assessments []*domain.Assessment) *domain.BatchReport {
	report := &domain.BatchReport{
		Claims:      len(claims),
		ByRisk:      make(map[domain.RiskLevel]int),
		Assessments: assessments,
	}

	type providerAgg struct {
		claims  int
		flagged int
		probSum float64
		amount  float64
	}
	providers := make(map[string]*providerAgg)

	for i, a := range assessments {
		report.ByRisk[a.RiskLevel]++

		var amount float64
		providerID := ""
		if i < len(claims) {
			amount = claims[i].Amount
			providerID = claims[i].ProviderID
		}
		report.TotalAmount += amount

		if ShouldAlert(a) {
			report.Flagged++
			report.FlaggedAmount += amount
		}

		if providerID != "" {
			agg, ok := providers[providerID]
			if !ok {
				agg = &providerAgg{}
				providers[providerID] = agg
			}
			agg.claims++
			agg.probSum += a.Score
			agg.amount += amount
			if ShouldAlert(a) {
				agg.flagged++
			}
		}
	}

	if report.Claims > 0 {
		report.FraudRate = float64(report.Flagged) / float64(report.Claims)
	}

	report.ByProvider = make([]domain.ProviderSummary, 0, len(providers))
	for id, agg := range providers {
		report.ByProvider = append(report.ByProvider, domain.ProviderSummary{
			ProviderID:      id,
			Claims:          agg.claims,
			Flagged:         agg.flagged,
			MeanProbability: agg.probSum / float64(agg.claims),
			TotalAmount:     agg.amount,
		})
	}

	// Most flagged providers first, then by mean probability.
	sort.Slice(report.ByProvider, func(i, j int) bool {
		if report.ByProvider[i].Flagged != report.ByProvider[j].Flagged {
			return report.ByProvider[i].Flagged > report.ByProvider[j].Flagged
		}
		return report.ByProvider[i].MeanProbability > report.ByProvider[j].MeanProbability
	})

	return report
}
