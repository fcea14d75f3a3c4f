package rules

import (
	"sync"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// SchemeEngine evaluates fraud schemes based on rule results.
// It calculates weighted scores from individual rule results.
type SchemeEngine struct {
	mu      sync.RWMutex
	schemes map[string]*domain.FraudScheme // key: schemeID
}

// NewSchemeEngine creates a new fraud scheme evaluation engine.
func NewSchemeEngine() *SchemeEngine {
	return &SchemeEngine{
		schemes: make(map[string]*domain.FraudScheme),
	}
}

// LoadSchemes loads scheme configurations into the engine.
func (e *SchemeEngine) LoadSchemes(schemes []*domain.FraudScheme) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.schemes = make(map[string]*domain.FraudScheme)
	for _, s := range schemes {
		if s.Enabled {
			e.schemes[s.ID] = s
		}
	}
}

// ReloadSchemes clears and reloads schemes (hot reload).
func (e *SchemeEngine) ReloadSchemes(schemes []*domain.FraudScheme) {
	e.LoadSchemes(schemes)
}

// GetLoadedSchemes returns currently loaded schemes.
func (e *SchemeEngine) GetLoadedSchemes() []*domain.FraudScheme {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*domain.FraudScheme, 0, len(e.schemes))
	for _, s := range e.schemes {
		result = append(result, s)
	}
	return result
}

// SchemeCount returns the number of loaded schemes.
func (e *SchemeEngine) SchemeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.schemes)
}

// EvaluateSchemes calculates scheme scores from rule results.
// For each scheme, it calculates a weighted sum of the rule scores
// and determines if the threshold is exceeded.
//
// Algorithm:
// 1. Build a map of ruleID -> score from rule results
// 2. For each scheme, sum (rule_score * weight) for matching rules
// 3. Compare against alert threshold
// 4. Return evaluated schemes
func (e *SchemeEngine) EvaluateSchemes(ruleResults []domain.RuleResult) []domain.SchemeResult {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.schemes) == 0 {
		return nil
	}

	// Build rule score map for O(1) lookups
	ruleScores := make(map[string]float64, len(ruleResults))
	for _, r := range ruleResults {
		ruleScores[r.RuleID] = r.Score
	}

	results := make([]domain.SchemeResult, 0, len(e.schemes))

	for _, scheme := range e.schemes {
		result := e.evaluateScheme(scheme, ruleScores)
		result.ProcessMs = time.Since(start).Milliseconds()
		results = append(results, result)
	}

	return results
}

// evaluateScheme calculates the score for a single scheme.
func (e *SchemeEngine) evaluateScheme(scheme *domain.FraudScheme, ruleScores map[string]float64) domain.SchemeResult {
	result := domain.SchemeResult{
		SchemeID:      scheme.ID,
		SchemeName:    scheme.Name,
		Threshold:     scheme.AlertThreshold,
		Contributions: make([]domain.RuleContribution, 0, len(scheme.Rules)),
	}

	var totalScore float64

	for _, schemeRule := range scheme.Rules {
		ruleScore, exists := ruleScores[schemeRule.RuleID]
		if !exists {
			// Rule not evaluated - skip
			continue
		}

		contribution := ruleScore * schemeRule.Weight
		totalScore += contribution

		result.Contributions = append(result.Contributions, domain.RuleContribution{
			RuleID:       schemeRule.RuleID,
			RuleScore:    ruleScore,
			Weight:       schemeRule.Weight,
			Contribution: contribution,
		})
	}

	result.Score = totalScore
	result.Triggered = totalScore >= scheme.AlertThreshold

	return result
}

// EvaluateScheme evaluates a single scheme by ID.
func (e *SchemeEngine) EvaluateScheme(schemeID string, ruleResults []domain.RuleResult) (*domain.SchemeResult, bool) {
	e.mu.RLock()
	scheme, exists := e.schemes[schemeID]
	if !exists {
		e.mu.RUnlock()
		return nil, false
	}

	// Build rule score map while holding lock
	ruleScores := make(map[string]float64, len(ruleResults))
	for _, r := range ruleResults {
		ruleScores[r.RuleID] = r.Score
	}

	// Evaluate while holding lock to prevent data race on scheme pointer
	result := e.evaluateScheme(scheme, ruleScores)
	e.mu.RUnlock()

	return &result, true
}

// GetTriggeredSchemes returns only schemes that met their threshold.
func (e *SchemeEngine) GetTriggeredSchemes(ruleResults []domain.RuleResult) []domain.SchemeResult {
	all := e.EvaluateSchemes(ruleResults)
	triggered := make([]domain.SchemeResult, 0)
	for _, s := range all {
		if s.Triggered {
			triggered = append(triggered, s)
		}
	}
	return triggered
}

// Close cleans up the engine.
func (e *SchemeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.schemes = make(map[string]*domain.FraudScheme)
	return nil
}
