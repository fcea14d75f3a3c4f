// Package worker provides async claim scoring from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-health/heron/internal/analyze"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/rules"
)

// Scorer produces predictions for claim batches. Satisfied by the
// model ensemble.
type Scorer interface {
	Predict(claims []*domain.Claim, override domain.VotingPolicy) (*domain.Prediction, error)
}

// Worker processes score requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	scorer   Scorer
	engine   *rules.Engine
	schemes  *rules.SchemeEngine
	assessor *analyze.Assessor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async scoring worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, scorer Scorer, engine *rules.Engine, schemes *rules.SchemeEngine, assessor *analyze.Assessor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		scorer:   scorer,
		engine:   engine,
		schemes:  schemes,
		assessor: assessor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the worker to the score request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScoreRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("scoring worker started",
		"topic", domain.TopicScoreRequested,
	)

	return nil
}

// ScoreRequestMessage is the payload for async score requests.
type ScoreRequestMessage struct {
	RequestID string                `json:"requestId"`
	TraceID   string                `json:"traceId,omitempty"`
	Policy    string                `json:"policy,omitempty"`
	Claims    []domain.ClaimRequest `json:"claims"`
}

// ScoredMessage is published after a batch has been scored.
type ScoredMessage struct {
	RequestID   string               `json:"requestId"`
	Prediction  *domain.Prediction   `json:"prediction"`
	Assessments []*domain.Assessment `json:"assessments,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	// Stop waits for in-flight requests before returning
	w.wg.Add(1)
	defer w.wg.Done()
	return w.processRequest(ctx, msg)
}

// processRequest scores a claim batch through the full pipeline.
func (w *Worker) processRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req ScoreRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse score request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	claims := make([]*domain.Claim, 0, len(req.Claims))
	for i := range req.Claims {
		claims = append(claims, req.Claims[i].ToClaim())
	}

	slog.Debug("processing score request",
		"request_id", req.RequestID,
		"claims", len(claims),
		"trace_id", traceID,
	)

	// 1. Run the model ensemble
	var policy domain.VotingPolicy
	if req.Policy != "" {
		parsed, err := domain.ParsePolicy(req.Policy)
		if err != nil {
			slog.Error("invalid policy in score request",
				"request_id", req.RequestID,
				"error", err,
			)
			return err
		}
		policy = parsed
	}
	prediction, err := w.scorer.Predict(claims, policy)
	if err != nil {
		slog.Error("scoring failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}

	// 2. Screen each claim and build assessments
	assessments := make([]*domain.Assessment, len(claims))
	highRisk := 0
	for i, claim := range claims {
		var ruleResults []domain.RuleResult
		if w.engine != nil && w.engine.RulesCount() > 0 {
			ruleResults, err = w.engine.EvaluateAll(ctx, rules.InputFromClaim(claim, 3600))
			if err != nil {
				slog.Error("rule evaluation failed",
					"claim_id", claim.ID,
					"error", err,
				)
			}
		}

		var schemeResults []domain.SchemeResult
		if w.schemes != nil && w.schemes.SchemeCount() > 0 {
			schemeResults = w.schemes.EvaluateSchemes(ruleResults)
		}

		assessments[i] = w.assessor.Assess(ctx, &analyze.AssessInput{
			ClaimID:       claim.ID,
			TraceID:       traceID,
			Probability:   prediction.Probabilities[i],
			RuleResults:   ruleResults,
			SchemeResults: schemeResults,
			StartTime:     start,
		})

		if analyze.ShouldAlert(assessments[i]) {
			highRisk++
		}

		// 3. Persist the score
		if w.repo != nil {
			score := &domain.ScoreResult{
				ID:          prediction.ID + ":" + claim.ID,
				ClaimID:     claim.ID,
				ProviderID:  claim.ProviderID,
				Model:       domain.ModelEnsemble,
				Label:       prediction.Labels[i],
				Probability: prediction.Probabilities[i],
				RiskLevel:   prediction.RiskLevels[i],
				Reasons:     assessments[i].Reasons,
				CreatedAt:   time.Now().UTC(),
			}
			if err := w.repo.SaveScore(ctx, score); err != nil {
				slog.Error("failed to save score",
					"claim_id", claim.ID,
					"error", err,
				)
			}
		}
	}

	// 4. Publish the scored batch
	resultPayload, _ := json.Marshal(&ScoredMessage{
		RequestID:   req.RequestID,
		Prediction:  prediction,
		Assessments: assessments,
	})
	if err := w.bus.Publish(ctx, domain.TopicClaimScored, resultPayload); err != nil {
		slog.Error("failed to publish scored batch",
			"request_id", req.RequestID,
			"error", err,
		)
	}

	// 5. Publish alerts for flagged claims
	for i, a := range assessments {
		if !analyze.ShouldAlert(a) {
			continue
		}
		alertPayload, _ := json.Marshal(a)
		if err := w.bus.Publish(ctx, domain.TopicHighRiskAlert, alertPayload); err != nil {
			slog.Error("failed to publish alert",
				"claim_id", claims[i].ID,
				"error", err,
			)
		}
	}

	slog.Info("score request processed",
		"request_id", req.RequestID,
		"claims", len(claims),
		"flagged", highRisk,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("scoring worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
