package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-health/heron/internal/analyze"
	"github.com/opensource-health/heron/internal/datagen"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/feature"
	"github.com/opensource-health/heron/internal/model"
	"github.com/opensource-health/heron/internal/rules"
	"github.com/opensource-health/heron/internal/telemetry"
	"github.com/opensource-health/heron/internal/worker"
)

const predictCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	ensemble *model.Ensemble
	engine   *rules.Engine
	schemes  *rules.SchemeEngine
	assessor *analyze.Assessor
	metrics  *telemetry.Metrics
	version  string
	modelCfg domain.ModelConfig
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, ensemble *model.Ensemble, engine *rules.Engine, schemes *rules.SchemeEngine, assessor *analyze.Assessor, metrics *telemetry.Metrics, version string, modelCfg domain.ModelConfig) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		ensemble: ensemble,
		engine:   engine,
		schemes:  schemes,
		assessor: assessor,
		metrics:  metrics,
		version:  version,
		modelCfg: modelCfg,
	}
}

// GenerateSpec asks the server to synthesize labeled claims.
type GenerateSpec struct {
	Count     int     `json:"count"`
	FraudRate float64 `json:"fraudRate"`
	Seed      *int64  `json:"seed,omitempty"`
}

// TrainRequest is the request body for POST /api/v1/models/train.
// Callers either submit labeled claims or ask for generated data.
type TrainRequest struct {
	Claims   []domain.ClaimRequest `json:"claims,omitempty"`
	Labels   []int                 `json:"labels,omitempty"`
	Generate *GenerateSpec         `json:"generate,omitempty"`
	Persist  bool                  `json:"persist,omitempty"`
}

// TrainResponse is the response for POST /api/v1/models/train.
type TrainResponse struct {
	Status     string                          `json:"status"`
	Samples    int                             `json:"samples"`
	DurationMs int64                           `json:"durationMs"`
	Metrics    map[string]*domain.ModelMetrics `json:"metrics"`
	Model      domain.ModelStatus              `json:"model"`
}

// Train handles POST /api/v1/models/train.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	var claims []*domain.Claim
	var labels []int

	switch {
	case req.Generate != nil:
		if req.Generate.Count <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "generate.count must be positive",
			})
			return
		}
		seed := h.modelCfg.Seed
		if req.Generate.Seed != nil {
			seed = *req.Generate.Seed
		}
		gen := datagen.New(seed)
		claims, labels = gen.Generate(req.Generate.Count, req.Generate.FraudRate)

	case len(req.Claims) > 0:
		if len(req.Claims) != len(req.Labels) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "claims and labels must have the same length",
			})
			return
		}
		claims = make([]*domain.Claim, 0, len(req.Claims))
		for i := range req.Claims {
			claims = append(claims, req.Claims[i].ToClaim())
		}
		labels = req.Labels

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "either claims+labels or generate is required",
		})
		return
	}

	if req.Persist && h.repo != nil {
		if err := h.repo.SaveClaims(ctx, claims); err != nil {
			slog.Error("failed to persist training claims", "error", err)
		}
	}

	metricsMap, err := h.ensemble.Train(ctx, claims, labels)
	if err != nil {
		if errors.Is(err, model.ErrNoPositiveLabels) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("training failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "training failed: " + err.Error(),
		})
		return
	}

	// Persist metric snapshots
	if h.repo != nil {
		for _, m := range metricsMap {
			if err := h.repo.SaveMetrics(ctx, m); err != nil {
				slog.Error("failed to save metrics snapshot", "model", m.Model, "error", err)
			}
		}
	}

	duration := time.Since(start)

	if h.metrics != nil {
		h.metrics.TrainingsTotal.Inc()
		h.metrics.TrainingDuration.Observe(duration.Seconds())
		for name, m := range metricsMap {
			h.metrics.ModelF1.WithLabelValues(name).Set(m.F1)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"samples":   len(claims),
			"trainedAt": time.Now().UTC(),
			"weights":   h.ensemble.Weights(),
		})
		if err := h.bus.Publish(ctx, domain.TopicModelTrained, payload); err != nil {
			slog.Error("failed to publish training event", "error", err)
		}
	}

	slog.Info("ensemble trained",
		"samples", len(claims),
		"duration_ms", duration.Milliseconds(),
	)

	writeJSON(w, http.StatusOK, TrainResponse{
		Status:     "trained",
		Samples:    len(claims),
		DurationMs: duration.Milliseconds(),
		Metrics:    metricsMap,
		Model:      h.ensemble.Status(),
	})
}

// PredictRequest is the request body for POST /api/v1/predict.
type PredictRequest struct {
	Claims []domain.ClaimRequest `json:"claims"`
	Policy string                `json:"policy,omitempty"`

	// Model scores with a single base model instead of the ensemble.
	Model string `json:"model,omitempty"`
}

// PredictResponse is the response for POST /api/v1/predict.
type PredictResponse struct {
	Prediction  *domain.Prediction   `json:"prediction"`
	Assessments []*domain.Assessment `json:"assessments,omitempty"`
}

// Predict handles POST /api/v1/predict.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claims are required",
		})
		return
	}

	// Identical batches are served from cache
	cacheKey := predictCacheKey(&req)
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var resp PredictResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				w.Header().Set("X-Cache", "hit")
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	claims := make([]*domain.Claim, 0, len(req.Claims))
	for i := range req.Claims {
		claims = append(claims, req.Claims[i].ToClaim())
	}

	resp, status, errMsg := h.scoreBatch(r, claims, req.Policy, req.Model)
	if errMsg != "" {
		writeJSON(w, status, map[string]string{"error": errMsg})
		return
	}

	if h.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = h.cache.Set(ctx, cacheKey, data, predictCacheTTL)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// scoreBatch runs the full scoring pipeline for a claim batch:
// ensemble prediction, rule screening, scheme evaluation, assessments,
// persistence and alerting.
func (h *Handler) scoreBatch(r *http.Request, claims []*domain.Claim, policy, modelName string) (*PredictResponse, int, string) {
	ctx := r.Context()
	start := time.Now()
	traceID := GetTraceID(ctx)

	var override domain.VotingPolicy
	if policy != "" {
		parsed, err := domain.ParsePolicy(policy)
		if err != nil {
			return nil, http.StatusBadRequest, err.Error()
		}
		override = parsed
	}

	var prediction *domain.Prediction
	var err error
	if modelName != "" && modelName != domain.ModelEnsemble {
		prediction, err = h.ensemble.PredictMember(modelName, claims)
	} else {
		prediction, err = h.ensemble.Predict(claims, override)
	}
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotTrained), errors.Is(err, model.ErrClustersNotIdentified):
			return nil, http.StatusConflict, err.Error()
		case errors.Is(err, feature.ErrSchemaMismatch):
			return nil, http.StatusBadRequest, err.Error()
		case errors.Is(err, model.ErrUnknownModel):
			return nil, http.StatusBadRequest, err.Error()
		default:
			slog.Error("prediction failed", "error", err)
			return nil, http.StatusInternalServerError, "prediction failed: " + err.Error()
		}
	}
	prediction.ID = uuid.New().String()

	assessments := make([]*domain.Assessment, len(claims))
	ruleHits := make(map[int][]domain.RuleResult)

	for i, claim := range claims {
		var ruleResults []domain.RuleResult
		if h.engine != nil && h.engine.RulesCount() > 0 {
			ruleResults, err = h.engine.EvaluateAll(ctx, rules.InputFromClaim(claim, 3600))
			if err != nil {
				slog.Error("rule evaluation failed", "claim_id", claim.ID, "error", err)
			}
			if len(ruleResults) > 0 {
				ruleHits[i] = ruleResults
			}
		}

		var schemeResults []domain.SchemeResult
		if h.schemes != nil && h.schemes.SchemeCount() > 0 {
			schemeResults = h.schemes.EvaluateSchemes(ruleResults)
		}

		assessments[i] = h.assessor.Assess(ctx, &analyze.AssessInput{
			ClaimID:       claim.ID,
			TraceID:       traceID,
			Probability:   prediction.Probabilities[i],
			RuleResults:   ruleResults,
			SchemeResults: schemeResults,
			StartTime:     start,
		})

		if h.repo != nil {
			score := &domain.ScoreResult{
				ID:          prediction.ID + ":" + strconv.Itoa(i),
				ClaimID:     claim.ID,
				ProviderID:  claim.ProviderID,
				Model:       prediction.Model,
				Label:       prediction.Labels[i],
				Probability: prediction.Probabilities[i],
				RiskLevel:   prediction.RiskLevels[i],
				Reasons:     assessments[i].Reasons,
				CreatedAt:   time.Now().UTC(),
			}
			if err := h.repo.SaveScore(ctx, score); err != nil {
				slog.Error("failed to save score", "claim_id", claim.ID, "error", err)
			}
		}

		if h.bus != nil && analyze.ShouldAlert(assessments[i]) {
			payload, _ := json.Marshal(assessments[i])
			if err := h.bus.Publish(ctx, domain.TopicHighRiskAlert, payload); err != nil {
				slog.Error("failed to publish alert", "claim_id", claim.ID, "error", err)
			}
		}
	}

	if len(ruleHits) > 0 {
		prediction.RuleHits = ruleHits
	}

	if h.metrics != nil {
		h.metrics.PredictionsTotal.WithLabelValues(string(prediction.Policy)).Inc()
		h.metrics.ClaimsScored.Add(float64(len(claims)))
		for _, level := range prediction.RiskLevels {
			if level == domain.RiskHigh || level == domain.RiskCritical {
				h.metrics.HighRiskTotal.Inc()
			}
		}
	}

	return &PredictResponse{
		Prediction:  prediction,
		Assessments: assessments,
	}, http.StatusOK, ""
}

// PredictAsync handles POST /api/v1/predict/async by queueing the
// batch on the event bus. Results are published to the scored topic.
func (h *Handler) PredictAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claims are required",
		})
		return
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	msg := worker.ScoreRequestMessage{
		RequestID: uuid.New().String(),
		TraceID:   GetTraceID(ctx),
		Policy:    req.Policy,
		Claims:    req.Claims,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode request",
		})
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicScoreRequested, payload); err != nil {
		slog.Error("failed to queue score request", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue score request",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId":   msg.RequestID,
		"resultTopic": domain.TopicClaimScored,
	})
}

// ModelStatus handles GET /api/v1/models/status.
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ensemble.Status())
}

// ModelPerformance handles GET /api/v1/models/performance.
func (h *Handler) ModelPerformance(w http.ResponseWriter, r *http.Request) {
	metricsMap := h.ensemble.Metrics()

	// Fall back to persisted snapshots before the first in-process training
	if len(metricsMap) == 0 && h.repo != nil {
		metricsMap = make(map[string]*domain.ModelMetrics)
		for _, name := range []string{domain.ModelEnsemble, domain.ModelClassifier, domain.ModelDetector, domain.ModelCluster} {
			if m, err := h.repo.GetLatestMetrics(r.Context(), name); err == nil {
				metricsMap[name] = m
			}
		}
	}

	if len(metricsMap) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no performance metrics available, train the models first",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": metricsMap,
		"weights": h.ensemble.Weights(),
		"policy":  h.ensemble.Policy(),
	})
}

// UpdateWeights handles PUT /api/v1/models/weights.
func (h *Handler) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	var req domain.EnsembleWeights
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.ensemble.SetWeights(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("ensemble weights updated", "weights", h.ensemble.Weights())
	writeJSON(w, http.StatusOK, map[string]any{
		"weights": h.ensemble.Weights(),
	})
}

// PolicyRequest is the request body for PUT /api/v1/models/policy.
type PolicyRequest struct {
	Policy string `json:"policy"`
}

// UpdatePolicy handles PUT /api/v1/models/policy.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	policy, err := domain.ParsePolicy(req.Policy)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.ensemble.SetPolicy(policy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("voting policy updated", "policy", policy)
	writeJSON(w, http.StatusOK, map[string]any{
		"policy": policy,
	})
}

// SaveModel handles POST /api/v1/models/save.
func (h *Handler) SaveModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	blob, err := h.ensemble.Save()
	if err != nil {
		if errors.Is(err, model.ErrNotTrained) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to serialize model", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to serialize model",
		})
		return
	}

	artifact := &domain.ModelArtifact{
		ID:    uuid.New().String(),
		Model: domain.ModelEnsemble,
		Blob:  blob,
	}
	if err := h.repo.SaveArtifact(ctx, artifact); err != nil {
		slog.Error("failed to save model artifact", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save model artifact",
		})
		return
	}

	slog.Info("model saved", "artifact_id", artifact.ID, "version", artifact.Version, "bytes", len(blob))
	writeJSON(w, http.StatusOK, map[string]any{
		"artifactId": artifact.ID,
		"model":      artifact.Model,
		"version":    artifact.Version,
		"sizeBytes":  len(blob),
	})
}

// LoadModel handles POST /api/v1/models/load.
func (h *Handler) LoadModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	artifact, err := h.repo.GetLatestArtifact(ctx, domain.ModelEnsemble)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no saved model found",
		})
		return
	}

	if err := h.ensemble.Load(artifact.Blob); err != nil {
		slog.Error("failed to load model artifact", "artifact_id", artifact.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load model artifact",
		})
		return
	}

	slog.Info("model loaded", "artifact_id", artifact.ID, "version", artifact.Version)
	writeJSON(w, http.StatusOK, map[string]any{
		"artifactId": artifact.ID,
		"version":    artifact.Version,
		"model":      h.ensemble.Status(),
	})
}

// GenerateRequest is the request body for POST /api/v1/generate/demo-data.
type GenerateRequest struct {
	Count     int     `json:"count"`
	FraudRate float64 `json:"fraudRate"`
	Seed      *int64  `json:"seed,omitempty"`
	Persist   bool    `json:"persist,omitempty"`
	Preview   int     `json:"preview,omitempty"`
}

// GenerateDemoData handles POST /api/v1/generate/demo-data.
func (h *Handler) GenerateDemoData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Count <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "count must be positive",
		})
		return
	}
	if req.FraudRate < 0 || req.FraudRate > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "fraudRate must be between 0 and 1",
		})
		return
	}

	seed := h.modelCfg.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	gen := datagen.New(seed)
	claims, labels := gen.Generate(req.Count, req.FraudRate)

	fraudCount := 0
	for _, l := range labels {
		if l == 1 {
			fraudCount++
		}
	}

	if req.Persist && h.repo != nil {
		if err := h.repo.SaveClaims(ctx, claims); err != nil {
			slog.Error("failed to persist generated claims", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to persist generated claims",
			})
			return
		}
	}

	preview := req.Preview
	if preview <= 0 || preview > len(claims) {
		preview = min(5, len(claims))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(claims),
		"fraud":     fraudCount,
		"fraudRate": float64(fraudCount) / float64(len(claims)),
		"seed":      seed,
		"persisted": req.Persist && h.repo != nil,
		"sample":    claims[:preview],
		"labels":    labels[:preview],
	})
}

// AnalyzeRequest is the request body for POST /api/v1/analyze/batch.
type AnalyzeRequest struct {
	Claims             []domain.ClaimRequest `json:"claims"`
	Policy             string                `json:"policy,omitempty"`
	IncludeAssessments bool                  `json:"includeAssessments,omitempty"`
}

// AnalyzeBatch handles POST /api/v1/analyze/batch.
func (h *Handler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claims are required",
		})
		return
	}

	claims := make([]*domain.Claim, 0, len(req.Claims))
	for i := range req.Claims {
		claims = append(claims, req.Claims[i].ToClaim())
	}

	resp, status, errMsg := h.scoreBatch(r, claims, req.Policy, "")
	if errMsg != "" {
		writeJSON(w, status, map[string]string{"error": errMsg})
		return
	}

	report := analyze.BuildReport(claims, resp.Assessments)
	if !req.IncludeAssessments {
		report.Assessments = nil
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report":  report,
		"summary": resp.Prediction.Summary,
		"policy":  resp.Prediction.Policy,
	})
}

// HighRiskAlerts handles GET /api/v1/alerts/high-risk.
func (h *Handler) HighRiskAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	minProbability := 0.6
	if v := r.URL.Query().Get("minProbability"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "minProbability must be a number between 0 and 1",
			})
			return
		}
		minProbability = parsed
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	scores, err := h.repo.ListHighRiskScores(ctx, minProbability, limit)
	if err != nil {
		slog.Error("failed to list high-risk scores", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list high-risk scores",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":         scores,
		"count":          len(scores),
		"minProbability": minProbability,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":   true,
		"trained": h.ensemble.Trained(),
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// ListSchemes returns all loaded fraud schemes.
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	if h.schemes == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "scheme engine not available",
		})
		return
	}

	schemes := h.schemes.GetLoadedSchemes()

	writeJSON(w, http.StatusOK, map[string]any{
		"schemes": schemes,
		"count":   len(schemes),
	})
}

// GetScheme retrieves a fraud scheme by ID.
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	schemeID := chi.URLParam(r, "id")

	if schemeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scheme id is required",
		})
		return
	}

	if h.schemes == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "scheme engine not available",
		})
		return
	}

	for _, s := range h.schemes.GetLoadedSchemes() {
		if s.ID == schemeID {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "scheme not found",
	})
}

func predictCacheKey(req *PredictRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return "predict:" + hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
