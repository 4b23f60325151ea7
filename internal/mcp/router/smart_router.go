// Package router implements the SmartRouter: a static-but-overridable table of model
// metadata scored against a request's declared task, complexity, and optimization
// priority to pick the single best candidate model.
package router

import (
	"sort"
	"strings"
	"sync"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// priorityWeights is the (speed, quality, cost) weight vector selected by
// SelectionRequest.Priority.
var priorityWeights = map[models.OptimizationPriority][3]float64{
	models.OptimizeSpeed:   {0.6, 0.3, 0.1},
	models.OptimizeQuality: {0.1, 0.8, 0.1},
	models.OptimizeCost:    {0.2, 0.2, 0.6},
}

const (
	maxCostForNormalization = 0.10
	responseTimeDivisor     = 500.0
)

// SmartRouter owns the model metadata table and implements the selection algorithm.
type SmartRouter struct {
	mu           sync.RWMutex
	metadata     map[models.ModelId]models.ModelMetadata
	defaultModel models.ModelId
}

// New constructs a SmartRouter seeded with DefaultModelMetadata. defaultModel is
// returned when no candidate is eligible.
func New(defaultModel models.ModelId) *SmartRouter {
	return &SmartRouter{
		metadata:     DefaultModelMetadata(),
		defaultModel: defaultModel,
	}
}

// Override applies a sparse patch to model's metadata, inserting a fresh entry if
// model wasn't previously known.
func (r *SmartRouter) Override(model models.ModelId, patch models.PartialModelMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta := r.metadata[model]
	if meta.Capabilities == nil {
		meta.Capabilities = map[string]float64{}
	}
	if patch.ContextSize != nil {
		meta.ContextSize = *patch.ContextSize
	}
	if patch.CostPerInputToken != nil {
		meta.CostPerInputToken = *patch.CostPerInputToken
	}
	if patch.CostPerOutputToken != nil {
		meta.CostPerOutputToken = *patch.CostPerOutputToken
	}
	if patch.AverageResponseTimeMs != nil {
		meta.AverageResponseTimeMs = *patch.AverageResponseTimeMs
	}
	for k, v := range patch.Capabilities {
		meta.Capabilities[k] = v
	}
	r.metadata[model] = meta
}

// ProviderOf returns the provider that serves model, and whether model is known.
func (r *SmartRouter) ProviderOf(model models.ModelId) (models.ProviderId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metadata[model]
	return meta.Provider, ok
}

// KnownModels lists every model currently in the metadata table, for callers (like
// the fallback executor) that need candidates beyond a single Select result.
func (r *SmartRouter) KnownModels() []models.ModelId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ModelId, 0, len(r.metadata))
	for model := range r.metadata {
		out = append(out, model)
	}
	return out
}

// EstimateCost estimates the dollar cost of a call given token counts.
func (r *SmartRouter) EstimateCost(model models.ModelId, inTok, outTok int) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metadata[model]
	if !ok {
		return 0
	}
	return float64(inTok)*meta.CostPerInputToken + float64(outTok)*meta.CostPerOutputToken
}

// scored is one candidate's computed score, kept around for the deterministic
// lexicographic tie-break.
type scored struct {
	model models.ModelId
	total float64
}

// Select runs the scoring algorithm over every known model and returns the single
// eligible model with the highest total score, falling back to the router's
// configured default model when no candidate is eligible (an observable fallback,
// never a silent one — callers should log the smart_routing event either way).
func (r *SmartRouter) Select(req models.SelectionRequest) models.ModelId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	weights, ok := priorityWeights[req.Priority]
	if !ok {
		weights = priorityWeights[models.OptimizeQuality]
	}
	wSpeed, wQuality, wCost := weights[0], weights[1], weights[2]

	var candidates []scored
	for model, meta := range r.metadata {
		if req.PreferredProvider != "" && meta.Provider != req.PreferredProvider {
			continue
		}
		if !r.isEligible(meta, req) {
			continue
		}

		quality := r.qualityScore(meta, req)
		speed := speedScore(meta)
		cost := costScore(meta, req)
		total := quality*wQuality + speed*wSpeed + cost*wCost

		candidates = append(candidates, scored{model: model, total: total})
	}

	if len(candidates) == 0 {
		fiberlog.Warnf("smart router: no eligible model for taskType=%s complexity=%s, falling back to %s",
			req.TaskType, req.Complexity, r.defaultModel)
		return r.defaultModel
	}

	// Deterministic tie-break: highest score first, lexicographically smallest model
	// id first among ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].total != candidates[j].total {
			return candidates[i].total > candidates[j].total
		}
		return candidates[i].model < candidates[j].model
	})

	return candidates[0].model
}

// isEligible applies the circuit-breaker gate (a provider the Executor has reported
// as tripped is never a candidate) and the capability gate: every required
// capability's score must clear the complexity-level threshold.
func (r *SmartRouter) isEligible(meta models.ModelMetadata, req models.SelectionRequest) bool {
	for _, excluded := range req.ExcludedProviders {
		if meta.Provider == excluded {
			return false
		}
	}

	threshold := req.Complexity.CapabilityThreshold()
	for _, capability := range req.RequiredCapabilities {
		score, ok := meta.Capabilities[capability]
		if !ok || score < threshold {
			return false
		}
	}
	return true
}

// qualityScore is the weighted average of task-relevant capability scores, scaled by
// the complexity multiplier.
func (r *SmartRouter) qualityScore(meta models.ModelMetadata, req models.SelectionRequest) float64 {
	weights := weightsFor(req.TaskType)

	var weighted, totalWeight float64
	for capability, w := range weights {
		score := meta.Capabilities[capability]
		weighted += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return (weighted / totalWeight) * req.Complexity.QualityMultiplier()
}

// speedScore converts average response time into a 0..10 score: faster is better,
// clamped at both ends.
func speedScore(meta models.ModelMetadata) float64 {
	score := 10 - meta.AverageResponseTimeMs/responseTimeDivisor
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// costScore converts an estimated total dollar cost into a 0..10 score: cheaper is
// better, with any cost at or above the cap scoring 0.
func costScore(meta models.ModelMetadata, req models.SelectionRequest) float64 {
	totalCost := float64(req.PromptTokenEstimate)*meta.CostPerInputToken + float64(req.OutputTokenEstimate)*meta.CostPerOutputToken
	capped := totalCost
	if capped > maxCostForNormalization {
		capped = maxCostForNormalization
	}
	return 10 - (capped/maxCostForNormalization)*10
}

// InferPriority maps request metadata to a dispatch Priority, per the
// type/priority-substring convention: "interactive"/"message"/"critical" substrings
// imply high priority; "background"/"batch"/"analysis" imply low; anything else is
// normal.
func InferPriority(meta models.RequestMetadata) models.Priority {
	for _, s := range []string{meta.Type, meta.Priority} {
		lower := strings.ToLower(s)
		if containsAny(lower, "interactive", "message", "critical") {
			return models.PriorityHigh
		}
		if containsAny(lower, "background", "batch", "analysis") {
			return models.PriorityLow
		}
	}
	return models.PriorityNormal
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
