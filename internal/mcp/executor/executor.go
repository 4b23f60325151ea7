// Package executor implements the Executor: the component that turns one Request
// into exactly one Response by routing, probing the cache tier, calling the provider
// gateway, retrying transient failures, and bounding the whole span by a deadline.
// Adapted from the proxy's completions service (circuit-breaker-gated provider call,
// fallback-on-failure) generalized to the cache/route/retry pipeline this spec needs.
package executor

import (
	"context"
	"errors"
	"math"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/cache"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/circuitbreaker"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/fallback"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/provider"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// defaultFallbackSavingsTokens is substituted when a cached response never recorded
// a usage total, matching §4.6's documented fallback.
const defaultFallbackSavingsTokens = 500

// Executor consumes one Request and produces one Response. It never returns an
// error to its caller: every outcome, including exhausted retries and deadline
// expiry, is surfaced as a Response with Success=false and a populated Error.
type Executor struct {
	cfg      models.ExecutorConfig
	tier     *cache.Tier
	router   *router.SmartRouter
	remote   *router.RemoteOverride
	gateways map[models.ProviderId]provider.Gateway
	breakers map[models.ProviderId]circuitbreaker.Breaker
	sink     models.EventSink

	smartRoutingEnabled  bool
	multiProviderEnabled bool
	semanticCacheEnabled bool
	preferredProvider    models.ProviderId
	fallbackCfg          fallback.Config
}

// New builds an Executor over the given gateways (one per provider the SmartRouter
// may select). A circuit breaker is created per provider, tuned by breakerCfg, so a
// failing provider is skipped fast rather than retried into the ground. remote may be
// nil (no remote override configured); when non-nil, its Select is tried before the
// local SmartRouter and only falls through to it on failure.
func New(cfg models.ExecutorConfig, tier *cache.Tier, smartRouter *router.SmartRouter, remote *router.RemoteOverride, gateways map[models.ProviderId]provider.Gateway, sink models.EventSink, fallbackCfg fallback.Config, breakerCfg circuitbreaker.Config) *Executor {
	breakers := make(map[models.ProviderId]circuitbreaker.Breaker, len(gateways))
	for providerID := range gateways {
		breakers[providerID] = circuitbreaker.NewWithConfig(string(providerID), breakerCfg)
	}
	return &Executor{
		cfg:                  cfg,
		tier:                 tier,
		router:               smartRouter,
		remote:               remote,
		gateways:             gateways,
		breakers:             breakers,
		sink:                 sink,
		smartRoutingEnabled:  true,
		multiProviderEnabled: true,
		semanticCacheEnabled: true,
		fallbackCfg:          fallbackCfg,
	}
}

// SetSmartRoutingEnabled toggles step 1 of the algorithm (admin operation).
func (e *Executor) SetSmartRoutingEnabled(enabled bool) { e.smartRoutingEnabled = enabled }

// SetMultiProviderEnabled toggles whether an admin-configured PreferredProvider pin
// (set via SetPreferredProvider) applies to unspecified-model routing, and whether a
// failed primary call may fail over to an alternative provider at all. Disabling it
// confines every request to whichever single provider its own selection produced.
func (e *Executor) SetMultiProviderEnabled(enabled bool) { e.multiProviderEnabled = enabled }

// SetPreferredProvider sets the pipeline-wide default provider pin, used only for a
// request whose own McpParams.PreferredProvider is unset and only while
// multi-provider admin routing is enabled.
func (e *Executor) SetPreferredProvider(providerID models.ProviderId) {
	e.preferredProvider = providerID
}

// SetSemanticCacheEnabled toggles whether the semantic tier is consulted at all. A
// strategy that asks for semantic matching falls back to exact matching while this
// is disabled, rather than caching nothing.
func (e *Executor) SetSemanticCacheEnabled(enabled bool) { e.semanticCacheEnabled = enabled }

// SetFallbackConfig replaces the fallback behavior used when the primary selection
// fails every retry and at least one alternative candidate exists.
func (e *Executor) SetFallbackConfig(cfg fallback.Config) { e.fallbackCfg = cfg }

// Execute runs the full algorithm in §4.3 against req, bounded by a deadline it
// computes from req's SubmittedAt and the Executor's configured timeout.
func (e *Executor) Execute(ctx context.Context, req *models.Request, requestID string) models.Response {
	dispatchedAt := time.Now()
	deadline := req.Deadline(time.Duration(e.cfg.TimeoutMs) * time.Millisecond)
	if time.Now().After(deadline) {
		return *models.NewErrorResponse(models.NewError(models.ErrTimeout, "deadline already elapsed before dispatch", nil))
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// 1. Route if needed.
	if req.Model == "" {
		if e.smartRoutingEnabled {
			selReq := e.selectionRequestFor(req)
			model, ok := e.remote.Select(ctx, selReq)
			if !ok {
				model = e.router.Select(selReq)
			}
			req.Model = model
			e.emit(requestID, models.EventCategoryMCP, models.EventSmartRouting, map[string]any{"model": string(model)})
		} else {
			return *models.NewErrorResponse(models.NewError(models.ErrConfig, "request has no model and smart routing is disabled", nil))
		}
	}

	// 2-3. Cache lookup (exact then semantic).
	cacheReq := e.effectiveCacheRequest(req)
	if hit, ok := e.tier.Get(ctx, cacheReq, requestID); ok {
		return e.withSavings(hit, dispatchedAt)
	}

	// 4-6. Provider call, with retries and optional fallback to alternatives.
	resp := e.callWithRetry(ctx, req, req.Model, requestID)
	if !resp.Success && resp.Error != nil && resp.Error.Kind.Retryable() && e.multiProviderEnabled {
		if fallbackResp, ok := e.tryFallback(ctx, req, requestID); ok {
			resp = fallbackResp
		}
	}

	// 5. Store.
	if resp.Success {
		e.tier.Set(ctx, cacheReq, resp, requestID)
	}
	return resp
}

// effectiveCacheRequest returns req unchanged unless the semantic tier has been
// disabled pipeline-wide, in which case it returns a shallow copy whose strategy no
// longer probes it — a semantic-only or hybrid strategy falls back to exact matching
// rather than caching nothing while the tier is off.
func (e *Executor) effectiveCacheRequest(req *models.Request) *models.Request {
	if e.semanticCacheEnabled || !req.McpParams.CacheStrategy.UsesSemantic() {
		return req
	}
	downgraded := *req
	downgraded.McpParams.CacheStrategy = models.CacheStrategyExact
	return &downgraded
}

// selectionRequestFor maps Request.Metadata (the typed subset) into the SmartRouter's
// SelectionRequest shape.
func (e *Executor) selectionRequestFor(req *models.Request) models.SelectionRequest {
	taskType := models.TaskType(req.Metadata.Type)
	if taskType == "" {
		taskType = models.TaskGeneral
	}
	complexity := models.ComplexityLevel(req.Metadata.Complexity)
	if complexity == "" {
		complexity = models.ComplexityMedium
	}

	var required []string
	if req.Metadata.RequiresReasoning {
		required = append(required, models.CapReasoning)
	}
	if req.Metadata.RequiresCode {
		required = append(required, models.CapCodeGeneration)
	}
	if req.Metadata.RequiresMath {
		required = append(required, models.CapMathPrecision)
	}
	if req.Metadata.RequiresFactual {
		required = append(required, models.CapFactualAccuracy)
	}

	promptTokens := req.Metadata.PromptTokens
	if promptTokens == 0 {
		promptTokens = estimateTokens(req.Prompt)
	}
	outputTokens := req.Metadata.ExpectedOutputTokens
	if outputTokens == 0 {
		outputTokens = req.MaxTokens
	}

	preferredProvider := req.McpParams.PreferredProvider
	if preferredProvider == "" && e.multiProviderEnabled {
		preferredProvider = e.preferredProvider
	}

	return models.SelectionRequest{
		TaskType:             taskType,
		Complexity:           complexity,
		RequiredCapabilities: required,
		PreferredProvider:    preferredProvider,
		Priority:             req.McpParams.Priority,
		PromptTokenEstimate:  promptTokens,
		OutputTokenEstimate:  outputTokens,
		ExcludedProviders:    e.openBreakerProviders(),
	}
}

// openBreakerProviders lists every provider whose circuit breaker currently refuses
// calls, so SmartRouter.Select never proactively picks a model it would immediately
// have to fail over from.
func (e *Executor) openBreakerProviders() []models.ProviderId {
	var excluded []models.ProviderId
	for providerID, breaker := range e.breakers {
		if breaker != nil && !breaker.CanExecute() {
			excluded = append(excluded, providerID)
		}
	}
	return excluded
}

// estimateTokens is a rough chars/4 fallback used only when the caller never
// populated Metadata.PromptTokens.
func estimateTokens(prompt string) int {
	return int(math.Ceil(float64(len(prompt)) / 4))
}

// callWithRetry performs the provider call for (model's provider) with exponential
// backoff on retry-eligible errors, bounded by cfg.MaxRetries and ctx's deadline.
func (e *Executor) callWithRetry(ctx context.Context, req *models.Request, model models.ModelId, requestID string) models.Response {
	providerID, ok := e.router.ProviderOf(model)
	if !ok {
		return *models.NewErrorResponse(models.NewError(models.ErrConfig, "unknown model: "+string(model), nil))
	}
	gw, ok := e.gateways[providerID]
	if !ok {
		return *models.NewErrorResponse(models.NewError(models.ErrConfig, "no gateway configured for provider: "+string(providerID), nil))
	}
	breaker := e.breakers[providerID]

	var lastErr *models.MCPError
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(e.cfg.RetryDelay) * time.Millisecond * time.Duration(math.Pow(2, float64(attempt)))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return *models.NewErrorResponse(models.NewError(models.ErrTimeout, "deadline exceeded during retry backoff", ctx.Err()))
			case <-timer.C:
			}
		}

		if ctx.Err() != nil {
			return *models.NewErrorResponse(models.NewError(models.ErrTimeout, "deadline exceeded before dispatch", ctx.Err()))
		}

		if breaker != nil && !breaker.CanExecute() {
			lastErr = models.NewError(models.ErrProviderTransient, "circuit breaker open for "+string(providerID), nil)
			break
		}

		resp, err := e.callOnce(ctx, gw, req, model, providerID, requestID)
		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			return resp
		}

		mcpErr := toMCPError(err)
		lastErr = mcpErr
		if breaker != nil {
			breaker.RecordFailure()
		}

		if mcpErr.Kind == models.ErrProviderRateLimited {
			e.emit(requestID, models.EventCategoryError, models.EventRateLimited, map[string]any{"provider": string(providerID)})
		}
		if !mcpErr.Kind.Retryable() {
			break
		}
		fiberlog.Debugf("[%s] executor: attempt %d/%d failed for %s/%s: %v", requestID, attempt+1, e.cfg.MaxRetries+1, providerID, model, err)
	}

	e.emit(requestID, models.EventCategoryError, models.EventRequestFailed, map[string]any{"provider": string(providerID), "model": string(model)})
	return *models.NewErrorResponse(lastErr)
}

// callOnce makes a single ProviderGateway call and normalizes the result into a
// Response, including the caller's parser if present.
func (e *Executor) callOnce(ctx context.Context, gw provider.Gateway, req *models.Request, model models.ModelId, providerID models.ProviderId, requestID string) (models.Response, error) {
	start := time.Now()
	e.emit(requestID, models.EventCategoryMCP, models.EventAPICall, map[string]any{"provider": string(providerID), "model": string(model)})

	normalized := provider.NormalizedRequest{
		Model:       model,
		Messages:    []provider.Message{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	result, err := gw.Complete(ctx, normalized)
	if err != nil {
		return models.Response{}, err
	}

	resp := models.Response{
		RawText:      result.Text,
		Model:        model,
		Provider:     providerID,
		Usage:        models.NewUsage(result.PromptTokens, result.CompletionTokens),
		ProcessingMs: models.ElapsedSince(start),
		Success:      true,
	}

	if req.Parser != nil {
		parsed, parseErr := req.Parser(result.Text)
		if parseErr != nil {
			e.emit(requestID, models.EventCategoryError, models.EventParsingError, map[string]any{"error": parseErr.Error()})
			resp.Success = false
			resp.Error = models.NewError(models.ErrParse, "parser failed on completion", parseErr)
			return resp, nil
		}
		resp.ParsedData = parsed
	}

	return resp, nil
}

// tryFallback retries the request against SmartRouter-selected alternatives when the
// primary model exhausted its retries, building the same normalized request, applying
// the request's parser, and consulting the same per-provider circuit breakers, but
// with no further retries per candidate and no api_call event.
func (e *Executor) tryFallback(ctx context.Context, req *models.Request, requestID string) (models.Response, bool) {
	alternatives := e.alternativesFor(req)
	if len(alternatives) == 0 {
		return models.Response{}, false
	}

	exec := func(ctx context.Context, alt models.Alternative) (provider.NormalizedResponse, error) {
		gw, ok := e.gateways[alt.Provider]
		if !ok {
			return provider.NormalizedResponse{}, models.NewError(models.ErrConfig, "no gateway for provider "+string(alt.Provider), nil)
		}
		breaker := e.breakers[alt.Provider]
		if breaker != nil && !breaker.CanExecute() {
			return provider.NormalizedResponse{}, models.NewError(models.ErrProviderTransient, "circuit breaker open for "+string(alt.Provider), nil)
		}
		normalized := provider.NormalizedRequest{
			Model:       alt.Model,
			Messages:    []provider.Message{{Role: "user", Content: req.Prompt}},
			System:      req.SystemPrompt,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}
		result, err := gw.Complete(ctx, normalized)
		if err != nil {
			if breaker != nil {
				breaker.RecordFailure()
			}
			return provider.NormalizedResponse{}, err
		}
		if breaker != nil {
			breaker.RecordSuccess()
		}
		return result, nil
	}

	start := time.Now()
	result, winner, err := fallback.Execute(ctx, alternatives, e.fallbackCfg, exec, requestID)
	if err != nil {
		return models.Response{}, false
	}

	resp := models.Response{
		RawText:      result.Text,
		Model:        winner.Model,
		Provider:     winner.Provider,
		Usage:        models.NewUsage(result.PromptTokens, result.CompletionTokens),
		ProcessingMs: models.ElapsedSince(start),
		Success:      true,
	}
	if req.Parser != nil {
		parsed, parseErr := req.Parser(result.Text)
		if parseErr != nil {
			e.emit(requestID, models.EventCategoryError, models.EventParsingError, map[string]any{"error": parseErr.Error()})
			resp.Success = false
			resp.Error = models.NewError(models.ErrParse, "parser failed on completion", parseErr)
		} else {
			resp.ParsedData = parsed
		}
	}
	return resp, true
}

// alternativesFor lists every model the SmartRouter knows about besides req.Model
// whose provider has a configured gateway, as fallback candidates.
func (e *Executor) alternativesFor(req *models.Request) []models.Alternative {
	var alternatives []models.Alternative
	for _, model := range e.router.KnownModels() {
		if model == req.Model {
			continue
		}
		providerID, ok := e.router.ProviderOf(model)
		if !ok {
			continue
		}
		if _, ok := e.gateways[providerID]; !ok {
			continue
		}
		alternatives = append(alternatives, models.Alternative{Provider: providerID, Model: model})
	}
	return alternatives
}

// withSavings populates a cache hit's Savings per §4.6: tokens from the cached
// response (falling back to 500), cost from SmartRouter.EstimateCost at a 70/30
// prompt/completion split, and time from elapsed-since-dispatch (the moment Execute
// began work on the request).
func (e *Executor) withSavings(resp models.Response, dispatchedAt time.Time) models.Response {
	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = defaultFallbackSavingsTokens
	}
	cost := e.router.EstimateCost(resp.Model, int(float64(tokens)*0.7), int(float64(tokens)*0.3))
	resp.Savings = &models.Savings{
		Tokens: tokens,
		Cost:   cost,
		TimeMs: models.ElapsedSince(dispatchedAt),
	}
	return resp
}

func (e *Executor) emit(requestID string, category models.EventCategory, name string, fields map[string]any) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(models.Event{
		Category:  category,
		Name:      name,
		RequestID: requestID,
		Timestamp: time.Now(),
		Fields:    fields,
	})
}

func toMCPError(err error) *models.MCPError {
	var mcpErr *models.MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	return models.NewError(models.ErrProviderTransient, "provider call failed", err)
}
