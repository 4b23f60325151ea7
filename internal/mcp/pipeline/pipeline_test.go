package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/cache"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/circuitbreaker"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/executor"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/fallback"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/provider"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/queue"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func newTestPipeline(t *testing.T, parallelism int, gw provider.Gateway) *Pipeline {
	t.Helper()
	tier, err := cache.NewTier(
		models.ExactCacheConfig{MaxEntries: 100, DefaultTTL: time.Hour},
		models.SemanticCacheConfig{Enabled: false},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	smartRouter := router.New("claude-3-5-sonnet")
	execCfg := models.ExecutorConfig{MaxRetries: 1, RetryDelay: 1, TimeoutMs: 5000}
	exec := executor.New(execCfg, tier, smartRouter, nil, map[models.ProviderId]provider.Gateway{gw.Provider(): gw}, nil, fallback.Config{}, circuitbreaker.DefaultConfig())

	q := queue.New(0)
	p := New(q, exec, tier, smartRouter, models.QueueConfig{Capacity: 0, Parallelism: parallelism}, execCfg)
	t.Cleanup(p.Shutdown)
	return p
}

func baseRequest(prompt string) *models.Request {
	return &models.Request{
		Prompt:      prompt,
		Model:       "claude-3-5-sonnet",
		Temperature: 0.5,
		MaxTokens:   128,
		McpParams: models.McpParams{
			CacheStrategy: models.CacheStrategyExact,
			CacheTTL:      time.Hour,
			Priority:      models.OptimizeQuality,
			StoreResult:   false,
		},
	}
}

func TestSubmitRoundTrip(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "hello", PromptTokens: 1, CompletionTokens: 1})
	p := newTestPipeline(t, 4, gw)

	future, err := p.Submit(baseRequest("hi"), models.PriorityNormal)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := future.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !resp.Success || resp.RawText != "hello" {
		t.Fatalf("want success with rawText=hello, got %+v", resp)
	}
}

func TestPriorityOverridesFIFOUnderSingleWorker(t *testing.T) {
	order := make(chan string, 2)
	gw := &orderRecordingGateway{order: order}
	p := newTestPipeline(t, 1, gw)

	// Hold the dispatcher's only worker slot so both requests are queued before
	// either is popped, regardless of scheduling timing.
	ctx := context.Background()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	lowFuture, err := p.Submit(baseRequest("low"), models.PriorityLow)
	if err != nil {
		t.Fatalf("submit low: %v", err)
	}
	highFuture, err := p.Submit(baseRequest("high"), models.PriorityHigh)
	if err != nil {
		t.Fatalf("submit high: %v", err)
	}

	p.sem.Release(1)

	getCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := lowFuture.Get(getCtx); err != nil {
		t.Fatalf("low Get: %v", err)
	}
	if _, err := highFuture.Get(getCtx); err != nil {
		t.Fatalf("high Get: %v", err)
	}

	first := <-order
	if first != "high" {
		t.Fatalf("want high dispatched before low, got %q first", first)
	}
}

func TestStatsReportsSettingsAndQueueDepth(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "x"})
	p := newTestPipeline(t, 4, gw)

	p.SetStrategy(models.StrategyAggressive)
	p.SetPreferredProvider(models.ProviderOpenAI)
	p.SetSemanticCacheEnabled(false)

	stats := p.Stats()
	if stats.Settings.Strategy != models.StrategyAggressive {
		t.Fatalf("want aggressive strategy, got %s", stats.Settings.Strategy)
	}
	if stats.Settings.PreferredProvider != models.ProviderOpenAI {
		t.Fatalf("want preferred provider openai, got %s", stats.Settings.PreferredProvider)
	}
	if stats.Settings.SemanticCacheEnabled {
		t.Fatalf("want semantic cache reported disabled")
	}
}

func newTestPipelineMultiProvider(t *testing.T) (*Pipeline, *provider.FakeGateway, *provider.FakeGateway) {
	t.Helper()
	tier, err := cache.NewTier(
		models.ExactCacheConfig{MaxEntries: 100, DefaultTTL: time.Hour},
		models.SemanticCacheConfig{Enabled: false},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	smartRouter := router.New("claude-3-5-sonnet")
	execCfg := models.ExecutorConfig{MaxRetries: 1, RetryDelay: 1, TimeoutMs: 5000}
	claudeGW := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "from claude"})
	openaiGW := provider.NewFakeGateway(models.ProviderOpenAI, provider.NormalizedResponse{Text: "from openai"})
	gateways := map[models.ProviderId]provider.Gateway{
		models.ProviderAnthropic: claudeGW,
		models.ProviderOpenAI:    openaiGW,
	}
	exec := executor.New(execCfg, tier, smartRouter, nil, gateways, nil, fallback.Config{}, circuitbreaker.DefaultConfig())

	q := queue.New(0)
	p := New(q, exec, tier, smartRouter, models.QueueConfig{Capacity: 0, Parallelism: 4}, execCfg)
	t.Cleanup(p.Shutdown)
	return p, claudeGW, openaiGW
}

func unspecifiedModelRequest(prompt string) *models.Request {
	req := baseRequest(prompt)
	req.Model = ""
	req.McpParams.CacheStrategy = models.CacheStrategyExact
	return req
}

func TestSetPreferredProviderRoutesUnspecifiedModelRequests(t *testing.T) {
	p, claudeGW, openaiGW := newTestPipelineMultiProvider(t)
	p.SetPreferredProvider(models.ProviderOpenAI)

	future, err := p.Submit(unspecifiedModelRequest("route me"), models.PriorityNormal)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := future.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Provider != models.ProviderOpenAI {
		t.Fatalf("want the pipeline-wide preferred provider to route to openai, got %+v", resp)
	}
	if len(claudeGW.Calls) != 0 {
		t.Fatalf("want the non-preferred provider's gateway never called, got %d calls", len(claudeGW.Calls))
	}
	if len(openaiGW.Calls) != 1 {
		t.Fatalf("want exactly one call to the preferred provider's gateway, got %d", len(openaiGW.Calls))
	}
}

func TestMultiProviderEnabledAllowsFallbackAcrossProviders(t *testing.T) {
	p, claudeGW, openaiGW := newTestPipelineMultiProvider(t)
	claudeGW.Err = fmt.Errorf("boom")

	req := baseRequest("hi")
	future, err := p.Submit(req, models.PriorityNormal)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := future.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !resp.Success || resp.Provider != models.ProviderOpenAI {
		t.Fatalf("want fallback to the alternate provider to succeed, got %+v", resp)
	}
	if openaiGW.CallCount() == 0 {
		t.Fatalf("want the alternate provider's gateway to have been tried")
	}
}

func TestMultiProviderDisabledSkipsFallbackAcrossProviders(t *testing.T) {
	p, claudeGW, openaiGW := newTestPipelineMultiProvider(t)
	claudeGW.Err = fmt.Errorf("boom")
	p.SetMultiProviderEnabled(false)

	req := baseRequest("hi")
	future, err := p.Submit(req, models.PriorityNormal)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := future.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Success {
		t.Fatalf("want the primary provider's failure to surface directly, got %+v", resp)
	}
	if openaiGW.CallCount() != 0 {
		t.Fatalf("want no fallback attempt while multi-provider routing is disabled, got %d calls", openaiGW.CallCount())
	}
}

func TestSubmitRejectsUnknownModel(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "x"})
	p := newTestPipeline(t, 4, gw)

	req := baseRequest("hi")
	req.Model = "not-a-real-model"
	if _, err := p.Submit(req, models.PriorityNormal); err == nil {
		t.Fatalf("want Submit to reject an unknown model")
	}
}

// orderRecordingGateway records call order on a channel without blocking. Used to
// observe dispatch order under a
// single-worker pipeline.
type orderRecordingGateway struct {
	order chan string
}

func (g *orderRecordingGateway) Provider() models.ProviderId { return models.ProviderAnthropic }

func (g *orderRecordingGateway) Complete(ctx context.Context, req provider.NormalizedRequest) (provider.NormalizedResponse, error) {
	g.order <- req.Messages[0].Content
	return provider.NormalizedResponse{Text: req.Messages[0].Content}, nil
}
