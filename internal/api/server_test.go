package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/adaptive-mcp/adaptive-mcp/internal/config"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/cache"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/circuitbreaker"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/executor"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/fallback"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/pipeline"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/provider"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/queue"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func testServer(t *testing.T, gw provider.Gateway) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Environment = "test"
	cfg.DefaultModel = "claude-3-5-sonnet"

	tier, err := cache.NewTier(
		models.ExactCacheConfig{MaxEntries: 100, DefaultTTL: time.Hour},
		models.SemanticCacheConfig{Enabled: false},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	smartRouter := router.New(cfg.DefaultModel)
	execCfg := models.ExecutorConfig{MaxRetries: 1, RetryDelay: 1, TimeoutMs: 5000}
	exec := executor.New(execCfg, tier, smartRouter, nil, map[models.ProviderId]provider.Gateway{gw.Provider(): gw}, nil, fallback.Config{Mode: fallback.ModeSequential}, circuitbreaker.DefaultConfig())

	q := queue.New(0)
	p := pipeline.New(q, exec, tier, smartRouter, models.QueueConfig{Capacity: 0, Parallelism: 4}, execCfg)
	t.Cleanup(p.Shutdown)

	s := NewServer(&cfg, p)
	s.app = createFiberApp(&cfg)
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func TestHandleWelcomeAndHealthz(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "hi"})
	s := testServer(t, gw)

	welcome, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if welcome.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200 from /, got %d", welcome.StatusCode)
	}

	res, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200 from /healthz, got %d", res.StatusCode)
	}
}

func TestHandleSubmitRoundTrip(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "hello", PromptTokens: 1, CompletionTokens: 1})
	s := testServer(t, gw)

	body, _ := json.Marshal(completionRequest{
		Prompt:      "hi",
		Model:       "claude-3-5-sonnet",
		Temperature: 0.5,
		MaxTokens:   128,
		McpParams: &completionMcpParams{
			CacheStrategy: models.CacheStrategyExact,
			CacheTTLSeconds: 3600,
		},
	})
	req := httptest.NewRequest(fiber.MethodPost, "/v1/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := s.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200 from successful completion, got %d", res.StatusCode)
	}
}

func TestHandleSubmitRejectsMalformedBody(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "hi"})
	s := testServer(t, gw)

	req := httptest.NewRequest(fiber.MethodPost, "/v1/completions", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	res, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("want 400 for malformed JSON body, got %d", res.StatusCode)
	}
}

func TestHandleSetStrategyUpdatesPipelineSettings(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "hi"})
	s := testServer(t, gw)

	body, _ := json.Marshal(setStrategyRequest{Strategy: models.StrategyAggressive})
	req := httptest.NewRequest(fiber.MethodPost, "/admin/strategy", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200, got %d", res.StatusCode)
	}
	if got := s.pipeline.Stats().Settings.Strategy; got != models.StrategyAggressive {
		t.Fatalf("want strategy aggressive applied to pipeline, got %s", got)
	}
}

func TestHandleStatsReturnsSettings(t *testing.T) {
	gw := provider.NewFakeGateway(models.ProviderAnthropic, provider.NormalizedResponse{Text: "hi"})
	s := testServer(t, gw)

	res, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/stats", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200 from /stats, got %d", res.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode /stats body: %v", err)
	}
	if _, ok := body["Settings"]; !ok {
		t.Fatalf("want Settings in /stats body, got %v", body)
	}
}
