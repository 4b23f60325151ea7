package cache

import (
	"context"
	"testing"
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/events"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func testTierConfigs() (models.ExactCacheConfig, models.SemanticCacheConfig) {
	exact := models.ExactCacheConfig{MaxEntries: 10, DefaultTTL: time.Hour}
	semantic := models.DefaultSemanticCacheConfig()
	semantic.Dimension = 32
	return exact, semantic
}

func testTierRequest(strategy models.CacheStrategy) *models.Request {
	return &models.Request{
		Prompt:      "what is the capital of france",
		Model:       "claude",
		Temperature: 0.5,
		MaxTokens:   100,
		Priority:    models.PriorityNormal,
		McpParams: models.McpParams{
			CacheStrategy: strategy,
			StoreResult:   true,
			CacheTTL:      time.Hour,
		},
	}
}

func TestTierExactHitAfterSet(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	sink := events.NewRecordingSink()
	tier, err := NewTier(exactCfg, semanticCfg, nil, sink)
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	req := testTierRequest(models.CacheStrategyExact)
	resp := models.Response{RawText: "paris", Success: true}

	tier.Set(ctx, req, resp, "req-1")
	got, found := tier.Get(ctx, req, "req-2")
	if !found {
		t.Fatalf("want exact cache hit after Set")
	}
	if got.RawText != "paris" {
		t.Fatalf("want stored response back, got %+v", got)
	}

	evts := sink.Events()
	var sawStore, sawHit bool
	for _, e := range evts {
		switch e.Name {
		case models.EventStoreInCache:
			sawStore = true
		case models.EventCacheHit:
			sawHit = true
		}
	}
	if !sawStore || !sawHit {
		t.Fatalf("want store_in_cache and cache_hit events emitted, got %+v", evts)
	}
}

func TestTierExactMissWithoutSet(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	req := testTierRequest(models.CacheStrategyExact)
	if _, found := tier.Get(context.Background(), req, "req-1"); found {
		t.Fatalf("want a miss when nothing has been stored")
	}
}

func TestTierSemanticHitIgnoredWhenStrategyIsExactOnly(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	setReq := testTierRequest(models.CacheStrategySemantic)
	tier.Set(ctx, setReq, models.Response{RawText: "paris"}, "req-1")

	getReq := testTierRequest(models.CacheStrategyExact)
	if _, found := tier.Get(ctx, getReq, "req-2"); found {
		t.Fatalf("want exact-only strategy to skip the semantic tier entirely")
	}
}

func TestTierHybridStrategyFallsBackToSemantic(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	semanticCfg.SimilarityFloor = 0.2
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	req := testTierRequest(models.CacheStrategyHybrid)
	tier.Set(ctx, req, models.Response{RawText: "paris"}, "req-1")

	// A different temperature changes the canonical key, so only the semantic tier
	// (same prompt, same model) can answer.
	getReq := testTierRequest(models.CacheStrategyHybrid)
	getReq.Temperature = 0.9
	got, found := tier.Get(ctx, getReq, "req-2")
	if !found {
		t.Fatalf("want hybrid strategy to fall back to the semantic tier on an exact miss")
	}
	if got.RawText != "paris" {
		t.Fatalf("want stored response, got %+v", got)
	}
}

func TestTierStatsReportsExactEntryCount(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	req := testTierRequest(models.CacheStrategyExact)
	tier.Set(ctx, req, models.Response{RawText: "paris"}, "req-1")

	stats := tier.Stats()
	if stats.ExactEntries != 1 {
		t.Fatalf("want 1 exact entry after one Set, got %d", stats.ExactEntries)
	}
}

func TestTierClearEmptiesBothTiers(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	req := testTierRequest(models.CacheStrategyHybrid)
	tier.Set(ctx, req, models.Response{RawText: "paris"}, "req-1")
	tier.Clear()

	if _, found := tier.Get(ctx, req, "req-2"); found {
		t.Fatalf("want no hit after Clear")
	}
}

func TestTierSetHonorsPerRequestCacheTTL(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	exactCfg.DefaultTTL = time.Hour // cache-wide default must not win over the request's own TTL
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	req := testTierRequest(models.CacheStrategyExact)
	req.McpParams.CacheTTL = 10 * time.Millisecond
	tier.Set(ctx, req, models.Response{RawText: "paris"}, "req-1")

	time.Sleep(30 * time.Millisecond)

	if _, found := tier.Get(ctx, req, "req-2"); found {
		t.Fatalf("want the request's short cacheTTL to govern expiry over the cache-wide default")
	}
}

func TestTierSetWithoutStoreResultDoesNotCache(t *testing.T) {
	exactCfg, semanticCfg := testTierConfigs()
	tier, err := NewTier(exactCfg, semanticCfg, nil, events.NewRecordingSink())
	if err != nil {
		t.Fatalf("NewTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	req := testTierRequest(models.CacheStrategyExact)
	req.McpParams.StoreResult = false
	tier.Set(ctx, req, models.Response{RawText: "paris"}, "req-1")

	if _, found := tier.Get(ctx, req, "req-2"); found {
		t.Fatalf("want StoreResult=false to skip caching entirely")
	}
}
