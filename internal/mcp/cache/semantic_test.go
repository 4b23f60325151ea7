package cache

import (
	"context"
	"testing"
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func testSemanticConfig() models.SemanticCacheConfig {
	cfg := models.DefaultSemanticCacheConfig()
	cfg.Dimension = 32
	cfg.DefaultTTL = time.Hour
	cfg.SimilarityFloor = 0.2
	return cfg
}

func TestNewSemanticCacheDisabledReturnsNil(t *testing.T) {
	cfg := testSemanticConfig()
	cfg.Enabled = false
	c, err := NewSemanticCache(cfg)
	if err != nil {
		t.Fatalf("NewSemanticCache: %v", err)
	}
	if c != nil {
		t.Fatalf("want nil cache when disabled, got %+v", c)
	}
	// nil-receiver methods must be safe no-ops.
	c.Store(context.Background(), "p", "m", models.Response{}, time.Hour)
	if _, ok := c.Lookup(context.Background(), "p", "m", 0); ok {
		t.Fatalf("want no match from a nil SemanticCache")
	}
	c.Clear()
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil cache: %v", err)
	}
}

func TestSemanticCacheStoreThenLookupFindsSimilarPrompt(t *testing.T) {
	c, err := NewSemanticCache(testSemanticConfig())
	if err != nil {
		t.Fatalf("NewSemanticCache: %v", err)
	}
	ctx := context.Background()
	resp := models.Response{RawText: "paris", Success: true}
	c.Store(ctx, "what is the capital of france", "claude", resp, time.Hour)

	match, found := c.Lookup(ctx, "what is the capital of france", "claude", 0)
	if !found {
		t.Fatalf("want a hit looking up the exact stored prompt")
	}
	if match.Response.RawText != "paris" {
		t.Fatalf("want stored response returned, got %+v", match.Response)
	}
	if match.Similarity < 0.99 {
		t.Fatalf("want near-1.0 similarity for an identical prompt, got %f", match.Similarity)
	}
}

func TestSemanticCacheLookupMissesOnDifferentModel(t *testing.T) {
	c, err := NewSemanticCache(testSemanticConfig())
	if err != nil {
		t.Fatalf("NewSemanticCache: %v", err)
	}
	ctx := context.Background()
	c.Store(ctx, "hello world", "claude", models.Response{RawText: "hi"}, time.Hour)

	if _, found := c.Lookup(ctx, "hello world", "gpt-4", 0); found {
		t.Fatalf("want a miss when the cached entry was stored under a different model")
	}
}

func TestSemanticCacheLookupMissesBelowFloor(t *testing.T) {
	c, err := NewSemanticCache(testSemanticConfig())
	if err != nil {
		t.Fatalf("NewSemanticCache: %v", err)
	}
	ctx := context.Background()
	c.Store(ctx, "completely unrelated topic about gardening", "claude", models.Response{RawText: "x"}, time.Hour)

	if _, found := c.Lookup(ctx, "quantum physics and relativity", "claude", 0.999); found {
		t.Fatalf("want a miss when similarity falls below an explicit high floor")
	}
}

func TestSemanticCacheStoreRespectsPerCallTTL(t *testing.T) {
	c, err := NewSemanticCache(testSemanticConfig())
	if err != nil {
		t.Fatalf("NewSemanticCache: %v", err)
	}
	ctx := context.Background()
	c.Store(ctx, "what is the capital of france", "claude", models.Response{RawText: "paris"}, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, found := c.Lookup(ctx, "what is the capital of france", "claude", 0); found {
		t.Fatalf("want the short-TTL entry to have expired despite a one-hour cache-wide default")
	}
}

func TestSemanticCacheClearRemovesEntries(t *testing.T) {
	c, err := NewSemanticCache(testSemanticConfig())
	if err != nil {
		t.Fatalf("NewSemanticCache: %v", err)
	}
	ctx := context.Background()
	c.Store(ctx, "some prompt", "claude", models.Response{RawText: "x"}, time.Hour)
	c.Clear()

	if _, found := c.Lookup(ctx, "some prompt", "claude", 0); found {
		t.Fatalf("want no match after Clear")
	}
}
