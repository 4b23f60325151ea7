package cache

import (
	"context"
	"sync"
	"time"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// SemanticMatch is what a semantic lookup returns on a hit.
type SemanticMatch struct {
	Response   models.Response
	Similarity float64
}

// semanticBackend is the minimal surface both implementations below share, so
// SemanticCache can pick one at construction time without the rest of the codebase
// caring which.
type semanticBackend interface {
	lookup(ctx context.Context, prompt string, model models.ModelId, floor float64) (SemanticMatch, bool, error)
	store(ctx context.Context, prompt string, model models.ModelId, resp models.Response, ttl time.Duration) error
	clear()
	close() error
}

// SemanticCache finds a previously-cached response whose prompt is close enough in
// embedding space, filtered to the same model (a fast, cheap answer for a different
// model is not an equivalent answer). The default backend needs no external service;
// configuring an OpenAI embedding model switches to the library-backed store the
// teacher's prompt caches use, which can additionally persist to Redis.
type SemanticCache struct {
	backend    semanticBackend
	floor      float64
	defaultTTL time.Duration
}

// NewSemanticCache builds the backend indicated by cfg.EmbeddingProvider/cfg.Backend.
func NewSemanticCache(cfg models.SemanticCacheConfig) (*SemanticCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.EmbeddingProvider == "openai" {
		backend, err := newLibraryBackend(cfg)
		if err != nil {
			return nil, err
		}
		return &SemanticCache{backend: backend, floor: cfg.SimilarityFloor, defaultTTL: cfg.DefaultTTL}, nil
	}

	return &SemanticCache{
		backend:    newHashedBackend(cfg),
		floor:      cfg.SimilarityFloor,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// Lookup returns the best match above floor (or cfg's default floor if floor<=0).
func (c *SemanticCache) Lookup(ctx context.Context, prompt string, model models.ModelId, floor float64) (SemanticMatch, bool) {
	if c == nil {
		return SemanticMatch{}, false
	}
	if floor <= 0 {
		floor = c.floor
	}
	match, found, err := c.backend.lookup(ctx, prompt, model, floor)
	if err != nil {
		fiberlog.Warnf("semantic cache lookup failed: %v", err)
		return SemanticMatch{}, false
	}
	return match, found
}

// Store saves resp keyed by prompt+model, expiring it after ttl (falling back to the
// cache's configured default if ttl<=0).
func (c *SemanticCache) Store(ctx context.Context, prompt string, model models.ModelId, resp models.Response, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.backend.store(ctx, prompt, model, resp, ttl); err != nil {
		fiberlog.Warnf("semantic cache store failed: %v", err)
	}
}

// Clear empties the cache.
func (c *SemanticCache) Clear() {
	if c == nil {
		return
	}
	c.backend.clear()
}

// Close releases any held resources (network connections, goroutines).
func (c *SemanticCache) Close() error {
	if c == nil {
		return nil
	}
	return c.backend.close()
}

// --- hashed (default, zero-dependency) backend ---

type hashedEntry struct {
	prompt    string
	model     models.ModelId
	vec       []float32
	resp      models.Response
	expiresAt time.Time
}

type hashedBackend struct {
	mu       sync.RWMutex
	entries  []hashedEntry
	capacity int
	embedder EmbeddingProvider
}

func newHashedBackend(cfg models.SemanticCacheConfig) *hashedBackend {
	return &hashedBackend{
		capacity: cfg.Capacity,
		embedder: NewHashedEmbeddingProvider(cfg.Dimension),
	}
}

func (b *hashedBackend) lookup(ctx context.Context, prompt string, model models.ModelId, floor float64) (SemanticMatch, bool, error) {
	vec, err := b.embedder.Embed(ctx, prompt)
	if err != nil {
		return SemanticMatch{}, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now()
	var best hashedEntry
	bestScore := float32(-1)
	found := false
	for _, e := range b.entries {
		if e.model != model || now.After(e.expiresAt) {
			continue
		}
		score := cosineSimilarity(vec, e.vec)
		if score > bestScore {
			bestScore, best, found = score, e, true
		}
	}
	if !found || float64(bestScore) < floor {
		return SemanticMatch{}, false, nil
	}
	return SemanticMatch{Response: best.resp, Similarity: float64(bestScore)}, true, nil
}

func (b *hashedBackend) store(ctx context.Context, prompt string, model models.ModelId, resp models.Response, ttl time.Duration) error {
	vec, err := b.embedder.Embed(ctx, prompt)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity > 0 && len(b.entries) >= b.capacity {
		b.entries = b.entries[1:] // drop oldest; this backend favors recency over LFU
	}
	b.entries = append(b.entries, hashedEntry{
		prompt:    prompt,
		model:     model,
		vec:       vec,
		resp:      resp,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (b *hashedBackend) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

func (b *hashedBackend) close() error { return nil }

// --- library-backed (OpenAI embeddings) backend, grounded on the teacher's prompt caches ---

// libraryEntry is what's actually stored in the semanticcache library: the response
// plus the model it was generated for (so lookups can still filter by model) and the
// absolute expiry the storing request asked for, since the library's own LRU backend
// has no per-key TTL concept.
type libraryEntry struct {
	Model     models.ModelId
	Response  models.Response
	ExpiresAt time.Time
}

type libraryBackend struct {
	cache *semanticcache.SemanticCache[string, libraryEntry]
}

func newLibraryBackend(cfg models.SemanticCacheConfig) (*libraryBackend, error) {
	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	var (
		cache *semanticcache.SemanticCache[string, libraryEntry]
		err   error
	)

	switch cfg.Backend {
	case models.CacheBackendRedis:
		cache, err = semanticcache.New(
			options.WithOpenAIProvider[string, libraryEntry](cfg.OpenAIAPIKey, embedModel),
			options.WithRedisBackend[string, libraryEntry](cfg.RedisURL, 0),
		)
	default:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 1000
		}
		cache, err = semanticcache.New(
			options.WithOpenAIProvider[string, libraryEntry](cfg.OpenAIAPIKey, embedModel),
			options.WithLRUBackend[string, libraryEntry](capacity),
		)
	}
	if err != nil {
		return nil, err
	}
	return &libraryBackend{cache: cache}, nil
}

func (b *libraryBackend) lookup(ctx context.Context, prompt string, model models.ModelId, floor float64) (SemanticMatch, bool, error) {
	match, err := b.cache.Lookup(ctx, prompt, float32(floor))
	if err != nil {
		return SemanticMatch{}, false, err
	}
	if match == nil || match.Value.Model != model || time.Now().After(match.Value.ExpiresAt) {
		return SemanticMatch{}, false, nil
	}
	return SemanticMatch{Response: match.Value.Response, Similarity: float64(match.Score)}, true, nil
}

func (b *libraryBackend) store(ctx context.Context, prompt string, model models.ModelId, resp models.Response, ttl time.Duration) error {
	return b.cache.Set(ctx, prompt, prompt, libraryEntry{Model: model, Response: resp, ExpiresAt: time.Now().Add(ttl)})
}

func (b *libraryBackend) clear() {}

func (b *libraryBackend) close() error { return b.cache.Close() }
