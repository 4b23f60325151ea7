package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// entryOverheadBytes approximates the fixed per-entry bookkeeping cost (map slot,
// struct headers, pointers) independent of the content stored.
const entryOverheadBytes = 64

// Stats is a point-in-time snapshot of the cache tier. Only the exact tier is
// counted: SemanticEntries is not populated and stays zero, and ApproxMemoryBytes is
// ExactEntries × (entryOverheadBytes + 8·D) with no allowance for the length of the
// stored strings.
type Stats struct {
	ExactEntries        int
	ExactExpiredOnSweep int64
	SemanticEntries     int
	ApproxMemoryBytes   int64
}

// Tier combines the ExactCache and SemanticCache behind one get/set/clear/stats API,
// matching canonical keys before falling back to semantic similarity, and emitting a
// cache_hit/cache_miss event either way.
type Tier struct {
	exact    *ExactCache
	semantic *SemanticCache
	sink     models.EventSink

	sweepStop      chan struct{}
	sweepWG        sync.WaitGroup
	expiredOnSweep atomic.Int64
	dimension      int
}

// NewTier builds a combined cache tier and starts the ExactCache sweeper if
// sweepInterval > 0.
func NewTier(exactCfg models.ExactCacheConfig, semanticCfg models.SemanticCacheConfig, store models.PersistentStore, sink models.EventSink) (*Tier, error) {
	semantic, err := NewSemanticCache(semanticCfg)
	if err != nil {
		return nil, err
	}
	t := &Tier{
		exact:     NewExactCache(exactCfg, store),
		semantic:  semantic,
		sink:      sink,
		sweepStop: make(chan struct{}),
		dimension: semanticCfg.Dimension,
	}

	if exactCfg.SweepInterval > 0 {
		t.startSweeper(exactCfg.SweepInterval)
	}
	return t, nil
}

// Get attempts an exact match first, then (if the request allows it) a semantic
// match, emitting the corresponding event either way.
func (t *Tier) Get(ctx context.Context, req *models.Request, requestID string) (models.Response, bool) {
	if req.McpParams.CacheStrategy.UsesExact() {
		key := CanonicalKey(req)
		if resp, ok := t.exact.Get(key); ok {
			t.emit(requestID, models.EventCacheHit, map[string]any{"tier": "exact"})
			return resp, true
		}
	}

	if req.McpParams.CacheStrategy.UsesSemantic() && t.semantic != nil {
		match, found := t.semantic.Lookup(ctx, req.Prompt, req.Model, req.McpParams.MinSimilarity)
		if found {
			resp := match.Response
			resp.FromCache = true
			sim := match.Similarity
			resp.Similarity = &sim
			t.emit(requestID, models.EventCacheHit, map[string]any{"tier": "semantic", "similarity": sim})
			return resp, true
		}
	}

	t.emit(requestID, models.EventCacheMiss, nil)
	return models.Response{}, false
}

// Set stores resp into whichever tiers req.McpParams.CacheStrategy asks for.
func (t *Tier) Set(ctx context.Context, req *models.Request, resp models.Response, requestID string) {
	if !req.McpParams.StoreResult {
		return
	}

	if req.McpParams.CacheStrategy.UsesExact() {
		t.exact.Set(CanonicalKey(req), resp, req.McpParams.CacheTTL)
	}
	if req.McpParams.CacheStrategy.UsesSemantic() && t.semantic != nil {
		t.semantic.Store(ctx, req.Prompt, req.Model, resp, req.McpParams.CacheTTL)
	}

	t.emit(requestID, models.EventStoreInCache, map[string]any{
		"exact":    req.McpParams.CacheStrategy.UsesExact(),
		"semantic": req.McpParams.CacheStrategy.UsesSemantic(),
	})
}

// Clear empties both tiers.
func (t *Tier) Clear() {
	t.exact.Clear()
	if t.semantic != nil {
		t.semantic.Clear()
	}
}

// Stats returns the exact-tier snapshot described on the Stats type.
func (t *Tier) Stats() Stats {
	exactLen := t.exact.Len()
	approxBytes := int64(exactLen) * (entryOverheadBytes + int64(8*t.dimension))
	return Stats{
		ExactEntries:        exactLen,
		ExactExpiredOnSweep: t.expiredOnSweep.Load(),
		ApproxMemoryBytes:   approxBytes,
	}
}

// Close stops the sweeper and releases the semantic backend.
func (t *Tier) Close() error {
	close(t.sweepStop)
	t.sweepWG.Wait()
	if t.semantic != nil {
		return t.semantic.Close()
	}
	return nil
}

func (t *Tier) startSweeper(interval time.Duration) {
	t.sweepWG.Add(1)
	go func() {
		defer t.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.sweep()
			case <-t.sweepStop:
				return
			}
		}
	}()
}

// sweep drops every exact-cache entry whose own per-entry TTL has elapsed. The counter
// is informational only — correctness never depends on the sweeper running, since Get
// also evicts a stale entry it happens to encounter.
func (t *Tier) sweep() {
	if dropped := t.exact.sweepExpired(); dropped > 0 {
		t.expiredOnSweep.Add(int64(dropped))
		fiberlog.Debugf("cache sweep: evicted %d expired exact-cache entries", dropped)
	}
}

func (t *Tier) emit(requestID, name string, fields map[string]any) {
	if t.sink == nil {
		return
	}
	t.sink.Emit(models.Event{
		Category:  categoryFor(name),
		Name:      name,
		RequestID: requestID,
		Timestamp: time.Now(),
		Fields:    fields,
	})
}

func categoryFor(name string) models.EventCategory {
	switch name {
	case models.EventCacheHit, models.EventCacheMiss, models.EventStoreInCache:
		return models.EventCategoryMCP
	default:
		return models.EventCategoryMCP
	}
}
