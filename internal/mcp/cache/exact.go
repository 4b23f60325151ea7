package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// exactEntry pairs a cached response with the absolute expiry the request that stored
// it asked for, since entries sharing one LRU can still carry different TTLs (the
// three strategy presets disagree on this field, and callers may override it further).
type exactEntry struct {
	resp      models.Response
	expiresAt time.Time
}

// ExactCache is a canonical-hash-keyed LRU store: two requests that agree on model,
// temperature (rounded), system prompt, and prompt text are the same cache entry
// regardless of arrival order or any other field. Expiry is tracked per entry rather
// than cache-wide, because the cacheTTL the Executor passes to Set varies by request.
type ExactCache struct {
	mu         sync.RWMutex
	lru        *lru.Cache[string, exactEntry]
	defaultTTL time.Duration
	store      models.PersistentStore
	ns         string
}

// NewExactCache constructs an ExactCache from cfg. If cfg.Persistent is set and store
// is non-nil, previously-saved entries are loaded immediately.
func NewExactCache(cfg models.ExactCacheConfig, store models.PersistentStore) *ExactCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 100
	}
	backing, _ := lru.New[string, exactEntry](maxEntries) // only errors on size<=0, guarded above
	c := &ExactCache{
		lru:        backing,
		defaultTTL: cfg.DefaultTTL,
		store:      store,
		ns:         cfg.PersistentName,
	}
	if cfg.Persistent && store != nil {
		c.restore()
	}
	return c
}

// CanonicalKey hashes the fields that make two requests cache-equivalent: model,
// temperature rounded to 2 decimal places, system prompt, and prompt. Rounding
// temperature absorbs float noise from repeated client-side defaults (e.g. 0.7 vs
// 0.70000001) without collapsing materially different sampling behavior.
func CanonicalKey(req *models.Request) string {
	roundedTemp := float64(int(req.Temperature*100+0.5)) / 100
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%.2f\x00%s\x00%s", req.Model, roundedTemp, req.SystemPrompt, req.Prompt)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Get looks up a response by its canonical key. An entry past its own expiresAt is
// evicted and reported as a miss rather than returned stale. A hit returns a copy with
// FromCache set so the Executor never mutates the cached value in place.
func (c *ExactCache) Get(key string) (models.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return models.Response{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return models.Response{}, false
	}
	resp := entry.resp
	resp.FromCache = true
	return resp, true
}

// Set stores resp under key with the given ttl, persisting it to the durable mirror if
// configured. ttl<=0 falls back to the cache's configured default rather than caching
// forever, since a non-positive TTL is never a deliberate "keep indefinitely" signal
// here (McpParams.Validate rejects it at submit time).
func (c *ExactCache) Set(key string, resp models.Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.lru.Add(key, exactEntry{resp: resp, expiresAt: time.Now().Add(ttl)})
	c.mu.Unlock()

	if c.store != nil {
		c.persist()
	}
}

// Len reports the current entry count, including entries that have expired but have
// not yet been touched by Get or the sweeper.
func (c *ExactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Clear empties the cache.
func (c *ExactCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// sweepExpired removes every entry whose own expiresAt has passed and reports how many
// were dropped.
func (c *ExactCache) sweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	dropped := 0
	for _, k := range c.lru.Keys() {
		entry, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if now.After(entry.expiresAt) {
			c.lru.Remove(k)
			dropped++
		}
	}
	return dropped
}

// persist snapshots all current, non-expired entries to the durable store. Called
// synchronously after Set; callers that cannot tolerate the extra latency should wrap
// the cache with an async wrapper rather than change this method's contract.
func (c *ExactCache) persist() {
	c.mu.RLock()
	keys := c.lru.Keys()
	entries := make([]models.PersistedCacheEntry, 0, len(keys))
	now := time.Now()
	for _, k := range keys {
		entry, ok := c.lru.Peek(k)
		if !ok || now.After(entry.expiresAt) {
			continue
		}
		blob, err := json.Marshal(entry.resp)
		if err != nil {
			continue
		}
		entries = append(entries, models.PersistedCacheEntry{
			Key:          k,
			Response:     blob,
			CreatedAtUTC: now.Unix(),
			ExpiresAtUTC: entry.expiresAt.Unix(),
		})
	}
	c.mu.RUnlock()

	envelope := models.PersistedEnvelope{Version: models.PersistedEnvelopeVersion, Entries: entries}
	blob, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	_ = c.store.Save(c.ns, blob)
}

// restore reloads entries from the durable mirror, skipping ones already expired
// since their last save and silently starting empty on any format mismatch.
func (c *ExactCache) restore() {
	blob, found, err := c.store.Load(c.ns)
	if err != nil || !found {
		return
	}
	var envelope models.PersistedEnvelope
	if err := json.Unmarshal(blob, &envelope); err != nil || envelope.Version != models.PersistedEnvelopeVersion {
		return
	}

	now := time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range envelope.Entries {
		if entry.ExpiresAtUTC <= now {
			continue
		}
		var resp models.Response
		if err := json.Unmarshal(entry.Response, &resp); err != nil {
			continue
		}
		c.lru.Add(entry.Key, exactEntry{resp: resp, expiresAt: time.Unix(entry.ExpiresAtUTC, 0)})
	}
}
