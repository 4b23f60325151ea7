// Package pipeline implements the Pipeline: the single entry point that accepts a
// Request, assigns it a sequence number, enqueues it on the PriorityQueue, and
// dispatches it to the Executor through a bounded worker pool. Adapted from the
// teacher's single serial request-handling loop, generalized into a
// semaphore-bounded concurrent dispatcher per spec.md §5 ("Parallel: ... a
// cooperative pool of up to N workers").
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/semaphore"

	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/cache"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/executor"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Future is the handle a caller holds for a Request submitted to the Pipeline. Get
// blocks until the Executor produces a Response or the caller's context is done.
type Future struct {
	ch chan models.Response
}

// Get waits for the Response, or returns ctx's error if it's done first. The
// underlying Executor call is not cancelled by a caller giving up on its Future; it
// still runs to completion (or its own deadline) so cache stores still happen.
func (f *Future) Get(ctx context.Context) (models.Response, error) {
	select {
	case resp := <-f.ch:
		return resp, nil
	case <-ctx.Done():
		return models.Response{}, ctx.Err()
	}
}

// Stats is the point-in-time snapshot exposed by getStats().
type Stats struct {
	QueueDepth int
	InFlight   int64
	Cache      cache.Stats
	Settings   Settings
}

// Settings is the admin-mutable configuration subset reported by Stats.
type Settings struct {
	Strategy             models.StrategyName
	SmartRoutingEnabled   bool
	SemanticCacheEnabled  bool
	MultiProviderEnabled  bool
	PreferredProvider     models.ProviderId
	DefaultTTL            time.Duration
}

// Pipeline is the library surface: submit(request, priority) plus the admin
// operations in spec.md §6.
type Pipeline struct {
	queue queueLike
	exec  *executor.Executor
	tier  *cache.Tier
	rtr   *router.SmartRouter

	sem *semaphore.Weighted

	mu          sync.Mutex
	pending     map[uint64]chan models.Response
	strategyMu  sync.RWMutex
	strategy    models.StrategyName
	strategyDef map[models.StrategyName]models.McpParams

	smartRoutingEnabled  atomic.Bool
	semanticCacheEnabled atomic.Bool
	multiProviderEnabled atomic.Bool
	preferredProvider    atomic.Value // models.ProviderId
	defaultTTL           atomic.Int64 // time.Duration

	inFlight atomic.Int64

	timeout time.Duration

	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// queueLike is the minimal PriorityQueue surface the Pipeline depends on, broken
// out as an interface so tests can substitute a fake without importing the queue
// package's concrete type.
type queueLike interface {
	NextSequence() uint64
	Push(req *models.Request) error
	Pop() *models.Request
	Wait(done <-chan struct{})
	Len() int
}

// New builds a Pipeline over q (the PriorityQueue), exec (the Executor), and the
// cache/router components Stats() reports on. parallelism bounds how many Requests
// the dispatcher runs through the Executor concurrently.
func New(q queueLike, exec *executor.Executor, tier *cache.Tier, rtr *router.SmartRouter, cfg models.QueueConfig, execCfg models.ExecutorConfig) *Pipeline {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	p := &Pipeline{
		queue:       q,
		exec:        exec,
		tier:        tier,
		rtr:         rtr,
		sem:         semaphore.NewWeighted(int64(parallelism)),
		pending:     make(map[uint64]chan models.Response),
		strategy:    models.StrategyBalanced,
		strategyDef: presetMap(),
		timeout:     time.Duration(execCfg.TimeoutMs) * time.Millisecond,
		stop:        make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.smartRoutingEnabled.Store(true)
	p.semanticCacheEnabled.Store(true)
	p.multiProviderEnabled.Store(true)
	p.preferredProvider.Store(models.ProviderId(""))
	p.defaultTTL.Store(int64(12 * time.Hour))

	p.wg.Add(1)
	go p.dispatchLoop()
	return p
}

func presetMap() map[models.StrategyName]models.McpParams {
	m := make(map[models.StrategyName]models.McpParams, 3)
	for _, preset := range router.Presets() {
		m[preset.Name] = preset.Defaults
	}
	return m
}

// Submit assigns req a sequence number, applies strategy defaults to any zero-value
// McpParams, validates it, and pushes it onto the PriorityQueue. It never blocks on
// Executor work; the returned Future resolves when the dispatcher eventually runs it.
func (p *Pipeline) Submit(req *models.Request, priority models.Priority) (*Future, error) {
	if p.closed.Load() {
		return nil, models.NewError(models.ErrQueueFull, "pipeline is shut down", nil)
	}

	req.Priority = priority
	req.SubmittedAt = time.Now()
	req.SequenceNo = p.queue.NextSequence()
	p.applyStrategyDefaults(req)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Model != "" {
		if _, ok := p.rtr.ProviderOf(req.Model); !ok {
			return nil, models.NewError(models.ErrConfig, "unknown model: "+string(req.Model), nil)
		}
	}

	ch := make(chan models.Response, 1)
	p.mu.Lock()
	p.pending[req.SequenceNo] = ch
	p.mu.Unlock()

	if err := p.queue.Push(req); err != nil {
		p.mu.Lock()
		delete(p.pending, req.SequenceNo)
		p.mu.Unlock()
		return nil, err
	}

	return &Future{ch: ch}, nil
}

// applyStrategyDefaults fills an unset (zero-value) McpParams with the currently
// active strategy preset's defaults. A caller that set any McpParams field is
// assumed to want full explicit control and is never overridden.
func (p *Pipeline) applyStrategyDefaults(req *models.Request) {
	if req.McpParams != (models.McpParams{}) {
		return
	}
	p.strategyMu.RLock()
	defaults := p.strategyDef[p.strategy]
	p.strategyMu.RUnlock()
	req.McpParams = defaults
}

// dispatchLoop drains the PriorityQueue, handing each Request to a semaphore-bounded
// worker. The semaphore (not a fixed pool of goroutines) is what bounds concurrency
// to the configured parallelism; this loop itself never blocks on Executor work.
func (p *Pipeline) dispatchLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		p.queue.Wait(p.stop)

		for {
			// Reserve a worker slot before popping, not after: this way a request
			// only ever leaves the queue once a worker is actually free to run it,
			// so a higher-priority arrival never loses a race against one already
			// in the dispatcher's hand but blocked on a busy slot.
			if err := p.sem.Acquire(p.ctx, 1); err != nil {
				break
			}

			req := p.queue.Pop()
			if req == nil {
				p.sem.Release(1)
				break
			}

			if time.Now().After(req.Deadline(p.timeout)) {
				p.sem.Release(1)
				p.deliver(req, *models.NewErrorResponse(models.NewError(models.ErrTimeout, "deadline expired before dispatch", nil)))
				continue
			}

			p.inFlight.Add(1)
			p.wg.Add(1)
			go p.runOne(req)
		}

		select {
		case <-p.stop:
			return
		default:
		}
	}
}

func (p *Pipeline) runOne(req *models.Request) {
	defer p.wg.Done()
	defer p.sem.Release(1)
	defer p.inFlight.Add(-1)

	requestID := requestIDFor(req)
	resp := p.exec.Execute(context.Background(), req, requestID)
	p.deliver(req, resp)
}

func (p *Pipeline) deliver(req *models.Request, resp models.Response) {
	p.mu.Lock()
	ch, ok := p.pending[req.SequenceNo]
	delete(p.pending, req.SequenceNo)
	p.mu.Unlock()

	if !ok {
		fiberlog.Warnf("pipeline: no pending future for sequence %d, dropping response", req.SequenceNo)
		return
	}
	ch <- resp
}

func requestIDFor(req *models.Request) string {
	return fmt.Sprintf("req-%d", req.SequenceNo)
}

// Stats returns a point-in-time snapshot: queue depth, in-flight count, cache
// stats, and the current admin-mutable settings.
func (p *Pipeline) Stats() Stats {
	p.strategyMu.RLock()
	strategy := p.strategy
	p.strategyMu.RUnlock()

	var cacheStats cache.Stats
	if p.tier != nil {
		cacheStats = p.tier.Stats()
	}

	return Stats{
		QueueDepth: p.queue.Len(),
		InFlight:   p.inFlight.Load(),
		Cache:      cacheStats,
		Settings: Settings{
			Strategy:             strategy,
			SmartRoutingEnabled:  p.smartRoutingEnabled.Load(),
			SemanticCacheEnabled: p.semanticCacheEnabled.Load(),
			MultiProviderEnabled: p.multiProviderEnabled.Load(),
			PreferredProvider:    p.preferredProvider.Load().(models.ProviderId),
			DefaultTTL:           time.Duration(p.defaultTTL.Load()),
		},
	}
}

// SetStrategy switches the active strategy preset used to fill new requests'
// unset McpParams.
func (p *Pipeline) SetStrategy(name models.StrategyName) {
	p.strategyMu.Lock()
	defer p.strategyMu.Unlock()
	if _, ok := p.strategyDef[name]; ok {
		p.strategy = name
	}
}

// UpdateStrategyConfig overlays patch onto the named preset's stored defaults.
func (p *Pipeline) UpdateStrategyConfig(name models.StrategyName, patch models.PartialMcpParams) {
	p.strategyMu.Lock()
	defer p.strategyMu.Unlock()
	base, ok := p.strategyDef[name]
	if !ok {
		base = router.PresetByName(name)
	}
	p.strategyDef[name] = patch.Apply(base)
}

// SetMultiProviderEnabled toggles whether the pipeline-wide PreferredProvider pin
// (set via SetPreferredProvider) applies to unspecified-model routing, and whether
// the Executor may fail over to an alternative provider after the primary selection
// exhausts its retries. Forwarded to the Executor, which is what actually consults
// it during Execute.
func (p *Pipeline) SetMultiProviderEnabled(enabled bool) {
	p.multiProviderEnabled.Store(enabled)
	p.exec.SetMultiProviderEnabled(enabled)
}

// SetPreferredProvider sets the pipeline-wide default provider pin used by
// unspecified-model requests that didn't set their own McpParams.PreferredProvider,
// while multi-provider admin routing is enabled. The zero ProviderId clears the pin.
// Forwarded to the Executor, which applies it in SmartRouter selection.
func (p *Pipeline) SetPreferredProvider(providerID models.ProviderId) {
	p.preferredProvider.Store(providerID)
	p.exec.SetPreferredProvider(providerID)
}

// SetSemanticCacheEnabled toggles whether the Executor consults the semantic tier at
// all; the CacheTier itself is always constructed with or without a semantic backend
// at startup, but this flag lets an admin disable semantic lookups at runtime without
// rebuilding it. Forwarded to the Executor, which applies it on every Execute call.
func (p *Pipeline) SetSemanticCacheEnabled(enabled bool) {
	p.semanticCacheEnabled.Store(enabled)
	p.exec.SetSemanticCacheEnabled(enabled)
}

// SetSmartRoutingEnabled forwards directly to the Executor, which consults this
// flag at step 1 of its algorithm.
func (p *Pipeline) SetSmartRoutingEnabled(enabled bool) {
	p.smartRoutingEnabled.Store(enabled)
	p.exec.SetSmartRoutingEnabled(enabled)
}

// SetDefaultTTL updates the TTL new strategy-derived McpParams default to, by
// overlaying it onto every stored preset. Requests with an explicit McpParams are
// unaffected, matching the "caller-set fields are never overridden" rule.
func (p *Pipeline) SetDefaultTTL(ttl time.Duration) {
	p.defaultTTL.Store(int64(ttl))
	p.strategyMu.Lock()
	defer p.strategyMu.Unlock()
	for name, defaults := range p.strategyDef {
		defaults.CacheTTL = ttl
		p.strategyDef[name] = defaults
	}
}

// Shutdown stops the dispatcher loop and waits for in-flight work to finish.
func (p *Pipeline) Shutdown() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.stop)
		p.cancel()
	}
	p.wg.Wait()
}
