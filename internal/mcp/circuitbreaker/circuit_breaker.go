// Package circuitbreaker implements a per-provider circuit breaker the Executor
// consults before dispatching a provider call; the Executor also passes providers with
// an open breaker to the SmartRouter as excluded, so a failing provider is treated as
// ineligible. Adapted from the teacher's Redis-backed breaker;
// generalized with an in-memory implementation so the core doesn't require Redis.
package circuitbreaker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// State is the three-state circuit breaker machine: Closed (normal), Open (failing,
// calls rejected), HalfOpen (probationary, limited calls allowed through).
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Config tunes the breaker's thresholds and timing.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"` // how long Open lasts before probing HalfOpen
	ResetAfter       time.Duration `yaml:"reset_after"`
}

// DefaultConfig mirrors the teacher's defaults for a per-provider breaker.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
		ResetAfter:       2 * time.Minute,
	}
}

// Breaker is the interface the Executor (including its fallback path) and
// RemoteOverride consult.
// It purposely exposes only the boolean/void operations those callers need, so either
// backend (memory or Redis) is a drop-in.
type Breaker interface {
	CanExecute() bool
	RecordSuccess()
	RecordFailure()
	State() State
	Reset()
}

// New constructs an in-memory breaker for serviceName with the default config.
func New(serviceName string) Breaker {
	return NewWithConfig(serviceName, DefaultConfig())
}

// NewWithConfig constructs an in-memory breaker with an explicit config.
func NewWithConfig(serviceName string, cfg Config) Breaker {
	return &memoryBreaker{serviceName: serviceName, cfg: cfg, state: Closed}
}

// memoryBreaker is the default, zero-dependency backend: a mutex-guarded state
// machine, sufficient for a single-process MCP instance.
type memoryBreaker struct {
	mu              sync.Mutex
	serviceName     string
	cfg             Config
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

func (b *memoryBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureTime) > b.cfg.Timeout {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

func (b *memoryBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state == HalfOpen {
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.successCount = 0
			fiberlog.Infof("CircuitBreaker: %s transitioned to Closed", b.serviceName)
		}
	}
}

func (b *memoryBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()

	shouldOpen := (b.state == Closed && b.failureCount >= b.cfg.FailureThreshold) || b.state == HalfOpen
	if shouldOpen {
		b.state = Open
		b.successCount = 0
		fiberlog.Warnf("CircuitBreaker: %s transitioned to Open after %d failures", b.serviceName, b.failureCount)
	}
}

func (b *memoryBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *memoryBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.successCount = 0
}

// --- Redis-backed implementation, for deployments sharing breaker state across processes ---

const (
	keyPrefix          = "circuit_breaker:"
	stateKey           = "state"
	failureCountKey    = "failure_count"
	successCountKey    = "success_count"
	lastFailureTimeKey = "last_failure_time"
	maxWatchRetries    = 3
)

// recordSuccessScript atomically resets the failure counter and, in HalfOpen,
// advances the success counter and transitions to Closed once the threshold is met.
const recordSuccessScript = `
local state = tonumber(redis.call('GET', KEYS[1]) or '0')
redis.call('SET', KEYS[2], 0)
if state == 2 then
	local count = redis.call('INCR', KEYS[3])
	if count >= tonumber(ARGV[1]) then
		redis.call('SET', KEYS[1], 0)
		redis.call('SET', KEYS[3], 0)
		return 2
	end
	return 1
end
return 0
`

// recordFailureScript atomically increments the failure counter and transitions to
// Open either from Closed past the failure threshold, or immediately from HalfOpen.
const recordFailureScript = `
local state = tonumber(redis.call('GET', KEYS[1]) or '0')
local failureCount = redis.call('INCR', KEYS[2])
redis.call('SET', KEYS[3], ARGV[2])
local shouldOpen = (state == 0 and failureCount >= tonumber(ARGV[1])) or state == 2
if shouldOpen then
	redis.call('SET', KEYS[1], 1)
	redis.call('SET', KEYS[4], '0')
	return 1
end
return 0
`

// redisBreaker shares breaker state across processes via Redis, using Lua scripts
// for atomic success/failure bookkeeping, mirroring the teacher's implementation.
type redisBreaker struct {
	client      *redis.Client
	serviceName string
	cfg         Config
	prefix      string
}

// NewRedis constructs a Redis-backed breaker so multiple MCP instances observing the
// same provider agree on its health.
func NewRedis(client *redis.Client, serviceName string, cfg Config) Breaker {
	return &redisBreaker{
		client:      client,
		serviceName: serviceName,
		cfg:         cfg,
		prefix:      keyPrefix + serviceName + ":",
	}
}

func (b *redisBreaker) k(suffix string) string { return b.prefix + suffix }

func (b *redisBreaker) CanExecute() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, err := b.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker(%s): failed to read state, allowing: %v", b.serviceName, err)
		return true
	}

	switch state {
	case Closed:
		return true
	case Open:
		lastFailure, err := b.client.Get(ctx, b.k(lastFailureTimeKey)).Int64()
		if err != nil {
			return false
		}
		if time.Since(time.Unix(lastFailure, 0)) > b.cfg.Timeout {
			return b.transitionTo(ctx, HalfOpen)
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

func (b *redisBreaker) RecordSuccess() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	keys := []string{b.k(stateKey), b.k(failureCountKey), b.k(successCountKey)}
	result, err := b.client.Eval(ctx, recordSuccessScript, keys, b.cfg.SuccessThreshold).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker(%s): record success failed: %v", b.serviceName, err)
		return
	}
	if result == 2 {
		fiberlog.Infof("CircuitBreaker: %s transitioned to Closed", b.serviceName)
	}
}

func (b *redisBreaker) RecordFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	keys := []string{b.k(stateKey), b.k(failureCountKey), b.k(lastFailureTimeKey), b.k(successCountKey)}
	result, err := b.client.Eval(ctx, recordFailureScript, keys, b.cfg.FailureThreshold, time.Now().Unix()).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker(%s): record failure failed: %v", b.serviceName, err)
		return
	}
	if result == 1 {
		fiberlog.Warnf("CircuitBreaker: %s transitioned to Open", b.serviceName)
	}
}

func (b *redisBreaker) State() State {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	state, err := b.getState(ctx)
	if err != nil {
		return Closed
	}
	return state
}

func (b *redisBreaker) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.k(stateKey), int(Closed), 0)
	pipe.Set(ctx, b.k(failureCountKey), 0, 0)
	pipe.Set(ctx, b.k(successCountKey), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Errorf("CircuitBreaker(%s): reset failed: %v", b.serviceName, err)
	}
}

func (b *redisBreaker) getState(ctx context.Context) (State, error) {
	val, err := b.client.Get(ctx, b.k(stateKey)).Result()
	if err == redis.Nil {
		return Closed, nil
	}
	if err != nil {
		return Closed, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return Closed, fmt.Errorf("invalid state value %q: %w", val, err)
	}
	return State(n), nil
}

func (b *redisBreaker) transitionTo(ctx context.Context, newState State) bool {
	for attempt := range maxWatchRetries {
		err := b.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := b.getState(ctx)
			if err != nil {
				return err
			}
			if current == newState {
				return nil
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, b.k(stateKey), int(newState), 0)
			if newState != HalfOpen {
				pipe.Set(ctx, b.k(successCountKey), 0, 0)
			}
			_, err = pipe.Exec(ctx)
			return err
		}, b.k(stateKey))

		if err == nil {
			return true
		}
		if err != redis.TxFailedErr {
			return false
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return false
}
