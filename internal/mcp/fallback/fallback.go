// Package fallback runs a Request against a primary model and, on failure, against
// alternative models — either one at a time (Sequential) or all at once, first
// success wins (Race). Adapted from the proxy's HTTP-facing fallback service with the
// fiber.Ctx coupling and streaming race removed: every execution here is a single
// non-streaming provider call bounded by context, not an HTTP response writer.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/provider"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Mode selects how alternatives are tried after the primary fails.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeRace       Mode = "race"
)

// Config tunes fallback behavior for one Execute call.
type Config struct {
	Mode      Mode `yaml:"mode"`
	TimeoutMs int  `yaml:"timeout_ms"`
}

// ExecuteFunc performs one provider call for the given alternative.
type ExecuteFunc func(ctx context.Context, alt models.Alternative) (provider.NormalizedResponse, error)

// result is one candidate's outcome, used internally by the race mode to pick the
// first success off a channel.
type result struct {
	resp provider.NormalizedResponse
	alt  models.Alternative
	err  error
}

// Execute tries candidates (primary first) according to cfg.Mode, returning the first
// successful NormalizedResponse and which Alternative produced it. If every candidate
// fails, it returns a joined error describing each failure.
func Execute(ctx context.Context, candidates []models.Alternative, cfg Config, exec ExecuteFunc, requestID string) (provider.NormalizedResponse, models.Alternative, error) {
	if len(candidates) == 0 {
		return provider.NormalizedResponse{}, models.Alternative{}, fmt.Errorf("no candidates available")
	}

	if len(candidates) == 1 {
		resp, err := exec(ctx, candidates[0])
		return resp, candidates[0], err
	}

	switch cfg.Mode {
	case ModeRace:
		return executeRace(ctx, candidates, cfg, exec, requestID)
	default:
		return executeSequential(ctx, candidates, exec, requestID)
	}
}

func executeSequential(ctx context.Context, candidates []models.Alternative, exec ExecuteFunc, requestID string) (provider.NormalizedResponse, models.Alternative, error) {
	var errs []error
	for i, alt := range candidates {
		fiberlog.Debugf("[%s] fallback: trying candidate %d/%d: %s/%s", requestID, i+1, len(candidates), alt.Provider, alt.Model)
		resp, err := exec(ctx, alt)
		if err == nil {
			return resp, alt, nil
		}
		errs = append(errs, fmt.Errorf("%s/%s: %w", alt.Provider, alt.Model, err))
	}
	return provider.NormalizedResponse{}, models.Alternative{}, fmt.Errorf("all candidates failed: %w", errors.Join(errs...))
}

func executeRace(ctx context.Context, candidates []models.Alternative, cfg Config, exec ExecuteFunc, requestID string) (provider.NormalizedResponse, models.Alternative, error) {
	raceCtx := ctx
	if cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		raceCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	resultCh := make(chan result, len(candidates))
	var wg sync.WaitGroup
	for i, alt := range candidates {
		wg.Add(1)
		go func(i int, alt models.Alternative) {
			defer wg.Done()
			resp, err := exec(raceCtx, alt)
			select {
			case resultCh <- result{resp: resp, alt: alt, err: err}:
			case <-raceCtx.Done():
			}
		}(i, alt)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var errs []error
	for {
		select {
		case res, ok := <-resultCh:
			if !ok {
				return provider.NormalizedResponse{}, models.Alternative{}, fmt.Errorf("all candidates failed in race: %w", errors.Join(errs...))
			}
			if res.err == nil {
				fiberlog.Infof("[%s] fallback race winner: %s/%s", requestID, res.alt.Provider, res.alt.Model)
				return res.resp, res.alt, nil
			}
			errs = append(errs, fmt.Errorf("%s/%s: %w", res.alt.Provider, res.alt.Model, res.err))
		case <-raceCtx.Done():
			return provider.NormalizedResponse{}, models.Alternative{}, fmt.Errorf("fallback race cancelled: %w", raceCtx.Err())
		}
	}
}
