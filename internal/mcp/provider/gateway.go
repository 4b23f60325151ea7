// Package provider implements ProviderGateway: the normalized HTTP-egress boundary
// the Executor calls after a cache miss, translating one wire format in and one wire
// format out regardless of which upstream SDK actually served the request.
package provider

import (
	"context"
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Message is one normalized chat turn.
type Message struct {
	Role    string
	Content string
}

// NormalizedRequest is the provider-agnostic wire shape the Executor builds and every
// Gateway implementation translates into its own SDK's params.
type NormalizedRequest struct {
	Model       models.ModelId
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
}

// NormalizedResponse is what every Gateway implementation normalizes its SDK's reply
// into, regardless of upstream field names.
type NormalizedResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Gateway is the boundary the Executor calls after a cache miss. Complete must
// respect ctx cancellation/deadline: an in-flight call aborted by a deadline must
// return promptly with ctx.Err() (or a wrapped form of it).
type Gateway interface {
	Complete(ctx context.Context, req NormalizedRequest) (NormalizedResponse, error)
	Provider() models.ProviderId
}

// classifyHTTPStatus maps an upstream HTTP status code to the ErrorKind the Executor
// uses to decide whether a retry is worthwhile.
func classifyHTTPStatus(status int) models.ErrorKind {
	switch {
	case status == 429:
		return models.ErrProviderRateLimited
	case status >= 500:
		return models.ErrProviderTransient
	case status >= 400:
		return models.ErrProviderFatal
	default:
		return models.ErrProviderTransient
	}
}

// elapsedMs returns the whole milliseconds elapsed since start.
func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
