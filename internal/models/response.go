package models

import "time"

// Usage reports token accounting for a completion. TotalTokens is always the sum
// of the prompt and completion counts.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewUsage builds a Usage with TotalTokens derived from the two components.
func NewUsage(promptTokens, completionTokens int) Usage {
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// Savings is the counterfactual tokens/cost/time the system claims to have avoided
// by serving a Response from cache. Only populated when FromCache is true.
type Savings struct {
	Tokens  int
	Cost    float64
	TimeMs  int64
}

// Response is the single outcome type every submitted Request yields, exactly once.
// Errors never propagate across the Pipeline boundary; an unsuccessful attempt is
// represented by Success=false and a populated Error.
type Response struct {
	RawText      string
	ParsedData   any
	Model        ModelId
	Provider     ProviderId
	Usage        Usage
	ProcessingMs int64
	FromCache    bool
	Similarity   *float64
	Savings      *Savings

	Success bool
	Error   *MCPError
}

// NewErrorResponse wraps an MCPError as a terminal, unsuccessful Response.
func NewErrorResponse(err *MCPError) *Response {
	return &Response{Success: false, Error: err}
}

// ElapsedSince computes ProcessingMs from a start time; used for savings accounting
// and provider round-trip timing.
func ElapsedSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
