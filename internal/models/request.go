package models

import "time"

// CacheStrategy selects which CacheTier lookups a Request participates in.
type CacheStrategy string

const (
	CacheStrategyExact    CacheStrategy = "exact"
	CacheStrategySemantic CacheStrategy = "semantic"
	CacheStrategyHybrid   CacheStrategy = "hybrid"
)

func (s CacheStrategy) usesExact() bool    { return s == CacheStrategyExact || s == CacheStrategyHybrid }
func (s CacheStrategy) usesSemantic() bool { return s == CacheStrategySemantic || s == CacheStrategyHybrid }

// UsesExact reports whether the strategy probes the exact-match cache tier.
func (s CacheStrategy) UsesExact() bool { return s.usesExact() }

// UsesSemantic reports whether the strategy probes the semantic cache tier.
func (s CacheStrategy) UsesSemantic() bool { return s.usesSemantic() }

// OptimizationPriority is the SmartRouter weighting mode requested via McpParams.
type OptimizationPriority string

const (
	OptimizeSpeed   OptimizationPriority = "speed"
	OptimizeQuality OptimizationPriority = "quality"
	OptimizeCost    OptimizationPriority = "cost"
)

// McpParams controls caching and routing behavior for a single Request.
// Immutable once the Request has been submitted.
type McpParams struct {
	CacheStrategy     CacheStrategy
	MinSimilarity     float64
	CacheTTL          time.Duration
	Priority          OptimizationPriority
	StoreResult       bool
	PreferredProvider ProviderId
}

// PartialMcpParams carries sparse overrides applied to a StrategyPreset's defaults
// via the Pipeline's updateStrategyConfig admin operation.
type PartialMcpParams struct {
	CacheStrategy     *CacheStrategy
	MinSimilarity     *float64
	CacheTTL          *time.Duration
	Priority          *OptimizationPriority
	StoreResult       *bool
	PreferredProvider *ProviderId
}

// Apply returns a copy of base with every set field in p overlaid onto it.
func (p PartialMcpParams) Apply(base McpParams) McpParams {
	if p.CacheStrategy != nil {
		base.CacheStrategy = *p.CacheStrategy
	}
	if p.MinSimilarity != nil {
		base.MinSimilarity = *p.MinSimilarity
	}
	if p.CacheTTL != nil {
		base.CacheTTL = *p.CacheTTL
	}
	if p.Priority != nil {
		base.Priority = *p.Priority
	}
	if p.StoreResult != nil {
		base.StoreResult = *p.StoreResult
	}
	if p.PreferredProvider != nil {
		base.PreferredProvider = *p.PreferredProvider
	}
	return base
}

// Validate enforces the invariants in the data model: minSimilarity >= 0 is required
// whenever the strategy isn't a pure exact match.
func (p McpParams) Validate() error {
	if p.CacheStrategy != CacheStrategyExact && p.MinSimilarity < 0 {
		return NewError(ErrConfig, "minSimilarity must be >= 0 for non-exact cache strategies", nil)
	}
	if p.CacheTTL <= 0 {
		return NewError(ErrConfig, "cacheTTL must be positive", nil)
	}
	return nil
}

// RequestMetadata is the small typed subset of the opaque metadata bag that the
// SmartRouter inspects; everything else is carried through untouched.
type RequestMetadata struct {
	Type                 string
	Complexity           string
	Priority             string
	RequiresReasoning    bool
	RequiresCode         bool
	RequiresMath         bool
	RequiresFactual      bool
	PromptTokens         int
	ExpectedOutputTokens int
}

// Parser converts a raw completion string into a domain-specific value. A parser
// failure surfaces as ErrParse without invalidating the raw completion text.
type Parser func(rawText string) (any, error)

// Request is the unit of work submitted to the Pipeline. Prompt, model (if set),
// temperature, maxTokens, priority, metadata, mcpParams, and parser are immutable
// once submitted; SequenceNo and SubmittedAt are assigned by the Pipeline.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        ModelId // optional; empty means "let SmartRouter choose"
	Temperature  float64
	MaxTokens    int
	Priority     Priority
	Metadata     RequestMetadata
	McpParams    McpParams
	Parser       Parser

	// SequenceNo is assigned by the Pipeline at submission and used to break ties
	// within a priority band (FIFO).
	SequenceNo uint64
	// SubmittedAt is the wall-clock time the Pipeline accepted the request; the
	// timeout deadline is measured from here.
	SubmittedAt time.Time
}

// Deadline returns the absolute time by which a Response must be produced.
func (r *Request) Deadline(timeout time.Duration) time.Time {
	return r.SubmittedAt.Add(timeout)
}

// Validate checks the Request-level invariants enforced at submit time.
func (r *Request) Validate() error {
	if r.Prompt == "" {
		return NewError(ErrConfig, "prompt must not be empty", nil)
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return NewError(ErrConfig, "temperature must be in [0, 2]", nil)
	}
	if r.MaxTokens <= 0 {
		return NewError(ErrConfig, "maxTokens must be positive", nil)
	}
	if !r.Priority.IsValid() {
		return NewError(ErrConfig, "priority must be one of high, normal, low", nil)
	}
	return r.McpParams.Validate()
}
