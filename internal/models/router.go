package models

// ComplexityLevel is the caller-declared difficulty of a task, used both for the
// SmartRouter's capability gate and its quality-score complexity multiplier.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// capabilityThreshold is the single numeric bar a capability score must clear to make
// a model eligible at a given complexity level. Deliberately the same threshold for
// every required capability (see spec.md §9: no per-capability override).
func (c ComplexityLevel) capabilityThreshold() float64 {
	switch c {
	case ComplexityLow:
		return 3
	case ComplexityMedium:
		return 6
	case ComplexityHigh:
		return 8
	default:
		return 6
	}
}

// CapabilityThreshold exposes capabilityThreshold for callers outside this package.
func (c ComplexityLevel) CapabilityThreshold() float64 { return c.capabilityThreshold() }

// qualityMultiplier scales the quality score by how hard the task is declared to be.
func (c ComplexityLevel) qualityMultiplier() float64 {
	switch c {
	case ComplexityLow:
		return 0.7
	case ComplexityMedium:
		return 1.0
	case ComplexityHigh:
		return 1.3
	default:
		return 1.0
	}
}

// QualityMultiplier exposes qualityMultiplier for callers outside this package.
func (c ComplexityLevel) QualityMultiplier() float64 { return c.qualityMultiplier() }

// TaskType is an open string naming the kind of work a Request represents
// (general, code, creative, analysis, math, factual, cad, ...). It indexes the
// task→capability weight table the SmartRouter uses to compute quality scores.
type TaskType string

const (
	TaskGeneral  TaskType = "general"
	TaskCode     TaskType = "code"
	TaskCreative TaskType = "creative"
	TaskAnalysis TaskType = "analysis"
	TaskMath     TaskType = "math"
	TaskFactual  TaskType = "factual"
	TaskCAD      TaskType = "cad"
)

// Capability names scored 0..10 in ModelMetadata.Capabilities.
const (
	CapReasoning          = "reasoning"
	CapCreativity         = "creativity"
	CapCodeGeneration     = "codeGeneration"
	CapMathPrecision      = "mathPrecision"
	CapFactualAccuracy    = "factualAccuracy"
	CapContextUnderstand  = "contextUnderstanding"
)

// requiredCapabilityFields maps a typed requirement flag from RequestMetadata to the
// ModelMetadata capability field it gates on.
var requiredCapabilityFields = map[string]string{
	"requiresReasoning": CapReasoning,
	"requiresCode":      CapCodeGeneration,
	"requiresMath":      CapMathPrecision,
	"requiresFactual":   CapFactualAccuracy,
}

// RequiredCapabilityFields returns the map from each typed requirement flag name to
// the capability field it gates on.
func RequiredCapabilityFields() map[string]string { return requiredCapabilityFields }

// ModelMetadata is the static-but-overridable per-model record the SmartRouter scores
// candidates against. Loaded at startup; user-overridable via SmartRouter.Override.
type ModelMetadata struct {
	Provider              ProviderId
	ContextSize           int
	CostPerInputToken      float64
	CostPerOutputToken     float64
	AverageResponseTimeMs float64
	Capabilities          map[string]float64 // name -> score in [0, 10]
}

// PartialModelMetadata carries sparse overrides applied atomically to an existing
// ModelMetadata entry via SmartRouter.Override.
type PartialModelMetadata struct {
	ContextSize           *int
	CostPerInputToken      *float64
	CostPerOutputToken     *float64
	AverageResponseTimeMs *float64
	Capabilities          map[string]float64
}

// Alternative is a provider+model fallback candidate, used both by SmartRouter
// (primary + alternatives) and by the fallback executor.
type Alternative struct {
	Provider ProviderId
	Model    ModelId
}

// SelectionRequest is the input the SmartRouter.Select needs to score candidates.
type SelectionRequest struct {
	TaskType              TaskType
	Complexity            ComplexityLevel
	RequiredCapabilities  []string
	PreferredProvider     ProviderId
	Priority              OptimizationPriority
	PromptTokenEstimate   int
	OutputTokenEstimate   int
	// ExcludedProviders lists providers Select must treat as ineligible regardless
	// of their models' capability scores, e.g. ones the Executor has observed
	// tripping their circuit breaker.
	ExcludedProviders []ProviderId
}

// StrategyName identifies one of the three built-in strategy presets.
type StrategyName string

const (
	StrategyAggressive   StrategyName = "aggressive"
	StrategyBalanced     StrategyName = "balanced"
	StrategyConservative StrategyName = "conservative"
)

// StrategyPreset is a named bundle of default McpParams values. Aggressive trades
// correctness for hit rate (hybrid cache, low similarity floor); conservative trades
// hit rate for correctness (exact-only, high floor).
type StrategyPreset struct {
	Name     StrategyName
	Defaults McpParams
}
