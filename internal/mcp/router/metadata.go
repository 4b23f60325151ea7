package router

import "github.com/adaptive-mcp/adaptive-mcp/internal/models"

// DefaultModelMetadata seeds the router with the well-known models of the three wired
// providers. Callers may add/override entries via SmartRouter.Override.
func DefaultModelMetadata() map[models.ModelId]models.ModelMetadata {
	return map[models.ModelId]models.ModelMetadata{
		"claude-3-5-sonnet": {
			Provider:              models.ProviderAnthropic,
			ContextSize:           200_000,
			CostPerInputToken:     0.000003,
			CostPerOutputToken:    0.000015,
			AverageResponseTimeMs: 1800,
			Capabilities: map[string]float64{
				models.CapReasoning:         9,
				models.CapCreativity:        8,
				models.CapCodeGeneration:    9,
				models.CapMathPrecision:     7,
				models.CapFactualAccuracy:   8,
				models.CapContextUnderstand: 9,
			},
		},
		"claude-3-haiku": {
			Provider:              models.ProviderAnthropic,
			ContextSize:           200_000,
			CostPerInputToken:     0.00000025,
			CostPerOutputToken:    0.00000125,
			AverageResponseTimeMs: 700,
			Capabilities: map[string]float64{
				models.CapReasoning:         6,
				models.CapCreativity:        5,
				models.CapCodeGeneration:    6,
				models.CapMathPrecision:     5,
				models.CapFactualAccuracy:   6,
				models.CapContextUnderstand: 7,
			},
		},
		"gpt-4o": {
			Provider:              models.ProviderOpenAI,
			ContextSize:           128_000,
			CostPerInputToken:     0.0000025,
			CostPerOutputToken:    0.00001,
			AverageResponseTimeMs: 1500,
			Capabilities: map[string]float64{
				models.CapReasoning:         9,
				models.CapCreativity:        8,
				models.CapCodeGeneration:    8,
				models.CapMathPrecision:     8,
				models.CapFactualAccuracy:   8,
				models.CapContextUnderstand: 8,
			},
		},
		"gpt-4o-mini": {
			Provider:              models.ProviderOpenAI,
			ContextSize:           128_000,
			CostPerInputToken:     0.00000015,
			CostPerOutputToken:    0.0000006,
			AverageResponseTimeMs: 900,
			Capabilities: map[string]float64{
				models.CapReasoning:         6,
				models.CapCreativity:        6,
				models.CapCodeGeneration:    6,
				models.CapMathPrecision:     6,
				models.CapFactualAccuracy:   6,
				models.CapContextUnderstand: 6,
			},
		},
		"gemini-2.5-flash": {
			Provider:              models.ProviderGemini,
			ContextSize:           1_000_000,
			CostPerInputToken:     0.000000075,
			CostPerOutputToken:    0.0000003,
			AverageResponseTimeMs: 650,
			Capabilities: map[string]float64{
				models.CapReasoning:         7,
				models.CapCreativity:        6,
				models.CapCodeGeneration:    7,
				models.CapMathPrecision:     7,
				models.CapFactualAccuracy:   7,
				models.CapContextUnderstand: 8,
			},
		},
		"gemini-2.5-pro": {
			Provider:              models.ProviderGemini,
			ContextSize:           2_000_000,
			CostPerInputToken:     0.00000125,
			CostPerOutputToken:    0.000005,
			AverageResponseTimeMs: 2100,
			Capabilities: map[string]float64{
				models.CapReasoning:         9,
				models.CapCreativity:        8,
				models.CapCodeGeneration:    8,
				models.CapMathPrecision:     9,
				models.CapFactualAccuracy:   9,
				models.CapContextUnderstand: 9,
			},
		},
	}
}

// taskCapabilityWeights is the per-taskType weight table used to compute the quality
// score: a weighted average over capability scores. Every table's weights sum to 1.0.
// "general" is the required fallback for any taskType not listed here.
var taskCapabilityWeights = map[models.TaskType]map[string]float64{
	models.TaskGeneral: {
		models.CapReasoning:         0.3,
		models.CapCreativity:        0.2,
		models.CapFactualAccuracy:   0.3,
		models.CapContextUnderstand: 0.2,
	},
	models.TaskCode: {
		models.CapCodeGeneration:    0.6,
		models.CapReasoning:         0.3,
		models.CapContextUnderstand: 0.1,
	},
	models.TaskCreative: {
		models.CapCreativity:        0.6,
		models.CapContextUnderstand: 0.2,
		models.CapReasoning:         0.2,
	},
	models.TaskAnalysis: {
		models.CapReasoning:         0.4,
		models.CapFactualAccuracy:   0.3,
		models.CapContextUnderstand: 0.3,
	},
	models.TaskMath: {
		models.CapMathPrecision: 0.7,
		models.CapReasoning:     0.3,
	},
	models.TaskFactual: {
		models.CapFactualAccuracy: 0.7,
		models.CapReasoning:       0.3,
	},
	models.TaskCAD: {
		models.CapReasoning:      0.4,
		models.CapMathPrecision:  0.4,
		models.CapContextUnderstand: 0.2,
	},
}

// weightsFor returns the capability weight table for taskType, falling back to
// "general" for any taskType the table above doesn't enumerate.
func weightsFor(taskType models.TaskType) map[string]float64 {
	if w, ok := taskCapabilityWeights[taskType]; ok {
		return w
	}
	return taskCapabilityWeights[models.TaskGeneral]
}
