package router

import (
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Presets returns the three built-in strategy presets in aggressive/balanced/
// conservative order. Ordering is a tested invariant: minSimilarity strictly
// increases across the slice, and conservative is exact-only.
func Presets() []models.StrategyPreset {
	return []models.StrategyPreset{
		{
			Name: models.StrategyAggressive,
			Defaults: models.McpParams{
				CacheStrategy: models.CacheStrategyHybrid,
				MinSimilarity: 0.65,
				CacheTTL:      24 * time.Hour,
				Priority:      models.OptimizeSpeed,
				StoreResult:   true,
			},
		},
		{
			Name: models.StrategyBalanced,
			Defaults: models.McpParams{
				CacheStrategy: models.CacheStrategySemantic,
				MinSimilarity: 0.80,
				CacheTTL:      12 * time.Hour,
				Priority:      models.OptimizeQuality,
				StoreResult:   true,
			},
		},
		{
			Name: models.StrategyConservative,
			Defaults: models.McpParams{
				CacheStrategy: models.CacheStrategyExact,
				MinSimilarity: 0.95,
				CacheTTL:      1 * time.Hour,
				Priority:      models.OptimizeQuality,
				StoreResult:   true,
			},
		},
	}
}

// PresetByName looks up one preset by name, returning the balanced preset for any
// unrecognized name so a bad config value degrades gracefully rather than panicking.
func PresetByName(name models.StrategyName) models.McpParams {
	for _, p := range Presets() {
		if p.Name == name {
			return p.Defaults
		}
	}
	return PresetByName(models.StrategyBalanced)
}
