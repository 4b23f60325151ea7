// Package config provides a fluent configuration builder for the MCP daemon, mirroring
// the internal config package's shape for callers that want to assemble a Config in
// code instead of from a YAML file.
package config

import (
	"github.com/adaptive-mcp/adaptive-mcp/internal/config"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/circuitbreaker"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/fallback"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Builder provides a fluent interface for building a daemon Config.
type Builder struct {
	cfg *config.Config
}

// New creates a Builder seeded with every component's documented defaults.
func New() *Builder {
	cfg := config.Default()
	return &Builder{cfg: &cfg}
}

// Port sets the server port.
func (b *Builder) Port(port string) *Builder {
	b.cfg.Server.Port = port
	return b
}

// AllowedOrigins sets CORS allowed origins.
func (b *Builder) AllowedOrigins(origins string) *Builder {
	b.cfg.Server.AllowedOrigins = origins
	return b
}

// Environment sets the environment (development/production).
func (b *Builder) Environment(env string) *Builder {
	b.cfg.Server.Environment = env
	return b
}

// LogLevel sets the logging level (trace, debug, info, warn, error, fatal).
func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Server.LogLevel = level
	return b
}

// DefaultModel sets the model SmartRouter falls back to when no candidate is
// eligible.
func (b *Builder) DefaultModel(model models.ModelId) *Builder {
	b.cfg.DefaultModel = model
	return b
}

// Strategy sets the active strategy preset new requests' unset McpParams default to.
func (b *Builder) Strategy(name models.StrategyName) *Builder {
	b.cfg.Strategy = name
	return b
}

// WithQueue overrides the PriorityQueue/dispatcher tuning.
func (b *Builder) WithQueue(cfg models.QueueConfig) *Builder {
	b.cfg.Queue = cfg
	return b
}

// WithExecutor overrides retry/timeout tuning.
func (b *Builder) WithExecutor(cfg models.ExecutorConfig) *Builder {
	b.cfg.Executor = cfg
	return b
}

// WithExactCache overrides the ExactCache tier configuration.
func (b *Builder) WithExactCache(cfg models.ExactCacheConfig) *Builder {
	b.cfg.ExactCache = cfg
	return b
}

// WithSemanticCache overrides the SemanticCache tier configuration.
func (b *Builder) WithSemanticCache(cfg models.SemanticCacheConfig) *Builder {
	b.cfg.SemanticCache = cfg
	return b
}

// WithFallback overrides fallback-on-failure tuning.
func (b *Builder) WithFallback(cfg fallback.Config) *Builder {
	b.cfg.Fallback = cfg
	return b
}

// WithCircuitBreaker overrides the per-provider circuit breaker tuning.
func (b *Builder) WithCircuitBreaker(cfg circuitbreaker.Config) *Builder {
	b.cfg.CircuitBreaker = cfg
	return b
}

// WithRemoteOverride enables the optional external model-selection service.
func (b *Builder) WithRemoteOverride(cfg router.RemoteOverrideConfig) *Builder {
	b.cfg.RemoteOverride = cfg
	return b
}

// WithDatabase enables a durable ExactCache mirror backed by the given SQL database.
func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

// AddProvider registers credentials and transport settings for one provider.
func (b *Builder) AddProvider(id models.ProviderId, cfg models.ProviderConfig) *Builder {
	if b.cfg.Providers == nil {
		b.cfg.Providers = make(map[models.ProviderId]models.ProviderConfig)
	}
	b.cfg.Providers[id] = cfg
	return b
}

// Build returns the constructed configuration.
func (b *Builder) Build() *config.Config {
	return b.cfg
}

// FromYAML creates a Builder from a YAML configuration file, loading envFiles first
// (first file has highest priority).
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}
