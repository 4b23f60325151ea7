// Package config loads the MCP daemon's YAML configuration: server basics, queue and
// executor tuning, the two cache tiers, per-provider credentials, the default
// strategy, and the optional remote model-selection override.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/circuitbreaker"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/fallback"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Config is the complete daemon configuration.
type Config struct {
	Server         models.ServerConfig                      `yaml:"server"`
	Queue          models.QueueConfig                       `yaml:"queue"`
	Executor       models.ExecutorConfig                    `yaml:"executor"`
	ExactCache     models.ExactCacheConfig                  `yaml:"exact_cache"`
	SemanticCache  models.SemanticCacheConfig               `yaml:"semantic_cache"`
	Fallback       fallback.Config                          `yaml:"fallback"`
	CircuitBreaker circuitbreaker.Config                    `yaml:"circuit_breaker"`
	Strategy       models.StrategyName                      `yaml:"strategy"`
	DefaultModel   models.ModelId                            `yaml:"default_model"`
	Providers      map[models.ProviderId]models.ProviderConfig `yaml:"providers"`
	RemoteOverride router.RemoteOverrideConfig               `yaml:"remote_override,omitempty"`
	Database       *models.DatabaseConfig                    `yaml:"database,omitempty"`
}

// Default returns a Config populated with every component's documented defaults, as
// the starting point New overlays a file's contents onto.
func Default() Config {
	return Config{
		Server: models.ServerConfig{
			Port:           "8080",
			AllowedOrigins: "*",
			Environment:    "development",
			LogLevel:       "info",
		},
		Queue:          models.DefaultQueueConfig(),
		Executor:       models.DefaultExecutorConfig(),
		ExactCache:     models.DefaultExactCacheConfig(),
		SemanticCache:  models.DefaultSemanticCacheConfig(),
		Fallback:       fallback.Config{Mode: fallback.ModeSequential, TimeoutMs: 30_000},
		CircuitBreaker: circuitbreaker.DefaultConfig(),
		Strategy:       models.StrategyBalanced,
		RemoteOverride: router.DefaultRemoteOverrideConfig(),
		Providers:      make(map[models.ProviderId]models.ProviderConfig),
	}
}

// LoadFromFile loads configuration from a YAML file with environment variable
// substitution, overlaying it onto Default().
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	normalized := make(map[models.ProviderId]models.ProviderConfig, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		normalized[models.ProviderId(strings.ToLower(string(id)))] = pc
	}
	cfg.Providers = normalized

	return &cfg, nil
}

// New loads configuration from the specified file path.
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// LoadEnvFiles loads environment variables from .env files in order of precedence;
// the first file found takes priority over later ones.
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with
// environment variable values.
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// GetProviderConfig returns the configuration for a provider, case-insensitively.
func (c *Config) GetProviderConfig(id models.ProviderId) (models.ProviderConfig, bool) {
	pc, ok := c.Providers[models.ProviderId(strings.ToLower(string(id)))]
	return pc, ok
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison.
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks the fields every deployment must set.
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.DefaultModel == "" {
		missing = append(missing, "default_model")
	}
	if len(c.Providers) == 0 {
		missing = append(missing, "providers")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}
	return nil
}

// ValidationError reports which required configuration fields were left unset.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
