package models

// ServerConfig holds the HTTP-façade basics, following the teacher's flat,
// YAML-tagged config-struct convention.
type ServerConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowed_origins"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
}

// ProviderConfig holds per-provider credentials and transport settings. Populated at
// construction time only; the core never reads these from ambient state.
type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty"`
	TimeoutMs int    `yaml:"timeout_ms,omitempty"`
}

// QueueConfig bounds the PriorityQueue and dispatcher.
type QueueConfig struct {
	Capacity    int `yaml:"capacity"`
	Parallelism int `yaml:"parallelism"`
}

// DefaultQueueConfig mirrors §4.2's "small, e.g. 4" dispatcher default.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Capacity: 1000, Parallelism: 4}
}

// ExecutorConfig bounds retry/timeout behavior, independent of any one provider.
type ExecutorConfig struct {
	MaxRetries int   `yaml:"max_retries"`
	RetryDelay int   `yaml:"retry_delay_ms"`
	TimeoutMs  int64 `yaml:"timeout_ms"`
}

// DefaultExecutorConfig mirrors §4.3's defaults: 3 retries, 30s timeout.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{MaxRetries: 3, RetryDelay: 200, TimeoutMs: 30_000}
}
