package router

import (
	"context"
	"fmt"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adaptive-mcp/adaptive-mcp/internal/httpclient"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/circuitbreaker"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// remoteSelectionRequest/Response mirror the JSON contract of an external model-
// selection service, kept intentionally small: only what's needed to pick a model.
type remoteSelectionRequest struct {
	TaskType             string   `json:"taskType"`
	Complexity           string   `json:"complexity"`
	RequiredCapabilities []string `json:"requiredCapabilities,omitempty"`
	PreferredProvider    string   `json:"preferredProvider,omitempty"`
	Priority             string   `json:"priority"`
}

type remoteSelectionResponse struct {
	Provider     string               `json:"provider"`
	Model        string               `json:"model"`
	Alternatives []models.Alternative `json:"alternatives,omitempty"`
}

func (r remoteSelectionResponse) isValid() bool {
	return r.Provider != "" && r.Model != ""
}

// RemoteOverrideConfig configures the optional external model-selection service.
// Leaving URL empty disables the override entirely; SmartRouter.Select is always
// available as the primary, dependency-free path.
type RemoteOverrideConfig struct {
	URL            string                `yaml:"url,omitempty"`
	JWTSecret      string                `yaml:"jwt_secret,omitempty"`
	RequestTimeout time.Duration         `yaml:"request_timeout"`
	CircuitBreaker circuitbreaker.Config `yaml:"circuit_breaker"`
}

// DefaultRemoteOverrideConfig mirrors the teacher's client defaults.
func DefaultRemoteOverrideConfig() RemoteOverrideConfig {
	return RemoteOverrideConfig{
		RequestTimeout: 5 * time.Second,
		CircuitBreaker: circuitbreaker.Config{
			FailureThreshold: 3,
			SuccessThreshold: 2,
			Timeout:          10 * time.Second,
			ResetAfter:       30 * time.Second,
		},
	}
}

// RemoteOverride is a circuit-breaker-protected client for an optional external
// model-selection service. It never blocks the core's operation: any failure
// (breaker open, JWT error, network error, invalid response) falls back to the
// caller's local SmartRouter.Select result.
type RemoteOverride struct {
	client    *httpclient.Client
	jwtSecret string
	timeout   time.Duration
	breaker   circuitbreaker.Breaker
}

// NewRemoteOverride constructs a RemoteOverride, or nil if cfg.URL is empty (feature
// disabled).
func NewRemoteOverride(cfg RemoteOverrideConfig) *RemoteOverride {
	if cfg.URL == "" {
		return nil
	}
	return &RemoteOverride{
		client:    httpclient.New(cfg.URL),
		jwtSecret: cfg.JWTSecret,
		timeout:   cfg.RequestTimeout,
		breaker:   circuitbreaker.NewWithConfig("smart_router_remote", cfg.CircuitBreaker),
	}
}

func (o *RemoteOverride) generateJWT() (string, error) {
	if o.jwtSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "adaptive-mcp",
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(o.jwtSecret))
}

// Select asks the remote service to pick a model, returning ok=false on any failure
// so the caller falls through to local SmartRouter.Select instead.
func (o *RemoteOverride) Select(ctx context.Context, req models.SelectionRequest) (models.ModelId, bool) {
	if o == nil {
		return "", false
	}

	if !o.breaker.CanExecute() {
		fiberlog.Debugf("smart router: remote override circuit open, using local selection")
		return "", false
	}

	jwtToken, err := o.generateJWT()
	if err != nil {
		fiberlog.Warnf("smart router: remote override JWT error: %v", err)
		return "", false
	}

	body := remoteSelectionRequest{
		TaskType:             string(req.TaskType),
		Complexity:           string(req.Complexity),
		RequiredCapabilities: req.RequiredCapabilities,
		PreferredProvider:    string(req.PreferredProvider),
		Priority:             string(req.Priority),
	}

	var out remoteSelectionResponse
	err = o.client.Post("", body, &out, &httpclient.RequestOptions{
		Timeout: o.timeout,
		Context: ctx,
		Headers: map[string]string{"Authorization": "Bearer " + jwtToken},
	})
	if err != nil {
		o.breaker.RecordFailure()
		fiberlog.Warnf("smart router: remote override request failed: %v", err)
		return "", false
	}

	if !out.isValid() {
		o.breaker.RecordFailure()
		fiberlog.Warnf("smart router: remote override returned invalid response")
		return "", false
	}

	o.breaker.RecordSuccess()
	return models.ModelId(out.Model), true
}
