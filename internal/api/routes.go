package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	apiresp "github.com/adaptive-mcp/adaptive-mcp/internal/api/response"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func (s *Server) setupRoutes() {
	app := s.app

	app.Get("/", s.handleWelcome)
	app.Get("/healthz", s.handleHealthz)
	app.Get("/stats", s.handleStats)

	v1 := app.Group("/v1")
	v1.Post("/completions", s.handleSubmit)

	admin := app.Group("/admin")
	admin.Post("/strategy", s.handleSetStrategy)
	admin.Post("/strategy/:name/config", s.handleUpdateStrategyConfig)
	admin.Post("/multi-provider", s.handleSetMultiProviderEnabled)
	admin.Post("/preferred-provider", s.handleSetPreferredProvider)
	admin.Post("/semantic-cache", s.handleSetSemanticCacheEnabled)
	admin.Post("/smart-routing", s.handleSetSmartRoutingEnabled)
	admin.Post("/default-ttl", s.handleSetDefaultTTL)
}

func (s *Server) handleWelcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "adaptive-mcp",
		"status":  "ok",
	})
}

func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return s.response.Success(c, s.pipeline.Stats())
}

// completionRequest is the wire shape of a submit-time request body.
type completionRequest struct {
	Prompt       string               `json:"prompt"`
	SystemPrompt string               `json:"systemPrompt,omitempty"`
	Model        models.ModelId       `json:"model,omitempty"`
	Temperature  float64              `json:"temperature"`
	MaxTokens    int                  `json:"maxTokens"`
	Priority     models.Priority      `json:"priority,omitempty"`
	McpParams    *completionMcpParams `json:"mcpParams,omitempty"`
}

type completionMcpParams struct {
	CacheStrategy     models.CacheStrategy        `json:"cacheStrategy,omitempty"`
	MinSimilarity     float64                     `json:"minSimilarity"`
	CacheTTLSeconds   int64                       `json:"cacheTtlSeconds,omitempty"`
	Priority          models.OptimizationPriority `json:"priority,omitempty"`
	StoreResult       bool                        `json:"storeResult"`
	PreferredProvider models.ProviderId           `json:"preferredProvider,omitempty"`
}

func (s *Server) handleSubmit(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)

	var body completionRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}

	priority := body.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	req := &models.Request{
		Prompt:       body.Prompt,
		SystemPrompt: body.SystemPrompt,
		Model:        body.Model,
		Temperature:  body.Temperature,
		MaxTokens:    body.MaxTokens,
	}
	if body.McpParams != nil {
		req.McpParams = models.McpParams{
			CacheStrategy:     body.McpParams.CacheStrategy,
			MinSimilarity:     body.McpParams.MinSimilarity,
			CacheTTL:          time.Duration(body.McpParams.CacheTTLSeconds) * time.Second,
			Priority:          body.McpParams.Priority,
			StoreResult:       body.McpParams.StoreResult,
			PreferredProvider: body.McpParams.PreferredProvider,
		}
	}

	future, err := s.pipeline.Submit(req, priority)
	if err != nil {
		kind := models.KindOf(err)
		return s.response.Error(c, apiresp.StatusForKind(kind), err.Error(), string(kind), requestID)
	}

	resp, err := future.Get(c.UserContext())
	if err != nil {
		return s.response.Error(c, fiber.StatusGatewayTimeout, err.Error(), string(models.ErrTimeout), requestID)
	}

	return s.response.Completion(c, resp, requestID)
}

type setStrategyRequest struct {
	Strategy models.StrategyName `json:"strategy"`
}

func (s *Server) handleSetStrategy(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	var body setStrategyRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}
	s.pipeline.SetStrategy(body.Strategy)
	return s.response.Success(c, s.pipeline.Stats().Settings)
}

type updateStrategyConfigRequest struct {
	CacheStrategy     *models.CacheStrategy        `json:"cacheStrategy,omitempty"`
	MinSimilarity     *float64                     `json:"minSimilarity,omitempty"`
	CacheTTLSeconds   *int64                       `json:"cacheTtlSeconds,omitempty"`
	Priority          *models.OptimizationPriority `json:"priority,omitempty"`
	StoreResult       *bool                        `json:"storeResult,omitempty"`
	PreferredProvider *models.ProviderId           `json:"preferredProvider,omitempty"`
}

func (s *Server) handleUpdateStrategyConfig(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	name := models.StrategyName(c.Params("name"))

	var body updateStrategyConfigRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}

	patch := models.PartialMcpParams{
		CacheStrategy:     body.CacheStrategy,
		MinSimilarity:     body.MinSimilarity,
		Priority:          body.Priority,
		StoreResult:       body.StoreResult,
		PreferredProvider: body.PreferredProvider,
	}
	if body.CacheTTLSeconds != nil {
		ttl := time.Duration(*body.CacheTTLSeconds) * time.Second
		patch.CacheTTL = &ttl
	}

	s.pipeline.UpdateStrategyConfig(name, patch)
	return s.response.Success(c, fiber.Map{"strategy": name, "updated": true})
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetMultiProviderEnabled(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	var body toggleRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}
	s.pipeline.SetMultiProviderEnabled(body.Enabled)
	return s.response.Success(c, s.pipeline.Stats().Settings)
}

type preferredProviderRequest struct {
	Provider models.ProviderId `json:"provider"`
}

func (s *Server) handleSetPreferredProvider(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	var body preferredProviderRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}
	s.pipeline.SetPreferredProvider(body.Provider)
	return s.response.Success(c, s.pipeline.Stats().Settings)
}

func (s *Server) handleSetSemanticCacheEnabled(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	var body toggleRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}
	s.pipeline.SetSemanticCacheEnabled(body.Enabled)
	return s.response.Success(c, s.pipeline.Stats().Settings)
}

func (s *Server) handleSetSmartRoutingEnabled(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	var body toggleRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}
	s.pipeline.SetSmartRoutingEnabled(body.Enabled)
	return s.response.Success(c, s.pipeline.Stats().Settings)
}

type defaultTTLRequest struct {
	TTLSeconds int64 `json:"ttlSeconds"`
}

func (s *Server) handleSetDefaultTTL(c *fiber.Ctx) error {
	requestID := s.request.GetRequestID(c)
	var body defaultTTLRequest
	if err := c.BodyParser(&body); err != nil {
		return s.response.Error(c, fiber.StatusBadRequest, "invalid request body: "+err.Error(), string(models.ErrConfig), requestID)
	}
	s.pipeline.SetDefaultTTL(time.Duration(body.TTLSeconds) * time.Second)
	return s.response.Success(c, s.pipeline.Stats().Settings)
}
