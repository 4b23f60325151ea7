package provider

import (
	"context"
	"errors"

	"google.golang.org/genai"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// GeminiGateway calls the Gemini GenerateContent API via the official SDK.
type GeminiGateway struct {
	client *genai.Client
}

// NewGeminiGateway constructs a GeminiGateway. Client construction needs a context,
// mirroring the SDK's own NewClient signature; callers build gateways once at
// startup so this cost is paid a single time per process.
func NewGeminiGateway(ctx context.Context, cfg models.ProviderConfig) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.NewError(models.ErrConfig, "failed to create gemini client", err)
	}
	return &GeminiGateway{client: client}, nil
}

func (g *GeminiGateway) Provider() models.ProviderId { return models.ProviderGemini }

func (g *GeminiGateway) Complete(ctx context.Context, req NormalizedRequest) (NormalizedResponse, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, string(req.Model), contents, genConfig)
	if err != nil {
		return NormalizedResponse{}, translateGeminiError(err)
	}

	return NormalizedResponse{
		Text:             resp.Text(),
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}, nil
}

func translateGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := classifyHTTPStatus(apiErr.Code)
		fiberlog.Warnf("gemini gateway: status=%d kind=%s: %v", apiErr.Code, kind, err)
		return models.NewError(kind, "gemini request failed", err)
	}
	return models.NewError(models.ErrProviderTransient, "gemini request failed", err)
}
