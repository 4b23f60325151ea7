package provider

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// OpenAIGateway calls the OpenAI-compatible Chat Completions API via the official SDK.
// A custom BaseURL lets the same client serve any OpenAI-dialect-compatible provider.
type OpenAIGateway struct {
	client   *openai.Client
	provider models.ProviderId
}

// NewOpenAIGateway constructs an OpenAIGateway from static config, tagged as
// providerID for downstream circuit-breaker/routing bookkeeping (useful when this
// gateway is reused for an OpenAI-compatible third-party endpoint).
func NewOpenAIGateway(cfg models.ProviderConfig, providerID models.ProviderId) *OpenAIGateway {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIGateway{client: &client, provider: providerID}
}

func (g *OpenAIGateway) Provider() models.ProviderId { return g.provider }

func (g *OpenAIGateway) Complete(ctx context.Context, req NormalizedRequest) (NormalizedResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return NormalizedResponse{}, translateOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return NormalizedResponse{}, models.NewError(models.ErrProviderFatal, "openai response had no choices", nil)
	}

	return NormalizedResponse{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func translateOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := classifyHTTPStatus(apiErr.StatusCode)
		fiberlog.Warnf("openai gateway: status=%d kind=%s: %v", apiErr.StatusCode, kind, err)
		return models.NewError(kind, "openai request failed", err)
	}
	return models.NewError(models.ErrProviderTransient, "openai request failed", err)
}
