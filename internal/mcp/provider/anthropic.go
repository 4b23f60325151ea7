package provider

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// AnthropicGateway calls the Anthropic Messages API via the official SDK.
type AnthropicGateway struct {
	client *anthropic.Client
}

// NewAnthropicGateway constructs an AnthropicGateway from static config.
func NewAnthropicGateway(cfg models.ProviderConfig) *AnthropicGateway {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicGateway{client: &client}
}

func (g *AnthropicGateway) Provider() models.ProviderId { return models.ProviderAnthropic }

func (g *AnthropicGateway) Complete(ctx context.Context, req NormalizedRequest) (NormalizedResponse, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return NormalizedResponse{}, translateAnthropicError(err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return NormalizedResponse{
		Text:             text,
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}, nil
}

func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := classifyHTTPStatus(apiErr.StatusCode)
		fiberlog.Warnf("anthropic gateway: status=%d kind=%s: %v", apiErr.StatusCode, kind, err)
		return models.NewError(kind, "anthropic request failed", err)
	}
	return models.NewError(models.ErrProviderTransient, "anthropic request failed", err)
}
