package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatdesk/chatdesk/utils/logging"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const anthropicMaxTokens = 4096

type AnthropicClient struct {
	client anthropic.Client
	model  string
}

func NewAnthropicClient(apiKey, model string, timeout time.Duration, extra ...anthropicoption.RequestOption) *AnthropicClient {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}
	if timeout > 0 {
		opts = append(opts, anthropicoption.WithRequestTimeout(timeout))
	}
	opts = append(opts, extra...)
	// The shared default model is an OpenAI name; fall back to a Claude model.
	if model == "" || !strings.HasPrefix(model, "claude") {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	defer logging.LogDuration(ctx, "anthropic_service_complete")()

	model := req.Model
	if model == "" || !strings.HasPrefix(model, "claude") {
		model = c.model
	}
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text))},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			logging.ErrorLogger.Error("Anthropic API error", zap.Int("status", apiErr.StatusCode), zap.Error(err))
			return "", &UpstreamError{Status: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", &TransportError{Err: err}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return NoReply, nil
	}
	return sb.String(), nil
}
