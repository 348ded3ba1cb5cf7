package llm

import (
	"context"
	"errors"
	"time"

	"chatdesk/chatdesk/utils/logging"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// GPTClient calls the OpenAI chat completions API (or any compatible base URL).
type GPTClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, extra ...option.RequestOption) *GPTClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	opts = append(opts, extra...)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &GPTClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete sends the text as a single user message, the way the web relay did.
func (c *GPTClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	defer logging.LogDuration(ctx, "gpt_service_complete")()

	model := req.Model
	if model == "" {
		model = c.model
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Text)},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			logging.ErrorLogger.Error("OpenAI API error", zap.Int("status", apiErr.StatusCode), zap.Error(err))
			return "", &UpstreamError{Status: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", &TransportError{Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return NoReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}
