package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httputils "chatdesk/chatdesk/utils/http"
	"chatdesk/chatdesk/utils/logging"
)

// Message is the OpenAI-style chat message used on the plain-HTTP wires.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type GroqClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewGroqClient returns a client pointing to the Groq OpenAI-compatible endpoint.
func NewGroqClient(apiKey, model string, timeout time.Duration) *GroqClient {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &GroqClient{
		baseURL: "https://api.groq.com/openai/v1",
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at another OpenAI-compatible server.
func (c *GroqClient) WithBaseURL(baseURL string) *GroqClient {
	c.baseURL = baseURL
	return c
}

func (c *GroqClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	defer logging.LogDuration(ctx, "groq_service_complete")()

	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatCompletionRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: req.Text}},
	}
	var resp chatCompletionResponse
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	if err := httputils.PostJSONWithAuth(ctx, c.http, url, c.apiKey, body, &resp); err != nil {
		return "", fromHTTPError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return NoReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// fromHTTPError sorts httputils failures into the package error kinds.
func fromHTTPError(err error) error {
	var status *httputils.StatusError
	var transport *httputils.TransportError
	switch {
	case errors.As(err, &status):
		return &UpstreamError{Status: status.StatusCode, Message: status.Body}
	case errors.Is(err, httputils.ErrDecode):
		return &UpstreamError{Status: http.StatusBadGateway, Message: err.Error()}
	case errors.As(err, &transport):
		return &TransportError{Err: transport}
	default:
		return &TransportError{Err: err}
	}
}
