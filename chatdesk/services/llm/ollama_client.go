package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	httputils "chatdesk/chatdesk/utils/http"
	"chatdesk/chatdesk/utils/logging"
)

type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	if model == "" {
		model = "llama3:8b"
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	defer logging.LogDuration(ctx, "ollama_service_complete")()

	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatCompletionRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: req.Text}},
		Stream:   false,
	}
	var resp ollamaChatResponse
	if err := httputils.PostJSON(ctx, c.http, c.baseURL+"/chat", body, &resp); err != nil {
		return "", fromHTTPError(err)
	}
	if resp.Message.Content == "" {
		return NoReply, nil
	}
	return resp.Message.Content, nil
}
