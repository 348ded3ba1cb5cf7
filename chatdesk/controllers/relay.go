package controllers

import (
	"context"
	"errors"
	"strings"

	"chatdesk/chatdesk/services/llm"
)

var ErrMessageRequired = errors.New("message is required")

// RelayController is the stateless single-shot completion endpoint: one
// message in, one reply out, nothing stored.
type RelayController struct {
	client       llm.CompletionClient
	apiKey       string
	defaultModel string
}

func NewRelayController(client llm.CompletionClient, apiKey, defaultModel string) *RelayController {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &RelayController{client: client, apiKey: apiKey, defaultModel: defaultModel}
}

// KeyStatus reports whether a provider key is configured and its first ten
// characters ("undefined" when unset).
func (c *RelayController) KeyStatus() (bool, string) {
	if c.apiKey == "" {
		return false, "undefined"
	}
	prefix := c.apiKey
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return true, prefix
}

func (c *RelayController) Relay(ctx context.Context, message, model string) (string, error) {
	if c.apiKey == "" {
		return "", &llm.ConfigError{Reason: "OpenAI API key not configured"}
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrMessageRequired
	}
	if model == "" {
		model = c.defaultModel
	}
	reply, err := c.client.Complete(ctx, llm.CompletionRequest{Text: message, Model: model})
	if err != nil {
		return "", err
	}
	if reply == "" {
		reply = llm.NoReply
	}
	return reply, nil
}
