// Package llm holds the completion clients the chat store talks to.
// Every client answers one user text with one reply and reports failures as
// UpstreamError, TransportError or ConfigError.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatdesk/chatdesk/config"
)

// CompletionRequest is one outbound completion.
type CompletionRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// CompletionClient turns a user message into an assistant reply.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NoReply is returned when the provider answered without any content.
const NoReply = "No reply received."

// UpstreamError is a non-success answer from the provider.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Message)
}

// TransportError means the provider could not be reached.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConfigError means the client cannot run, usually because no credential is set.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

// Kind names the error category for logging: "upstream", "transport",
// "config", "canceled" or "unknown".
func Kind(err error) string {
	var upstream *UpstreamError
	var transport *TransportError
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &upstream):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &transport):
		return "transport"
	default:
		return "unknown"
	}
}

// unconfigured fails every call with the same ConfigError.
type unconfigured struct {
	err *ConfigError
}

func (u unconfigured) Complete(context.Context, CompletionRequest) (string, error) {
	return "", u.err
}

// Unconfigured returns a client that always fails with ConfigError.
func Unconfigured(reason string) CompletionClient {
	return unconfigured{err: &ConfigError{Reason: reason}}
}

// NewClient builds the client selected by cfg.LLMProvider. A missing
// credential yields a client that fails with ConfigError instead of an error
// here, so the server still starts and the failure shows up in the chat.
func NewClient(cfg config.Config) (CompletionClient, error) {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	switch cfg.LLMProvider {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			return Unconfigured("OpenAI API key not configured"), nil
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.DefaultModel, timeout), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return Unconfigured("Anthropic API key not configured"), nil
		}
		return NewAnthropicClient(cfg.AnthropicKey, cfg.DefaultModel, timeout), nil
	case "groq":
		if cfg.GroqAPIKey == "" {
			return Unconfigured("Groq API key not configured"), nil
		}
		return NewGroqClient(cfg.GroqAPIKey, cfg.DefaultModel, timeout), nil
	case "ollama":
		return NewOllamaClient(cfg.OllamaURL, cfg.DefaultModel, timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
