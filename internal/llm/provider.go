package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/strata/internal/model"
	"github.com/sashabaranov/go-openai"
)

// ErrDisabled is returned when no LLM provider is configured
var ErrDisabled = errors.New("narratives disabled: no LLM provider configured")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Model returns the model requests are sent to
	Model() string

	// Endpoint returns the base URL used for per-host rate limiting
	Endpoint() string

	// Complete sends a system/user prompt pair and returns the assistant text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is one chat-style request
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the assistant reply
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "amplify", "ollama" or "" (disabled)
	Provider string

	Model      string
	APIKey     string
	BaseURL    string
	HeaderName string // Auth header for amplify

	Timeout   time.Duration
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
}

// ConfigFromModel converts the application config
func ConfigFromModel(cfg model.LLMConfig) Config {
	return Config{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		HeaderName: cfg.HeaderName,
		Timeout:    cfg.Timeout,
		MaxTokens:  cfg.MaxTokens,
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: cfg.HTTPSProxy,
	}
}

// StatusError is a non-2xx HTTP response from a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether a failed request is worth repeating.
// Client errors other than 429 are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	code := 0
	var statusErr *StatusError
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &statusErr):
		code = statusErr.StatusCode
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	}

	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return false
	}
	return true
}
