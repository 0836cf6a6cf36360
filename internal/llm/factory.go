package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a provider from configuration; an empty provider returns ErrDisabled
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAIProvider(cfg)

	case "amplify":
		return NewAmplifyProvider(cfg)

	case "ollama":
		return NewOllamaProvider(cfg)

	case "":
		return nil, ErrDisabled

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, amplify, ollama)", cfg.Provider)
	}
}

// ApplyEnv fills empty fields from the provider's conventional environment variables
func ApplyEnv(cfg Config, getenv func(string) string) Config {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}

	switch strings.ToLower(cfg.Provider) {
	case "amplify":
		fill(&cfg.APIKey, "AMPLIFY_API_KEY")
		fill(&cfg.BaseURL, "AMPLIFY_API_URL")
		fill(&cfg.Model, "AMPLIFY_MODEL")
		fill(&cfg.HeaderName, "AMPLIFY_HEADER_NAME")
	case "openai":
		fill(&cfg.APIKey, "OPENAI_API_KEY")
		fill(&cfg.BaseURL, "OPENAI_BASE_URL")
	case "ollama":
		fill(&cfg.BaseURL, "OLLAMA_BASE_URL")
	}
	return cfg
}
