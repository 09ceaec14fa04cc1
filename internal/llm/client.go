// Package llm provides the narrow chat capability the decision kernel and
// review service consume, with adapters for OpenAI-compatible providers and
// Google Gemini.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey means no key was configured for the provider
	ErrNoAPIKey = errors.New("no API key configured")

	// ErrInvalidKey means the provider rejected the key
	ErrInvalidKey = errors.New("API key rejected by provider")

	// ErrUnavailable covers provider/network failures that may be transient
	ErrUnavailable = errors.New("LLM provider unavailable")

	// ErrEmptyResponse means the provider returned no usable content
	ErrEmptyResponse = errors.New("empty response from LLM provider")
)

// Message is one turn of a chat exchange
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Options tune a single chat call. Zero values select provider defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is the chat capability. Implementations must be safe for
// concurrent use.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Config selects and configures a provider
type Config struct {
	Provider string // "deepseek" (default), "openai", "gemini"
	APIKey   string
	BaseURL  string // OpenAI-compatible providers only
	Model    string
}

// New builds a client for the configured provider
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	switch cfg.Provider {
	case "", "deepseek":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com"
		}
		model := cfg.Model
		if model == "" {
			model = "deepseek-chat"
		}
		return NewOpenAICompatible(baseURL, cfg.APIKey, model), nil

	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o"
		}
		return NewOpenAICompatible(baseURL, cfg.APIKey, model), nil

	case "gemini":
		model := cfg.Model
		if model == "" {
			model = "gemini-pro"
		}
		return NewGemini(cfg.APIKey, model), nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
