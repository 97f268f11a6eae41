package llm

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/narrator/internal/fault"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// DefaultOllamaURL is Ollama's OpenAI-compatible endpoint.
const DefaultOllamaURL = "http://localhost:11434/v1"

// Route splits a model reference such as "ollama/llama3.1" or
// "claude-3-5-haiku-latest" into its provider and the model name the
// provider expects.
func Route(model string) (Provider, string) {
	model = strings.TrimSpace(model)
	if prefix, name, ok := strings.Cut(model, "/"); ok {
		switch strings.ToLower(prefix) {
		case "ollama":
			return ProviderOllama, name
		case "anthropic":
			return ProviderAnthropic, name
		case "openai":
			return ProviderOpenAI, name
		}
	}
	if strings.HasPrefix(strings.ToLower(model), "claude") {
		return ProviderAnthropic, model
	}
	return ProviderOpenAI, model
}

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Model        string
	OpenAIKey    string
	AnthropicKey string
	OpenAIURL    string // optional override of the OpenAI endpoint
	AnthropicURL string
	OllamaURL    string
	Timeout      time.Duration
	MaxRetries   int
	Log          *slog.Logger
	Stats        *LLMStats
}

// NewBackend builds the backend that serves cfg.Model.
func NewBackend(cfg BackendConfig) (Backend, error) {
	provider, name := Route(cfg.Model)
	if name == "" {
		return nil, fault.Input("model", "empty model name")
	}

	var b Backend
	switch provider {
	case ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, fault.Input("model", "ANTHROPIC_API_KEY is required for "+cfg.Model)
		}
		b = NewAnthropicClient(cfg.AnthropicKey, name, AnthropicOptions{
			URL:     cfg.AnthropicURL,
			Timeout: cfg.Timeout,
			Log:     cfg.Log,
		})
	case ProviderOllama:
		url := cfg.OllamaURL
		if url == "" {
			url = DefaultOllamaURL
		}
		b = NewOpenAIClient(name, OpenAIOptions{
			Name:       string(ProviderOllama),
			APIKey:     "ollama",
			BaseURL:    url,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		})
	default:
		if cfg.OpenAIKey == "" {
			return nil, fault.Input("model", "OPENAI_API_KEY is required for "+cfg.Model)
		}
		b = NewOpenAIClient(name, OpenAIOptions{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIURL,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
			Structured: true,
		})
	}
	return WithStats(b, cfg.Stats), nil
}
