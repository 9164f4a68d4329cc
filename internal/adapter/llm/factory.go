package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"docchat/config"
	"docchat/internal/port"
)

// New creates the configured language model wrapped in a Guard.
func New(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (port.LLM, error) {
	var (
		model port.LLM
		err   error
	)

	switch cfg.Provider {
	case "", "gemini":
		name := cfg.Model
		if name == "" {
			name = "gemini-2.5-flash"
		}
		model, err = NewGeminiClient(ctx, os.Getenv(keyEnv(cfg.APIKeyEnv, "GEMINI_API_KEY")), name, cfg.Temperature, cfg.MaxOutputTokens)
	case "openai":
		key := os.Getenv(keyEnv(cfg.APIKeyEnv, "OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("API key not found. Set %s environment variable", keyEnv(cfg.APIKeyEnv, "OPENAI_API_KEY"))
		}
		model = NewOpenAIClient(baseURL(cfg.BaseURL, "https://api.openai.com/v1"), key, cfg.Model, cfg.Temperature, cfg.MaxOutputTokens)
	case "ollama":
		model = NewOpenAIClient(baseURL(cfg.BaseURL, "http://localhost:11434/v1"), "", cfg.Model, cfg.Temperature, cfg.MaxOutputTokens)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewGuard(model, cfg.RPM, log), nil
}

func keyEnv(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func baseURL(configured, fallback string) string {
	if configured == "" {
		return fallback
	}
	return configured
}
