package embedding

import (
	"context"
	"fmt"
	"os"

	"docchat/config"
	"docchat/internal/port"
)

// New creates the embedder selected by cfg.Provider. API keys are read from
// the environment variable named by cfg.APIKeyEnv.
func New(ctx context.Context, cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalEmbedder(cfg.Dimension), nil
	case "mock":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 64
		}
		return NewMockEmbedder(dim), nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIEmbedder(os.Getenv(keyEnv(cfg.APIKeyEnv, "OPENAI_API_KEY")), model, cfg.BaseURL)
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model, cfg.BaseURL), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, os.Getenv(keyEnv(cfg.APIKeyEnv, "GEMINI_API_KEY")), cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func keyEnv(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
