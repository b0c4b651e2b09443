package embedding

import (
	"log/slog"

	"esg-rag/internal/domain"
	"esg-rag/internal/infra/config"
)

// FromConfig selects the embedding provider named in configuration.
// Returns nil when the provider is "none" or unknown; retrieval then runs
// lexical-only.
func FromConfig(cfg *config.Config) domain.EmbeddingProvider {
	switch cfg.EmbeddingProvider {
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	case "jina":
		return NewJinaEmbedder(cfg.JinaBaseURL, cfg.JinaAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	case "none", "":
		slog.Info("embedding_provider_disabled")
		return nil
	default:
		slog.Warn("embedding_provider_unknown",
			slog.String("provider", cfg.EmbeddingProvider),
		)
		return nil
	}
}
