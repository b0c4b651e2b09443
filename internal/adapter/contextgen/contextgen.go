package contextgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"esg-rag/internal/domain"
	"esg-rag/internal/infra/ratelimit"
)

const documentExcerptLimit = 4000

// LLMContextualizer asks a small model to situate each chunk within its
// document. Calls are throttled; when the limiter or the model fails, it
// falls back to the heuristic template so ingestion never blocks on the LLM.
type LLMContextualizer struct {
	llm     domain.LLMClient
	limiter *ratelimit.SlidingWindow
	logger  *slog.Logger
}

func NewLLMContextualizer(llm domain.LLMClient, limiter *ratelimit.SlidingWindow, logger *slog.Logger) *LLMContextualizer {
	return &LLMContextualizer{
		llm:     llm,
		limiter: limiter,
		logger:  logger,
	}
}

func (g *LLMContextualizer) GenerateContext(ctx context.Context, documentName, documentText, chunk string, position domain.ChunkPosition) (string, error) {
	if g.llm == nil {
		return domain.HeuristicContext(documentName, chunk, position), nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	excerpt := domain.TruncateUTF8(documentText, documentExcerptLimit)

	messages := []domain.Message{
		{Role: "system", Content: "You situate document excerpts for a search index. Reply with one or two sentences, nothing else."},
		{Role: "user", Content: fmt.Sprintf(
			"Document: %s\n\nDocument start:\n%s\n\nChunk:\n%s\n\nDescribe succinctly what this chunk covers and where it sits in the document, so the chunk can be found by search.",
			documentName, excerpt, chunk)},
	}

	out, err := g.llm.Generate(ctx, messages, domain.GenerateOptions{Temperature: 0.0, MaxTokens: 120})
	if err != nil {
		g.logger.Warn("context_generation_fallback",
			slog.String("document_name", documentName),
			slog.String("error", err.Error()),
		)
		return domain.HeuristicContext(documentName, chunk, position), nil
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return domain.HeuristicContext(documentName, chunk, position), nil
	}
	return out, nil
}

// HeuristicContextualizer always uses the template, for deployments without
// an LLM or for bulk backfills where per-chunk model calls are too slow.
type HeuristicContextualizer struct{}

func (HeuristicContextualizer) GenerateContext(_ context.Context, documentName, _ string, chunk string, position domain.ChunkPosition) (string, error) {
	return domain.HeuristicContext(documentName, chunk, position), nil
}

var (
	_ domain.ContextGenerator = (*LLMContextualizer)(nil)
	_ domain.ContextGenerator = HeuristicContextualizer{}
)
