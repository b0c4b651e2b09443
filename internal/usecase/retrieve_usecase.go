package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"esg-rag/internal/domain"
	"esg-rag/internal/usecase/retrieval"
)

// RetrieveResult is the outcome of a retrieval-only request.
type RetrieveResult struct {
	Chunks     []domain.ScoredChunk
	Confidence float64
	TierUsed   int
	Variations []string
}

// RetrieveUsecase serves retrieval without generation, for callers that do
// their own synthesis or for debugging retrieval quality.
type RetrieveUsecase struct {
	pipeline *retrieval.Pipeline
	cfg      RetrievalConfig
	logger   *slog.Logger
}

func NewRetrieveUsecase(pipeline *retrieval.Pipeline, cfg RetrievalConfig, logger *slog.Logger) *RetrieveUsecase {
	return &RetrieveUsecase{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
}

// Execute runs tier 1, escalating to tier 2 expansion when confidence is low.
func (u *RetrieveUsecase) Execute(ctx context.Context, query string) (*RetrieveResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	tier1, err := u.pipeline.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("hybrid retrieval failed: %w", err)
	}

	result := &RetrieveResult{
		Chunks:     tier1.Chunks,
		Confidence: tier1.Confidence,
		TierUsed:   1,
	}

	if tier1.Confidence < u.cfg.Tiers.Tier2Threshold {
		variations := u.pipeline.GenerateVariations(ctx, query)
		tier2, err := u.pipeline.RetrieveMulti(ctx, query, variations)
		if err != nil {
			u.logger.Warn("retrieve_expansion_failed_using_tier1",
				slog.String("error", err.Error()),
			)
			return result, nil
		}
		result.Chunks = u.pipeline.ExpandNeighbors(ctx, tier2.Chunks)
		result.Confidence = tier2.Confidence
		result.TierUsed = 2
		result.Variations = variations
	}

	u.logger.Info("retrieve_completed",
		slog.Int("tier_used", result.TierUsed),
		slog.Float64("confidence", result.Confidence),
		slog.Int("chunk_count", len(result.Chunks)),
	)
	return result, nil
}
