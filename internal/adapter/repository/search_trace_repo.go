package repository

import (
	"context"
	"fmt"

	"esg-rag/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type searchTraceRepository struct {
	pool *pgxpool.Pool
}

// NewSearchTraceRepository creates the pgx-backed retrieval trace store.
func NewSearchTraceRepository(pool *pgxpool.Pool) domain.SearchTraceRepository {
	return &searchTraceRepository{pool: pool}
}

func (r *searchTraceRepository) Insert(ctx context.Context, trace domain.SearchTrace) error {
	query := `
		INSERT INTO rag_search_queries (id, query, tier_used, confidence, chunk_ids, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		trace.ID, trace.Query, trace.TierUsed, trace.Confidence,
		trace.ChunkIDs, trace.DurationMs, trace.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert search trace: %w", err)
	}
	return nil
}
