package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"esg-rag/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type chunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates the pgx-backed chunk repository.
func NewChunkRepository(pool *pgxpool.Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *chunkRepository) getExecutor(ctx context.Context) dbExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const chunkColumns = `id, document_id, document_name, chunk_index, content, context,
	position, char_count, word_count, token_count, embedding, term_freqs, created_at`

func (r *chunkRepository) BulkInsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		freqs, err := json.Marshal(chunk.TermFreqs)
		if err != nil {
			return fmt.Errorf("failed to marshal term freqs: %w", err)
		}
		rows[i] = []interface{}{
			chunk.ID,
			chunk.DocumentID,
			chunk.DocumentName,
			chunk.ChunkIndex,
			chunk.Content,
			chunk.Context,
			string(chunk.Position),
			chunk.CharCount,
			chunk.WordCount,
			chunk.TokenCount,
			chunk.Embedding,
			freqs,
			chunk.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"document_chunks"},
		[]string{"id", "document_id", "document_name", "chunk_index", "content", "context",
			"position", "char_count", "word_count", "token_count", "embedding", "term_freqs", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}

	return nil
}

func (r *chunkRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *chunkRepository) GetByDocument(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *chunkRepository) ListAll(ctx context.Context, limit int) ([]domain.DocumentChunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM document_chunks
		ORDER BY document_id, chunk_index
		LIMIT $1
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate pool: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *chunkRepository) GetNeighbors(ctx context.Context, documentID string, indices []int) ([]domain.DocumentChunk, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + chunkColumns + `
		FROM document_chunks
		WHERE document_id = $1 AND chunk_index = ANY($2)
		ORDER BY chunk_index ASC
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, documentID, indices)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows pgx.Rows) ([]domain.DocumentChunk, error) {
	var chunks []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		var position string
		var freqs []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentName, &c.ChunkIndex,
			&c.Content, &c.Context, &position, &c.CharCount, &c.WordCount,
			&c.TokenCount, &c.Embedding, &freqs, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Position = domain.ChunkPosition(position)
		if len(freqs) > 0 {
			if err := json.Unmarshal(freqs, &c.TermFreqs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal term freqs: %w", err)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}
