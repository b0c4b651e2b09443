package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"esg-rag/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates the pgx-backed document repository.
func NewDocumentRepository(pool *pgxpool.Pool) domain.DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) getExecutor(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
} {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *documentRepository) Upsert(ctx context.Context, doc domain.Document) error {
	query := `
		INSERT INTO rag_documents (id, name, content_type, source_hash, chunk_count, status, last_error, processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content_type = EXCLUDED.content_type,
			source_hash = EXCLUDED.source_hash,
			chunk_count = EXCLUDED.chunk_count,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			processed_at = EXCLUDED.processed_at,
			updated_at = NOW()
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query,
		doc.ID, doc.Name, doc.ContentType, doc.SourceHash, doc.ChunkCount,
		doc.Status, doc.LastError, doc.ProcessedAt, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (domain.Document, error) {
	query := `
		SELECT id, name, content_type, source_hash, chunk_count, status, last_error, processed_at, created_at, updated_at
		FROM rag_documents
		WHERE id = $1
	`
	row := r.getExecutor(ctx).QueryRow(ctx, query, id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to scan document: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id, status, lastError string, processedAt *time.Time, chunkCount int) error {
	query := `
		UPDATE rag_documents
		SET status = $1, last_error = $2, processed_at = $3, chunk_count = $4, updated_at = NOW()
		WHERE id = $5
	`
	tag, err := r.getExecutor(ctx).Exec(ctx, query, status, lastError, processedAt, chunkCount, id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepository) List(ctx context.Context, limit int) ([]domain.Document, error) {
	query := `
		SELECT id, name, content_type, source_hash, chunk_count, status, last_error, processed_at, created_at, updated_at
		FROM rag_documents
		ORDER BY updated_at DESC
		LIMIT $1
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (domain.Document, error) {
	var doc domain.Document
	var contentType, lastError pgtype.Text
	var processedAt pgtype.Timestamptz
	err := row.Scan(&doc.ID, &doc.Name, &contentType, &doc.SourceHash, &doc.ChunkCount,
		&doc.Status, &lastError, &processedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return domain.Document{}, err
	}
	doc.ContentType = contentType.String
	doc.LastError = lastError.String
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return doc, nil
}
