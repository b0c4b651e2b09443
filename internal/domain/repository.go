package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrJobNotFound      = errors.New("job not found")
)

// ChunkRepository persists document chunks and serves retrieval reads.
type ChunkRepository interface {
	// BulkInsert writes all chunks in one round trip. Caller wraps it in a
	// transaction together with DeleteByDocument for atomic replacement.
	BulkInsert(ctx context.Context, chunks []DocumentChunk) error
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	GetByDocument(ctx context.Context, documentID string) ([]DocumentChunk, error)
	// ListAll returns the retrieval candidate pool, bounded by limit.
	ListAll(ctx context.Context, limit int) ([]DocumentChunk, error)
	// GetNeighbors fetches chunks of one document at the given indices.
	// Indices outside the document's range are silently absent.
	GetNeighbors(ctx context.Context, documentID string, indices []int) ([]DocumentChunk, error)
}

// DocumentRepository tracks ingestion state per source document.
type DocumentRepository interface {
	Upsert(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	UpdateStatus(ctx context.Context, id, status, lastError string, processedAt *time.Time, chunkCount int) error
	List(ctx context.Context, limit int) ([]Document, error)
}

// JobRepository is the durable queue behind the background worker.
type JobRepository interface {
	Enqueue(ctx context.Context, job Job) error
	// AcquireNext claims the oldest runnable job of the given types, or
	// returns ErrJobNotFound when the queue is empty. Acquisition must be
	// safe under concurrent workers.
	AcquireNext(ctx context.Context, jobTypes []string) (Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (Job, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkFailed records the error and either reschedules after delay or,
	// when attempts are exhausted, parks the job as failed.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, delay time.Duration) error
}

// SearchTraceRepository records retrievals for offline quality analysis.
type SearchTraceRepository interface {
	Insert(ctx context.Context, trace SearchTrace) error
}

// TransactionManager runs fn inside a database transaction. The transaction
// travels in the context; repositories pick it up transparently.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
