package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"esg-rag/internal/domain"

	"github.com/pgvector/pgvector-go"
)

// embedBatchSize bounds how many texts go to the embedding provider per call.
const embedBatchSize = 64

// ProcessResult reports the outcome of one document ingestion.
type ProcessResult struct {
	DocumentID string
	ChunkCount int
	Skipped    bool // source unchanged, nothing rewritten
	Embedded   bool // false when chunks were stored without vectors
}

// ProcessDocumentUsecase ingests one document: chunk, contextualize, embed,
// then atomically replace the document's chunks.
type ProcessDocumentUsecase struct {
	chunks     domain.ChunkRepository
	documents  domain.DocumentRepository
	embedder   domain.EmbeddingProvider // may be nil
	contextGen domain.ContextGenerator
	tx         domain.TransactionManager
	logger     *slog.Logger
}

func NewProcessDocumentUsecase(
	chunks domain.ChunkRepository,
	documents domain.DocumentRepository,
	embedder domain.EmbeddingProvider,
	contextGen domain.ContextGenerator,
	tx domain.TransactionManager,
	logger *slog.Logger,
) *ProcessDocumentUsecase {
	return &ProcessDocumentUsecase{
		chunks:     chunks,
		documents:  documents,
		embedder:   embedder,
		contextGen: contextGen,
		tx:         tx,
		logger:     logger,
	}
}

// Execute processes the document's extracted text. The content type declared
// by the extraction selects the chunking profile; unless force is set, a
// document whose source hash matches the stored one is skipped.
func (u *ProcessDocumentUsecase) Execute(ctx context.Context, documentID, documentName, text, contentType string, force bool) (*ProcessResult, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id must not be empty")
	}

	sourceHash := domain.SourceHash(documentName, text)

	existing, err := u.documents.GetByID(ctx, documentID)
	switch {
	case err == nil:
		if !force && existing.Status == domain.DocumentStatusCompleted && existing.SourceHash == sourceHash {
			u.logger.Info("document_unchanged_skipping",
				slog.String("document_id", documentID),
			)
			return &ProcessResult{DocumentID: documentID, ChunkCount: existing.ChunkCount, Skipped: true}, nil
		}
	case err == domain.ErrDocumentNotFound:
		// first ingestion
	default:
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}

	now := time.Now()
	if err := u.documents.Upsert(ctx, domain.Document{
		ID:          documentID,
		Name:        documentName,
		ContentType: contentType,
		SourceHash:  sourceHash,
		Status:      domain.DocumentStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	result, err := u.process(ctx, documentID, documentName, text, contentType)
	if err != nil {
		if updateErr := u.documents.UpdateStatus(ctx, documentID, domain.DocumentStatusFailed, err.Error(), nil, 0); updateErr != nil {
			u.logger.Error("document_status_update_failed",
				slog.String("document_id", documentID),
				slog.String("error", updateErr.Error()),
			)
		}
		return nil, err
	}

	processedAt := time.Now()
	if err := u.documents.UpdateStatus(ctx, documentID, domain.DocumentStatusCompleted, "", &processedAt, result.ChunkCount); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}

	u.logger.Info("document_processed",
		slog.String("document_id", documentID),
		slog.Int("chunk_count", result.ChunkCount),
		slog.Bool("embedded", result.Embedded),
	)
	return result, nil
}

func (u *ProcessDocumentUsecase) process(ctx context.Context, documentID, documentName, text, contentType string) (*ProcessResult, error) {
	profile := domain.ProfileForContent(contentType, text)
	pieces := domain.ChunkText(text, profile)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	u.logger.Info("document_chunked",
		slog.String("document_id", documentID),
		slog.Int("chunk_count", len(pieces)),
		slog.Int("max_chunk_size", profile.MaxChunkSize),
	)

	now := time.Now()
	chunks := make([]domain.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		position := domain.PositionForIndex(i, len(pieces))
		chunkContext, err := u.contextGen.GenerateContext(ctx, documentName, text, piece, position)
		if err != nil {
			// only context cancellation propagates out of the generator
			return nil, fmt.Errorf("context generation aborted: %w", err)
		}
		chunks = append(chunks, domain.NewDocumentChunk(documentID, documentName, i, len(pieces), piece, chunkContext, now))
	}

	embedded := u.embedChunks(ctx, chunks)

	err := u.tx.WithinTx(ctx, func(ctx context.Context) error {
		deleted, err := u.chunks.DeleteByDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to delete previous chunks: %w", err)
		}
		if deleted > 0 {
			u.logger.Info("previous_chunks_deleted",
				slog.String("document_id", documentID),
				slog.Int64("deleted", deleted),
			)
		}
		if err := u.chunks.BulkInsert(ctx, chunks); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		DocumentID: documentID,
		ChunkCount: len(chunks),
		Embedded:   embedded,
	}, nil
}

// embedChunks attaches vectors to the chunks' contextualized content.
// Any embedding failure leaves the whole document lexical-only rather than
// persisting a half-embedded document.
func (u *ProcessDocumentUsecase) embedChunks(ctx context.Context, chunks []domain.DocumentChunk) bool {
	if u.embedder == nil {
		return false
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.ContextualizedContent())
		}
		batch, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			u.logger.Warn("embedding_failed_storing_lexical_only",
				slog.String("provider", u.embedder.Name()),
				slog.String("error", err.Error()),
			)
			return false
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		u.logger.Warn("embedding_count_mismatch_storing_lexical_only",
			slog.Int("expected", len(chunks)),
			slog.Int("got", len(vectors)),
		)
		return false
	}

	for i := range chunks {
		v := pgvector.NewVector(vectors[i])
		chunks[i].Embedding = &v
	}
	return true
}
