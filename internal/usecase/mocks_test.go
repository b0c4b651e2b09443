package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"esg-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) BulkInsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChunkRepository) GetByDocument(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentChunk), args.Error(1)
}

func (m *MockChunkRepository) ListAll(ctx context.Context, limit int) ([]domain.DocumentChunk, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentChunk), args.Error(1)
}

func (m *MockChunkRepository) GetNeighbors(ctx context.Context, documentID string, indices []int) ([]domain.DocumentChunk, error) {
	args := m.Called(ctx, documentID, indices)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentChunk), args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Upsert(ctx context.Context, doc domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (domain.Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id, status, lastError string, processedAt *time.Time, chunkCount int) error {
	args := m.Called(ctx, id, status, lastError, processedAt, chunkCount)
	return args.Error(0)
}

func (m *MockDocumentRepository) List(ctx context.Context, limit int) ([]domain.Document, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) Dimensions() int { return 3 }

func (m *MockEmbedder) Name() string { return "mock" }

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Generate(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

type MockContextGenerator struct {
	mock.Mock
}

func (m *MockContextGenerator) GenerateContext(ctx context.Context, documentName, documentText, chunk string, position domain.ChunkPosition) (string, error) {
	args := m.Called(ctx, documentName, documentText, chunk, position)
	return args.String(0), args.Error(1)
}

type MockTraceRepository struct {
	mock.Mock
}

func (m *MockTraceRepository) Insert(ctx context.Context, trace domain.SearchTrace) error {
	args := m.Called(ctx, trace)
	return args.Error(0)
}

// fakeTxManager runs fn directly; repository mocks don't care about the tx.
type fakeTxManager struct {
	calls int
}

func (f *fakeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testChunk(documentID string, index, total int, content string) domain.DocumentChunk {
	return domain.NewDocumentChunk(documentID, "Sustainability Report 2024", index, total, content, "", time.Now())
}

func chunkIDs(chunks []domain.ScoredChunk) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.Chunk.ID)
	}
	return ids
}
