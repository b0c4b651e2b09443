package retrieval

import (
	"context"
	"io"
	"log/slog"
	"time"

	"esg-rag/internal/domain"

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testParams() Params {
	return Params{
		TopK:           10,
		CandidatePool:  2000,
		LexicalWeight:  0.4,
		SemanticWeight: 0.6,
		K1:             domain.DefaultBM25K1,
		B:              domain.DefaultBM25B,
		NeighborWeight: 0.7,
		Variations:     3,
	}
}

func testChunk(documentID string, index int, content string) domain.DocumentChunk {
	return domain.NewDocumentChunk(documentID, "Sustainability Report 2024", index, index+2, content, "", time.Now())
}
