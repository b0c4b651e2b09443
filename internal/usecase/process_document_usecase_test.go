package usecase

import (
	"context"
	"strings"
	"testing"

	"esg-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func heuristicOnly() *MockContextGenerator {
	gen := new(MockContextGenerator)
	gen.On("GenerateContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("situating context", nil)
	return gen
}

func TestProcessDocument_FirstIngestion(t *testing.T) {
	chunks := new(MockChunkRepository)
	chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(int64(0), nil)
	chunks.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)

	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{}, domain.ErrDocumentNotFound)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusCompleted, "", mock.Anything, mock.Anything).Return(nil)

	tx := &fakeTxManager{}
	u := NewProcessDocumentUsecase(chunks, docs, nil, heuristicOnly(), tx, testLogger())

	text := strings.Repeat("Scope 1 emissions decreased compared to the previous year. ", 40)
	result, err := u.Execute(context.Background(), "doc-1", "Annual Report", text, "", false)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.False(t, result.Embedded)
	assert.Positive(t, result.ChunkCount)
	assert.Equal(t, 1, tx.calls, "delete and insert must share one transaction")

	inserted := chunks.Calls[1].Arguments.Get(1).([]domain.DocumentChunk)
	require.Len(t, inserted, result.ChunkCount)
	for i, c := range inserted {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "situating context", c.Context)
		assert.NotEmpty(t, c.TermFreqs)
	}
	assert.Equal(t, domain.PositionBeginning, inserted[0].Position)
	assert.Equal(t, domain.PositionEnd, inserted[len(inserted)-1].Position)
}

func TestProcessDocument_UnchangedSourceSkips(t *testing.T) {
	name, text := "Annual Report", "Some disclosure text."
	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{
		ID:         "doc-1",
		SourceHash: domain.SourceHash(name, text),
		Status:     domain.DocumentStatusCompleted,
		ChunkCount: 4,
	}, nil)

	chunks := new(MockChunkRepository)
	u := NewProcessDocumentUsecase(chunks, docs, nil, heuristicOnly(), &fakeTxManager{}, testLogger())

	result, err := u.Execute(context.Background(), "doc-1", name, text, "", false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 4, result.ChunkCount)
	chunks.AssertNotCalled(t, "BulkInsert", mock.Anything, mock.Anything)
	docs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestProcessDocument_ForceReprocessesUnchanged(t *testing.T) {
	name, text := "Annual Report", "Some disclosure text."
	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{
		ID:         "doc-1",
		SourceHash: domain.SourceHash(name, text),
		Status:     domain.DocumentStatusCompleted,
	}, nil)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusCompleted, "", mock.Anything, mock.Anything).Return(nil)

	chunks := new(MockChunkRepository)
	chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(int64(4), nil)
	chunks.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)

	u := NewProcessDocumentUsecase(chunks, docs, nil, heuristicOnly(), &fakeTxManager{}, testLogger())
	result, err := u.Execute(context.Background(), "doc-1", name, text, "", true)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestProcessDocument_EmbeddingAttached(t *testing.T) {
	chunks := new(MockChunkRepository)
	chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(int64(0), nil)
	chunks.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)

	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{}, domain.ErrDocumentNotFound)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, mock.MatchedBy(func(texts []string) bool { return len(texts) == 1 })).
		Return([][]float32{{0.1, 0.2, 0.3}}, nil)

	u := NewProcessDocumentUsecase(chunks, docs, embedder, heuristicOnly(), &fakeTxManager{}, testLogger())
	result, err := u.Execute(context.Background(), "doc-1", "Report", "One short paragraph.", "", false)
	require.NoError(t, err)
	assert.True(t, result.Embedded)

	inserted := chunks.Calls[1].Arguments.Get(1).([]domain.DocumentChunk)
	require.Len(t, inserted, 1)
	assert.True(t, inserted[0].HasEmbedding())
}

func TestProcessDocument_EmbeddingFailureStoresLexicalOnly(t *testing.T) {
	chunks := new(MockChunkRepository)
	chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(int64(0), nil)
	chunks.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)

	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{}, domain.ErrDocumentNotFound)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, domain.ErrEmbeddingUnavailable)

	u := NewProcessDocumentUsecase(chunks, docs, embedder, heuristicOnly(), &fakeTxManager{}, testLogger())
	result, err := u.Execute(context.Background(), "doc-1", "Report", "One short paragraph.", "", false)
	require.NoError(t, err, "embedding failure must not fail ingestion")
	assert.False(t, result.Embedded)

	inserted := chunks.Calls[1].Arguments.Get(1).([]domain.DocumentChunk)
	for _, c := range inserted {
		assert.False(t, c.HasEmbedding())
	}
}

func TestProcessDocument_InsertFailureMarksFailed(t *testing.T) {
	chunks := new(MockChunkRepository)
	chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(int64(0), nil)
	chunks.On("BulkInsert", mock.Anything, mock.Anything).Return(assert.AnError)

	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{}, domain.ErrDocumentNotFound)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusFailed, mock.Anything, mock.Anything, 0).Return(nil)

	u := NewProcessDocumentUsecase(chunks, docs, nil, heuristicOnly(), &fakeTxManager{}, testLogger())
	_, err := u.Execute(context.Background(), "doc-1", "Report", "One short paragraph.", "", false)
	require.Error(t, err)
	docs.AssertCalled(t, "UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusFailed, mock.Anything, mock.Anything, 0)
}

func TestProcessDocument_EmptyText(t *testing.T) {
	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{}, domain.ErrDocumentNotFound)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	u := NewProcessDocumentUsecase(new(MockChunkRepository), docs, nil, heuristicOnly(), &fakeTxManager{}, testLogger())
	_, err := u.Execute(context.Background(), "doc-1", "Report", "   ", "", false)
	assert.Error(t, err)
}

func TestProcessDocument_EmptyID(t *testing.T) {
	u := NewProcessDocumentUsecase(new(MockChunkRepository), new(MockDocumentRepository), nil, heuristicOnly(), &fakeTxManager{}, testLogger())
	_, err := u.Execute(context.Background(), "", "Report", "text", "", false)
	assert.Error(t, err)
}

func TestProcessDocument_CSVSourceUsesTabularProfile(t *testing.T) {
	chunks := new(MockChunkRepository)
	chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(int64(0), nil)
	chunks.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)

	docs := new(MockDocumentRepository)
	docs.On("GetByID", mock.Anything, "doc-1").Return(domain.Document{}, domain.ErrDocumentNotFound)
	docs.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	docs.On("UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusCompleted, "", mock.Anything, mock.Anything).Return(nil)

	u := NewProcessDocumentUsecase(chunks, docs, nil, heuristicOnly(), &fakeTxManager{}, testLogger())

	// ~1500 chars of comma-delimited rows: the shape sniff sees prose, but the
	// declared type must select the larger tabular chunks so rows stay whole.
	var sb strings.Builder
	sb.WriteString("year,site,scope,emissions_tco2e\n")
	for i := 0; i < 50; i++ {
		sb.WriteString("2024,site-07,scope 1,1234.5\n")
	}
	text := sb.String()
	require.Greater(t, len(text), domain.ProseProfile.MaxChunkSize)
	require.LessOrEqual(t, len(text), domain.TabularProfile.MaxChunkSize)

	result, err := u.Execute(context.Background(), "doc-1", "emissions.csv", text, "text/csv", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount, "tabular profile must keep the rows in one chunk")

	upserted := docs.Calls[1].Arguments.Get(1).(domain.Document)
	assert.Equal(t, "text/csv", upserted.ContentType)
}
