package retrieval

import (
	"context"
	"errors"
	"testing"

	"esg-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerateVariations(t *testing.T) {
	t.Run("parses the llm array", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`["total scope 1 ghg emissions", "direct emissions tonnes co2e", "scope one emissions figure"]`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.GenerateVariations(context.Background(), "what were scope 1 emissions?")
		assert.Len(t, got, 3)
		assert.Equal(t, "total scope 1 ghg emissions", got[0])
	})

	t.Run("strips code fences", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("```json\n[\"one\", \"two\"]\n```", nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, []string{"one", "two"}, p.GenerateVariations(context.Background(), "q"))
	})

	t.Run("llm failure returns nil", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("timeout"))

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Nil(t, p.GenerateVariations(context.Background(), "q"))
	})

	t.Run("unparseable output returns nil", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("Sure! Here are some ideas:", nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Nil(t, p.GenerateVariations(context.Background(), "q"))
	})

	t.Run("caps at the configured count", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`["a", "b", "c", "d", "e"]`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Len(t, p.GenerateVariations(context.Background(), "q"), 3)
	})

	t.Run("nil llm returns nil", func(t *testing.T) {
		p := NewPipeline(nil, nil, nil, testParams(), testLogger())
		assert.Nil(t, p.GenerateVariations(context.Background(), "q"))
	})
}

func TestExpandNeighbors(t *testing.T) {
	t.Run("adds adjacent chunks at reduced weight", func(t *testing.T) {
		repo := new(MockChunkRepository)
		repo.On("GetNeighbors", mock.Anything, "doc-a", []int{1, 3}).
			Return([]domain.DocumentChunk{
				testChunk("doc-a", 1, "before"),
				testChunk("doc-a", 3, "after"),
			}, nil)

		selected := []domain.ScoredChunk{
			{Chunk: testChunk("doc-a", 2, "hit"), Fused: 0.9, Origin: domain.OriginMain},
		}

		p := NewPipeline(repo, nil, nil, testParams(), testLogger())
		got := p.ExpandNeighbors(context.Background(), selected)

		require.Len(t, got, 3)
		assert.Equal(t, domain.OriginMain, got[0].Origin)
		for _, n := range got[1:] {
			assert.Equal(t, domain.OriginNeighbor, n.Origin)
			assert.InDelta(t, 0.9*0.7, n.Fused, 1e-9)
		}
	})

	t.Run("first chunk has no left neighbor", func(t *testing.T) {
		repo := new(MockChunkRepository)
		repo.On("GetNeighbors", mock.Anything, "doc-a", []int{1}).
			Return([]domain.DocumentChunk{testChunk("doc-a", 1, "after")}, nil)

		selected := []domain.ScoredChunk{
			{Chunk: testChunk("doc-a", 0, "hit"), Fused: 0.8, Origin: domain.OriginMain},
		}

		p := NewPipeline(repo, nil, nil, testParams(), testLogger())
		got := p.ExpandNeighbors(context.Background(), selected)
		require.Len(t, got, 2)
		repo.AssertCalled(t, "GetNeighbors", mock.Anything, "doc-a", []int{1})
	})

	t.Run("already selected chunks are not duplicated", func(t *testing.T) {
		repo := new(MockChunkRepository)
		repo.On("GetNeighbors", mock.Anything, "doc-a", []int{0, 3}).
			Return([]domain.DocumentChunk{
				testChunk("doc-a", 0, "left"),
				testChunk("doc-a", 3, "right"),
			}, nil)

		selected := []domain.ScoredChunk{
			{Chunk: testChunk("doc-a", 1, "hit one"), Fused: 0.9, Origin: domain.OriginMain},
			{Chunk: testChunk("doc-a", 2, "hit two"), Fused: 0.6, Origin: domain.OriginMain},
		}

		p := NewPipeline(repo, nil, nil, testParams(), testLogger())
		got := p.ExpandNeighbors(context.Background(), selected)

		// 2 selected + 2 distinct neighbors; indices 1 and 2 not re-added
		require.Len(t, got, 4)
		seen := map[int]int{}
		for _, c := range got {
			seen[c.Chunk.ChunkIndex]++
		}
		for idx, count := range seen {
			assert.Equal(t, 1, count, "chunk index %d duplicated", idx)
		}
	})

	t.Run("neighbor weight uses the best-scoring parent", func(t *testing.T) {
		repo := new(MockChunkRepository)
		repo.On("GetNeighbors", mock.Anything, "doc-a", mock.Anything).
			Return([]domain.DocumentChunk{testChunk("doc-a", 2, "between")}, nil)

		selected := []domain.ScoredChunk{
			{Chunk: testChunk("doc-a", 1, "strong hit"), Fused: 0.9, Origin: domain.OriginMain},
			{Chunk: testChunk("doc-a", 3, "weak hit"), Fused: 0.2, Origin: domain.OriginMain},
		}

		p := NewPipeline(repo, nil, nil, testParams(), testLogger())
		got := p.ExpandNeighbors(context.Background(), selected)
		require.Len(t, got, 3)
		assert.InDelta(t, 0.9*0.7, got[2].Fused, 1e-9)
	})

	t.Run("repository failure skips expansion for that document", func(t *testing.T) {
		repo := new(MockChunkRepository)
		repo.On("GetNeighbors", mock.Anything, "doc-a", mock.Anything).
			Return(nil, errors.New("db down"))

		selected := []domain.ScoredChunk{
			{Chunk: testChunk("doc-a", 1, "hit"), Fused: 0.9, Origin: domain.OriginMain},
		}

		p := NewPipeline(repo, nil, nil, testParams(), testLogger())
		got := p.ExpandNeighbors(context.Background(), selected)
		assert.Len(t, got, 1)
	})

	t.Run("empty selection is a no-op", func(t *testing.T) {
		p := NewPipeline(nil, nil, nil, testParams(), testLogger())
		assert.Empty(t, p.ExpandNeighbors(context.Background(), nil))
	})
}
