package retrieval

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"esg-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCritique(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{Chunk: testChunk("doc-a", 0, "scope 1 emissions were 120 tonnes"), Fused: 0.8, Origin: domain.OriginMain},
	}

	t.Run("parses score", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"score": 42, "critique": "misses the market-based figure"}`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, 42, p.Critique(context.Background(), "q", "draft", chunks))
	})

	t.Run("llm failure falls back to 75", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("unavailable"))

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, 75, p.Critique(context.Background(), "q", "draft", chunks))
	})

	t.Run("out-of-range score falls back to 75", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"score": 140, "critique": "x"}`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, 75, p.Critique(context.Background(), "q", "draft", chunks))
	})

	t.Run("missing score falls back to 75", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"critique": "no score field"}`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, 75, p.Critique(context.Background(), "q", "draft", chunks))
	})
}

func TestReformulate(t *testing.T) {
	t.Run("returns trimmed rewrite", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("\"Total Scope 1 GHG emissions in tCO2e for FY2024\"\n", nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.Reformulate(context.Background(), "how much did we emit?")
		assert.Equal(t, "Total Scope 1 GHG emissions in tCO2e for FY2024", got)
	})

	t.Run("failure keeps the original query", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("unavailable"))

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, "original", p.Reformulate(context.Background(), "original"))
	})

	t.Run("empty rewrite keeps the original query", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("   ", nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		assert.Equal(t, "original", p.Reformulate(context.Background(), "original"))
	})
}

func TestRerank(t *testing.T) {
	mainChunks := func() []domain.ScoredChunk {
		return []domain.ScoredChunk{
			{Chunk: testChunk("doc-a", 0, "first"), Fused: 0.9, Origin: domain.OriginMain},
			{Chunk: testChunk("doc-a", 1, "second"), Fused: 0.8, Origin: domain.OriginMain},
			{Chunk: testChunk("doc-a", 2, "third"), Fused: 0.7, Origin: domain.OriginMain},
		}
	}

	t.Run("applies the model ordering", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"ranking": [2, 0, 1]}`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.Rerank(context.Background(), "q", mainChunks())
		require.Len(t, got, 3)
		assert.Equal(t, "third", got[0].Chunk.Content)
		assert.Equal(t, "first", got[1].Chunk.Content)
		assert.Equal(t, "second", got[2].Chunk.Content)
	})

	t.Run("partial ranking keeps the rest in order", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"ranking": [1]}`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.Rerank(context.Background(), "q", mainChunks())
		require.Len(t, got, 3)
		assert.Equal(t, "second", got[0].Chunk.Content)
		assert.Equal(t, "first", got[1].Chunk.Content)
		assert.Equal(t, "third", got[2].Chunk.Content)
	})

	t.Run("failure keeps fused order", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("unavailable"))

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.Rerank(context.Background(), "q", mainChunks())
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Chunk.Content)
	})

	t.Run("duplicate indices keep fused order", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"ranking": [0, 0, 1]}`, nil)

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.Rerank(context.Background(), "q", mainChunks())
		assert.Equal(t, "first", got[0].Chunk.Content)
	})

	t.Run("neighbors stay after reranked main chunks", func(t *testing.T) {
		llm := new(MockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"ranking": [1, 0, 2]}`, nil)

		chunks := append(mainChunks(), domain.ScoredChunk{
			Chunk: testChunk("doc-a", 3, "context"), Fused: 0.5, Origin: domain.OriginNeighbor,
		})

		p := NewPipeline(nil, nil, llm, testParams(), testLogger())
		got := p.Rerank(context.Background(), "q", chunks)
		require.Len(t, got, 4)
		assert.Equal(t, domain.OriginNeighbor, got[3].Origin)
	})

	t.Run("single candidate skips the model call", func(t *testing.T) {
		p := NewPipeline(nil, nil, new(MockLLM), testParams(), testLogger())
		single := []domain.ScoredChunk{{Chunk: testChunk("doc-a", 0, "only"), Origin: domain.OriginMain}}
		got := p.Rerank(context.Background(), "q", single)
		assert.Len(t, got, 1)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// the cut backs up to a rune boundary instead of emitting a broken byte
	got := truncate("排出量データ", 4)
	assert.Equal(t, "排...", got)
	assert.True(t, utf8.ValidString(got))
}
