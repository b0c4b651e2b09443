package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkFromContent(t *testing.T, content string) DocumentChunk {
	t.Helper()
	return NewDocumentChunk("doc-1", "Annual Report 2024", 0, 1, content, "", time.Now())
}

func TestBM25Index(t *testing.T) {
	t.Run("matching chunk outscores non-matching", func(t *testing.T) {
		chunks := []DocumentChunk{
			chunkFromContent(t, "scope 1 emissions totaled 120 tonnes co2"),
			chunkFromContent(t, "employee training hours increased"),
			chunkFromContent(t, "board diversity metrics were published"),
		}
		idx := NewBM25Index(chunks, DefaultBM25K1, DefaultBM25B)
		scores := idx.Score("scope 1 emissions")
		require.Len(t, scores, 3)
		assert.Greater(t, scores[0], scores[1])
		assert.Greater(t, scores[0], scores[2])
		assert.Zero(t, scores[1])
	})

	t.Run("term frequency saturates with k1", func(t *testing.T) {
		chunks := []DocumentChunk{
			chunkFromContent(t, "water water water water water water usage"),
			chunkFromContent(t, "water usage at production sites in 2024"),
		}
		idx := NewBM25Index(chunks, DefaultBM25K1, DefaultBM25B)
		scores := idx.Score("water")
		// more occurrences score higher, but not proportionally
		assert.Greater(t, scores[0], scores[1])
		assert.Less(t, scores[0], scores[1]*6)
	})

	t.Run("rare terms weigh more than common ones", func(t *testing.T) {
		chunks := []DocumentChunk{
			chunkFromContent(t, "emissions report emissions summary"),
			chunkFromContent(t, "emissions overview and biodiversity impact"),
			chunkFromContent(t, "emissions totals per site"),
		}
		idx := NewBM25Index(chunks, DefaultBM25K1, DefaultBM25B)
		scores := idx.Score("biodiversity")
		assert.Greater(t, scores[1], scores[0])
		assert.Greater(t, scores[1], scores[2])
	})

	t.Run("empty corpus scores nothing", func(t *testing.T) {
		idx := NewBM25Index(nil, DefaultBM25K1, DefaultBM25B)
		assert.Empty(t, idx.Score("anything"))
	})

	t.Run("query with no known terms scores all zero", func(t *testing.T) {
		chunks := []DocumentChunk{chunkFromContent(t, "energy consumption data")}
		idx := NewBM25Index(chunks, DefaultBM25K1, DefaultBM25B)
		scores := idx.Score("quantum entanglement")
		require.Len(t, scores, 1)
		assert.Zero(t, scores[0])
	})

	t.Run("invalid parameters fall back to defaults", func(t *testing.T) {
		chunks := []DocumentChunk{chunkFromContent(t, "energy consumption data")}
		idx := NewBM25Index(chunks, -1, 2)
		assert.Equal(t, DefaultBM25K1, idx.k1)
		assert.Equal(t, DefaultBM25B, idx.b)
	})
}

func TestNormalizeScores(t *testing.T) {
	t.Run("scales by pool maximum", func(t *testing.T) {
		out := NormalizeScores([]float64{2, 4, 1})
		assert.Equal(t, []float64{0.5, 1, 0.25}, out)
	})

	t.Run("all-zero pool stays zero", func(t *testing.T) {
		out := NormalizeScores([]float64{0, 0})
		assert.Equal(t, []float64{0, 0}, out)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, NormalizeScores(nil))
	})
}
