package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicContext(t *testing.T) {
	t.Run("includes position, name and key terms", func(t *testing.T) {
		chunk := "Emissions emissions emissions decreased. Renewable renewable energy grew."
		got := HeuristicContext("Sustainability Report 2024", chunk, PositionBeginning)
		assert.Contains(t, got, "beginning")
		assert.Contains(t, got, "Sustainability Report 2024")
		assert.Contains(t, got, "emissions")
	})

	t.Run("chunk with no meaningful terms still situates", func(t *testing.T) {
		got := HeuristicContext("Report", "a b c 1 2 3", PositionEnd)
		assert.Equal(t, "This chunk is from the end of document 'Report'.", got)
	})
}

func TestKeyTerms(t *testing.T) {
	t.Run("orders by frequency then alphabetically", func(t *testing.T) {
		text := "carbon carbon carbon energy energy waste"
		terms := KeyTerms(text, 3)
		require.Equal(t, []string{"carbon", "energy", "waste"}, terms)
	})

	t.Run("skips stopwords, numbers and short tokens", func(t *testing.T) {
		terms := KeyTerms("this that 2024 120.5 co2 of emissions", 5)
		assert.Equal(t, []string{"emissions"}, terms)
	})

	t.Run("strips punctuation before counting", func(t *testing.T) {
		terms := KeyTerms("emissions, emissions. (emissions)", 1)
		assert.Equal(t, []string{"emissions"}, terms)
	})
}

func TestPositionForIndex(t *testing.T) {
	assert.Equal(t, PositionBeginning, PositionForIndex(0, 5))
	assert.Equal(t, PositionMiddle, PositionForIndex(2, 5))
	assert.Equal(t, PositionEnd, PositionForIndex(4, 5))
	assert.Equal(t, PositionBeginning, PositionForIndex(0, 1))
}

func TestNewDocumentChunk(t *testing.T) {
	chunk := chunkFromContent(t, "Scope 2 emissions were 90 tCO2e.")
	assert.NotEqual(t, "", chunk.ID.String())
	assert.Equal(t, len(chunk.Content), chunk.CharCount)
	assert.Equal(t, 6, chunk.WordCount)
	assert.Positive(t, chunk.TokenCount)
	assert.Equal(t, 1, chunk.TermFreqs["scope"])
}

func TestContextualizedContent(t *testing.T) {
	t.Run("context is prepended with a blank line", func(t *testing.T) {
		c := DocumentChunk{Content: "body", Context: "situating sentence"}
		assert.Equal(t, "situating sentence\n\nbody", c.ContextualizedContent())
	})

	t.Run("no context returns content unchanged", func(t *testing.T) {
		c := DocumentChunk{Content: "body"}
		assert.Equal(t, "body", c.ContextualizedContent())
	})
}

func TestSourceHash(t *testing.T) {
	a := SourceHash("report", "text")
	b := SourceHash("report", "text")
	c := SourceHash("report", "other text")
	d := SourceHash("repor", "ttext")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"scope", "1", "emissions", "1200", "tons"},
		Tokenize("Scope 1 emissions: 1200 tons."))
	assert.Equal(t, []string{"emissions"}, Tokenize("emissions?"))
	assert.Empty(t, Tokenize("  ...  "))
}
