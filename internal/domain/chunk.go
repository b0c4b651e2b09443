package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ChunkPosition tags where a chunk sits within its source document.
type ChunkPosition string

const (
	PositionBeginning ChunkPosition = "beginning"
	PositionMiddle    ChunkPosition = "middle"
	PositionEnd       ChunkPosition = "end"
)

// PositionForIndex derives the position tag from a chunk's index.
func PositionForIndex(index, total int) ChunkPosition {
	switch {
	case index == 0:
		return PositionBeginning
	case index == total-1:
		return PositionEnd
	default:
		return PositionMiddle
	}
}

// DocumentChunk is the atomic unit of retrieval: a contiguous slice of one
// document's extracted text plus its situating context.
type DocumentChunk struct {
	ID           uuid.UUID
	DocumentID   string
	DocumentName string
	ChunkIndex   int // 0-based, dense within a document
	Content      string
	Context      string
	Position     ChunkPosition
	CharCount    int
	WordCount    int
	TokenCount   int
	Embedding    *pgvector.Vector // nil when no embedding provider is configured
	TermFreqs    map[string]int   // sparse representation for lexical scoring
	CreatedAt    time.Time
}

// ContextualizedContent is the text actually indexed and embedded: the
// situating context prepended to the raw content. Indexing raw content alone
// loses the chunk's surroundings and measurably hurts retrieval recall.
func (c DocumentChunk) ContextualizedContent() string {
	if c.Context == "" {
		return c.Content
	}
	return c.Context + "\n\n" + c.Content
}

// HasEmbedding reports whether a semantic vector is stored for this chunk.
func (c DocumentChunk) HasEmbedding() bool {
	return c.Embedding != nil && len(c.Embedding.Slice()) > 0
}

// NewDocumentChunk builds a chunk with derived counts and term frequencies.
func NewDocumentChunk(documentID, documentName string, index, total int, content, context string, now time.Time) DocumentChunk {
	chunk := DocumentChunk{
		ID:           uuid.New(),
		DocumentID:   documentID,
		DocumentName: documentName,
		ChunkIndex:   index,
		Content:      content,
		Context:      context,
		Position:     PositionForIndex(index, total),
		CharCount:    len(content),
		WordCount:    len(strings.Fields(content)),
		TokenCount:   len(content) / 4, // rough estimate, 1 token ~ 4 chars
		CreatedAt:    now,
	}
	chunk.TermFreqs = TermFrequencies(chunk.ContextualizedContent())
	return chunk
}

// TermFrequencies counts lowercased whitespace tokens, matching the
// tokenization the BM25 scorer applies at query time.
func TermFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, tok := range Tokenize(text) {
		freqs[tok]++
	}
	return freqs
}

// Tokenize lowercases and splits on whitespace, trimming punctuation from
// token edges so "emissions:" and "emissions?" count as the same term.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// ChunkOrigin distinguishes directly retrieved evidence from neighbor context.
type ChunkOrigin string

const (
	OriginMain     ChunkOrigin = "main"
	OriginNeighbor ChunkOrigin = "neighbor"
)

// ScoredChunk pairs a chunk with its retrieval scores. Transient; never persisted.
type ScoredChunk struct {
	Chunk    DocumentChunk
	Lexical  float64 // normalized BM25 score
	Semantic float64 // cosine similarity
	Fused    float64 // weighted combination of the two
	Origin   ChunkOrigin
}
