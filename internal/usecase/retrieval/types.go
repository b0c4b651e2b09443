package retrieval

import (
	"log/slog"

	"esg-rag/internal/domain"
)

// Params carries the tuning values the pipeline needs per retrieval.
// They are copied in from the usecase-level config at construction.
type Params struct {
	TopK           int
	CandidatePool  int
	LexicalWeight  float64
	SemanticWeight float64
	K1             float64
	B              float64
	NeighborWeight float64
	Variations     int
}

// Result is the outcome of one retrieval pass.
type Result struct {
	Chunks     []domain.ScoredChunk
	Confidence float64
	Variations []string // query rewrites used, empty for single-query passes
}

// Pipeline runs hybrid retrieval and its tier-2 expansions over the chunk
// store. The embedder may be nil; scoring then degrades to lexical only.
type Pipeline struct {
	chunks   domain.ChunkRepository
	embedder domain.EmbeddingProvider
	utility  domain.LLMClient
	params   Params
	logger   *slog.Logger
}

// NewPipeline wires the retrieval stages.
func NewPipeline(
	chunks domain.ChunkRepository,
	embedder domain.EmbeddingProvider,
	utility domain.LLMClient,
	params Params,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		chunks:   chunks,
		embedder: embedder,
		utility:  utility,
		params:   params,
		logger:   logger,
	}
}

// Confidence is the mean fused score of the directly retrieved chunks,
// ignoring neighbor-expanded context. Empty input scores zero.
func Confidence(chunks []domain.ScoredChunk) float64 {
	var sum float64
	var n int
	for _, c := range chunks {
		if c.Origin != domain.OriginMain {
			continue
		}
		sum += c.Fused
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
