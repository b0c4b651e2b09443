package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"esg-rag/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Retrieve runs a single-query hybrid pass: BM25 over the candidate pool
// fused with cosine similarity against the query embedding, top-k selection
// and pool-level confidence.
func (p *Pipeline) Retrieve(ctx context.Context, query string) (*Result, error) {
	pool, err := p.chunks.ListAll(ctx, p.params.CandidatePool)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}
	if len(pool) == 0 {
		return &Result{}, nil
	}

	index := domain.NewBM25Index(pool, p.params.K1, p.params.B)
	fused, lexical, semantic := p.scoreQuery(ctx, query, pool, index)

	result := &Result{
		Chunks:     p.selectTopK(pool, fused, lexical, semantic),
		Variations: nil,
	}
	result.Confidence = Confidence(result.Chunks)
	return result, nil
}

// RetrieveMulti scores the original query plus its variations in parallel
// and averages the scores per chunk, so a chunk matching every phrasing
// outranks one matching a single phrasing.
func (p *Pipeline) RetrieveMulti(ctx context.Context, query string, variations []string) (*Result, error) {
	pool, err := p.chunks.ListAll(ctx, p.params.CandidatePool)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}
	if len(pool) == 0 {
		return &Result{Variations: variations}, nil
	}

	queries := append([]string{query}, variations...)
	index := domain.NewBM25Index(pool, p.params.K1, p.params.B)

	start := time.Now()
	fusedPer := make([][]float64, len(queries))
	lexPer := make([][]float64, len(queries))
	semPer := make([][]float64, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			fusedPer[i], lexPer[i], semPer[i] = p.scoreQuery(gctx, q, pool, index)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := averageScores(fusedPer)
	lexical := averageScores(lexPer)
	semantic := averageScores(semPer)

	p.logger.Info("multi_query_scoring_completed",
		slog.Int("query_count", len(queries)),
		slog.Int("pool_size", len(pool)),
		slog.Duration("elapsed", time.Since(start)),
	)

	result := &Result{
		Chunks:     p.selectTopK(pool, fused, lexical, semantic),
		Variations: variations,
	}
	result.Confidence = Confidence(result.Chunks)
	return result, nil
}

// scoreQuery produces fused, lexical and semantic scores for every chunk in
// the pool. Embedding failure is non-fatal: scoring falls back to the
// normalized lexical score alone.
func (p *Pipeline) scoreQuery(ctx context.Context, query string, pool []domain.DocumentChunk, index *domain.BM25Index) (fused, lexical, semantic []float64) {
	lexical = domain.NormalizeScores(index.Score(query))
	semantic = make([]float64, len(pool))
	fused = make([]float64, len(pool))

	queryVec := p.embedQuery(ctx, query)
	if queryVec == nil {
		copy(fused, lexical)
		return fused, lexical, semantic
	}

	for i, chunk := range pool {
		if chunk.HasEmbedding() {
			semantic[i] = domain.CosineSimilarity(queryVec, chunk.Embedding.Slice())
		}
		fused[i] = p.params.LexicalWeight*lexical[i] + p.params.SemanticWeight*semantic[i]
	}
	return fused, lexical, semantic
}

func (p *Pipeline) embedQuery(ctx context.Context, query string) []float32 {
	if p.embedder == nil {
		return nil
	}
	vecs, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		p.logger.Warn("query_embedding_failed_lexical_only",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(vecs) != 1 {
		return nil
	}
	return vecs[0]
}

// selectTopK keeps the k best-scoring chunks as main results, ordered by
// fused score descending with chunk order as a stable tiebreak.
func (p *Pipeline) selectTopK(pool []domain.DocumentChunk, fused, lexical, semantic []float64) []domain.ScoredChunk {
	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fused[order[a]] > fused[order[b]]
	})

	k := p.params.TopK
	if k > len(order) {
		k = len(order)
	}
	selected := make([]domain.ScoredChunk, 0, k)
	for _, idx := range order[:k] {
		if fused[idx] <= 0 {
			break
		}
		selected = append(selected, domain.ScoredChunk{
			Chunk:    pool[idx],
			Lexical:  lexical[idx],
			Semantic: semantic[idx],
			Fused:    fused[idx],
			Origin:   domain.OriginMain,
		})
	}
	return selected
}

func averageScores(per [][]float64) []float64 {
	if len(per) == 0 {
		return nil
	}
	out := make([]float64, len(per[0]))
	for _, scores := range per {
		for i, s := range scores {
			out[i] += s
		}
	}
	for i := range out {
		out[i] /= float64(len(per))
	}
	return out
}
