package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"esg-rag/internal/domain"
)

const (
	// critiqueFallbackScore is assumed when the critique call fails or its
	// output cannot be parsed; middling enough to neither force nor skip
	// the rest of the refinement pass.
	critiqueFallbackScore = 75

	rerankCandidates = 5
)

// Critique scores a draft answer 0-100 for groundedness and completeness
// against its supporting context.
func (p *Pipeline) Critique(ctx context.Context, query, answer string, chunks []domain.ScoredChunk) int {
	if p.utility == nil {
		return critiqueFallbackScore
	}

	prompt := fmt.Sprintf(
		"Question: %s\n\nDraft answer: %s\n\nSupporting excerpts:\n%s\n\nScore the draft 0-100 for how completely and faithfully it answers the question using only the excerpts. Respond with JSON: {\"score\": <int>, \"critique\": \"<one sentence>\"}",
		query, answer, excerptList(chunks, 5))

	out, err := p.utility.Generate(ctx,
		[]domain.Message{
			{Role: "system", Content: "You grade answers strictly. Respond with JSON only."},
			{Role: "user", Content: prompt},
		},
		domain.GenerateOptions{Temperature: 0.0, MaxTokens: 160},
	)
	if err != nil {
		p.logger.Warn("critique_failed",
			slog.String("error", err.Error()),
		)
		return critiqueFallbackScore
	}

	score, err := parseCritiqueScore(out)
	if err != nil {
		p.logger.Warn("critique_parse_failed",
			slog.String("error", err.Error()),
		)
		return critiqueFallbackScore
	}
	return score
}

// Reformulate rewrites the query to target the concrete data values the
// first retrieval missed. Failure returns the original query unchanged.
func (p *Pipeline) Reformulate(ctx context.Context, query string) string {
	if p.utility == nil {
		return query
	}

	prompt := fmt.Sprintf(
		"The question below was answered poorly because retrieval missed the relevant figures. Rewrite it once, phrased the way the underlying report would state the actual data values (metric names, units, headline numbers). Respond with the rewritten question only.\n\nQuestion: %s",
		query)

	out, err := p.utility.Generate(ctx,
		[]domain.Message{{Role: "user", Content: prompt}},
		domain.GenerateOptions{Temperature: 0.3, MaxTokens: 128},
	)
	if err != nil {
		p.logger.Warn("reformulation_failed",
			slog.String("error", err.Error()),
		)
		return query
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return query
	}
	return out
}

// Rerank asks the utility model to order the top candidates by relevance to
// the query, returning at most rerankCandidates chunks. On any failure the
// incoming fused-score order is kept.
func (p *Pipeline) Rerank(ctx context.Context, query string, chunks []domain.ScoredChunk) []domain.ScoredChunk {
	main := make([]domain.ScoredChunk, 0, len(chunks))
	var rest []domain.ScoredChunk
	for _, c := range chunks {
		if c.Origin == domain.OriginMain {
			main = append(main, c)
		} else {
			rest = append(rest, c)
		}
	}

	limit := rerankCandidates
	if limit > len(main) {
		limit = len(main)
	}
	candidates := main[:limit]
	if p.utility == nil || len(candidates) < 2 {
		return chunks
	}

	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n", i, truncate(c.Chunk.Content, 400))
	}
	prompt := fmt.Sprintf(
		"Question: %s\n\nPassages:\n%s\nOrder the passage numbers from most to least relevant to the question. Respond with JSON: {\"ranking\": [<int>, ...]}",
		query, sb.String())

	out, err := p.utility.Generate(ctx,
		[]domain.Message{{Role: "user", Content: prompt}},
		domain.GenerateOptions{Temperature: 0.0, MaxTokens: 64},
	)
	if err != nil {
		p.logger.Warn("rerank_failed_keeping_fused_order",
			slog.String("error", err.Error()),
		)
		return chunks
	}

	ranking, err := parseRanking(out, len(candidates))
	if err != nil {
		p.logger.Warn("rerank_parse_failed_keeping_fused_order",
			slog.String("error", err.Error()),
		)
		return chunks
	}

	reranked := make([]domain.ScoredChunk, 0, len(chunks))
	for _, idx := range ranking {
		reranked = append(reranked, candidates[idx])
	}
	reranked = append(reranked, main[limit:]...)
	return append(reranked, rest...)
}

func excerptList(chunks []domain.ScoredChunk, n int) string {
	if n > len(chunks) {
		n = len(chunks)
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "- %s\n", truncate(chunks[i].Chunk.Content, 300))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return domain.TruncateUTF8(s, n) + "..."
}
