package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"esg-rag/internal/domain"
)

const variationPromptSystem = "You rewrite search queries for a sustainability report search engine. Respond with a JSON array of strings and nothing else."

// GenerateVariations asks the utility model for alternative phrasings of the
// query. Failure is non-fatal: the caller proceeds with the original query
// alone.
func (p *Pipeline) GenerateVariations(ctx context.Context, query string) []string {
	if p.utility == nil || p.params.Variations <= 0 {
		return nil
	}

	prompt := fmt.Sprintf(
		"Rewrite the following question %d ways, varying terminology and specificity while preserving its meaning. Question: %s",
		p.params.Variations, query)

	out, err := p.utility.Generate(ctx,
		[]domain.Message{
			{Role: "system", Content: variationPromptSystem},
			{Role: "user", Content: prompt},
		},
		domain.GenerateOptions{Temperature: 0.7, MaxTokens: 256},
	)
	if err != nil {
		p.logger.Warn("query_variation_generation_failed",
			slog.String("error", err.Error()),
		)
		return nil
	}

	variations, err := parseStringArray(out)
	if err != nil {
		p.logger.Warn("query_variation_parse_failed",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(variations) > p.params.Variations {
		variations = variations[:p.params.Variations]
	}
	return variations
}

// ExpandNeighbors appends the chunks immediately before and after each
// retrieved chunk, weighted down so surrounding context never outranks the
// evidence that surfaced it. Chunks already selected are not duplicated.
func (p *Pipeline) ExpandNeighbors(ctx context.Context, selected []domain.ScoredChunk) []domain.ScoredChunk {
	if len(selected) == 0 {
		return selected
	}

	present := make(map[string]bool, len(selected))
	parentScore := make(map[string]float64)
	wanted := make(map[string][]int)
	for _, sc := range selected {
		present[neighborKey(sc.Chunk.DocumentID, sc.Chunk.ChunkIndex)] = true
	}
	for _, sc := range selected {
		for _, idx := range []int{sc.Chunk.ChunkIndex - 1, sc.Chunk.ChunkIndex + 1} {
			if idx < 0 {
				continue
			}
			key := neighborKey(sc.Chunk.DocumentID, idx)
			if present[key] {
				continue
			}
			if sc.Fused > parentScore[key] {
				parentScore[key] = sc.Fused
			}
			wanted[sc.Chunk.DocumentID] = appendUnique(wanted[sc.Chunk.DocumentID], idx)
		}
	}

	var neighbors []domain.ScoredChunk
	for documentID, indices := range wanted {
		chunks, err := p.chunks.GetNeighbors(ctx, documentID, indices)
		if err != nil {
			p.logger.Warn("neighbor_expansion_failed",
				slog.String("document_id", documentID),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, chunk := range chunks {
			key := neighborKey(chunk.DocumentID, chunk.ChunkIndex)
			if present[key] {
				continue
			}
			present[key] = true
			neighbors = append(neighbors, domain.ScoredChunk{
				Chunk:  chunk,
				Fused:  parentScore[key] * p.params.NeighborWeight,
				Origin: domain.OriginNeighbor,
			})
		}
	}

	// stable readback order for the prompt builder
	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Chunk.DocumentID != neighbors[b].Chunk.DocumentID {
			return neighbors[a].Chunk.DocumentID < neighbors[b].Chunk.DocumentID
		}
		return neighbors[a].Chunk.ChunkIndex < neighbors[b].Chunk.ChunkIndex
	})

	if len(neighbors) > 0 {
		p.logger.Info("neighbor_expansion_completed",
			slog.Int("selected", len(selected)),
			slog.Int("neighbors", len(neighbors)),
		)
	}
	return append(selected, neighbors...)
}

func neighborKey(documentID string, index int) string {
	return fmt.Sprintf("%s#%d", documentID, index)
}

func appendUnique(indices []int, idx int) []int {
	for _, existing := range indices {
		if existing == idx {
			return indices
		}
	}
	return append(indices, idx)
}
