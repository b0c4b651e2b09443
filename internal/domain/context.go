package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ContextGenerator produces a short situating description for a chunk,
// used to build its contextualized content before indexing.
type ContextGenerator interface {
	GenerateContext(ctx context.Context, documentName, documentText, chunk string, position ChunkPosition) (string, error)
}

// HeuristicContext builds a situating sentence without any model call:
// position, document name, and the chunk's most frequent meaningful terms.
// It is the fallback when the LLM contextualizer is unavailable or throttled.
func HeuristicContext(documentName, chunk string, position ChunkPosition) string {
	terms := KeyTerms(chunk, 3)
	if len(terms) == 0 {
		return fmt.Sprintf("This chunk is from the %s of document '%s'.", position, documentName)
	}
	return fmt.Sprintf("This chunk is from the %s of document '%s', discussing %s.",
		position, documentName, strings.Join(terms, ", "))
}

// KeyTerms returns up to n of the most frequent non-stopword terms in the
// text, ties broken alphabetically for determinism.
func KeyTerms(text string, n int) []string {
	freqs := make(map[string]int)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if len(tok) < 4 || stopwords[tok] || isNumeric(tok) {
			continue
		}
		freqs[tok]++
	}
	terms := make([]string, 0, len(freqs))
	for term := range freqs {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freqs[terms[i]] != freqs[terms[j]] {
			return freqs[terms[i]] > freqs[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '-' && r != '%' {
			return false
		}
	}
	return len(s) > 0
}

var stopwords = map[string]bool{
	"this": true, "that": true, "these": true, "those": true,
	"with": true, "from": true, "have": true, "been": true,
	"were": true, "will": true, "shall": true, "which": true,
	"their": true, "there": true, "where": true, "when": true,
	"what": true, "about": true, "into": true, "over": true,
	"under": true, "such": true, "other": true, "than": true,
	"also": true, "each": true, "more": true, "most": true,
	"some": true, "being": true, "does": true, "both": true,
}
