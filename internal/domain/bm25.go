package domain

import (
	"math"
)

// BM25 parameter defaults, the standard Okapi settings.
const (
	DefaultBM25K1 = 1.5
	DefaultBM25B  = 0.75
)

// BM25Index scores chunks lexically over an in-memory corpus. It is rebuilt
// per retrieval from the candidate pool; corpora here are a few hundred
// chunks at most, so rebuilding is cheaper than maintaining a shared index.
type BM25Index struct {
	k1        float64
	b         float64
	docLens   []float64
	avgDocLen float64
	docFreqs  map[string]int // number of documents containing each term
	termFreqs []map[string]int
}

// NewBM25Index builds an index over the given chunks using their stored
// term frequencies.
func NewBM25Index(chunks []DocumentChunk, k1, b float64) *BM25Index {
	if k1 <= 0 {
		k1 = DefaultBM25K1
	}
	if b < 0 || b > 1 {
		b = DefaultBM25B
	}
	idx := &BM25Index{
		k1:        k1,
		b:         b,
		docLens:   make([]float64, len(chunks)),
		docFreqs:  make(map[string]int),
		termFreqs: make([]map[string]int, len(chunks)),
	}
	var total float64
	for i, chunk := range chunks {
		freqs := chunk.TermFreqs
		if freqs == nil {
			freqs = TermFrequencies(chunk.ContextualizedContent())
		}
		idx.termFreqs[i] = freqs
		var dl float64
		for term, count := range freqs {
			dl += float64(count)
			idx.docFreqs[term]++
		}
		idx.docLens[i] = dl
		total += dl
	}
	if len(chunks) > 0 {
		idx.avgDocLen = total / float64(len(chunks))
	}
	return idx
}

// Score returns one BM25 score per indexed chunk for the given query.
// An empty corpus or empty query yields all zeros.
func (idx *BM25Index) Score(query string) []float64 {
	scores := make([]float64, len(idx.termFreqs))
	n := float64(len(idx.termFreqs))
	if n == 0 || idx.avgDocLen == 0 {
		return scores
	}
	for _, term := range Tokenize(query) {
		df := float64(idx.docFreqs[term])
		if df == 0 {
			continue
		}
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for i, freqs := range idx.termFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			denom := tf + idx.k1*(1-idx.b+idx.b*idx.docLens[i]/idx.avgDocLen)
			scores[i] += idf * tf * (idx.k1 + 1) / denom
		}
	}
	return scores
}

// NormalizeScores rescales scores into [0, 1] by dividing by the pool
// maximum. An all-zero pool stays all zero.
func NormalizeScores(scores []float64) []float64 {
	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == 0 {
		return out
	}
	for i, s := range scores {
		out[i] = s / max
	}
	return out
}
