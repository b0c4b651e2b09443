package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"esg-rag/internal/domain"
	"esg-rag/internal/usecase/retrieval"
)

// EvalCase is one labeled retrieval example: a question and the documents
// that contain its answer.
type EvalCase struct {
	Query             string   `json:"query"`
	ExpectedDocuments []string `json:"expected_documents"`
}

// EvalReport aggregates retrieval quality over a labeled set.
type EvalReport struct {
	Cases   int     `json:"cases"`
	HitRate float64 `json:"hit_rate"` // share of cases with any expected doc in top-k
	MRR     float64 `json:"mrr"`      // mean reciprocal rank of the first expected doc
}

// EvalUsecase measures retrieval quality offline against labeled cases.
// Generation is deliberately not part of the measurement.
type EvalUsecase struct {
	pipeline *retrieval.Pipeline
	logger   *slog.Logger
}

func NewEvalUsecase(pipeline *retrieval.Pipeline, logger *slog.Logger) *EvalUsecase {
	return &EvalUsecase{
		pipeline: pipeline,
		logger:   logger,
	}
}

func (u *EvalUsecase) Execute(ctx context.Context, cases []EvalCase) (*EvalReport, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("no eval cases provided")
	}

	var hits int
	var reciprocalSum float64
	for _, c := range cases {
		result, err := u.pipeline.Retrieve(ctx, c.Query)
		if err != nil {
			return nil, fmt.Errorf("retrieval failed for %q: %w", c.Query, err)
		}
		rank := firstExpectedRank(result.Chunks, c.ExpectedDocuments)
		if rank > 0 {
			hits++
			reciprocalSum += 1.0 / float64(rank)
		}
	}

	report := &EvalReport{
		Cases:   len(cases),
		HitRate: float64(hits) / float64(len(cases)),
		MRR:     reciprocalSum / float64(len(cases)),
	}

	u.logger.Info("eval_completed",
		slog.Int("cases", report.Cases),
		slog.Float64("hit_rate", report.HitRate),
		slog.Float64("mrr", report.MRR),
	)
	return report, nil
}

// firstExpectedRank returns the 1-based rank of the first chunk from an
// expected document, or 0 when none is retrieved.
func firstExpectedRank(chunks []domain.ScoredChunk, expected []string) int {
	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}
	for i, c := range chunks {
		if want[c.Chunk.DocumentID] {
			return i + 1
		}
	}
	return 0
}
