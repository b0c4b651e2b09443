package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// bulkAnswerConcurrency bounds how many questions are answered at once.
// Each answer fans out into several model calls, so this stays small.
const bulkAnswerConcurrency = 3

// BulkAnswerItem is one question's outcome within a bulk run.
type BulkAnswerItem struct {
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	Confidence   float64 `json:"confidence"`
	TierUsed     int     `json:"tier_used"`
	Insufficient bool    `json:"insufficient"`
	Error        string  `json:"error,omitempty"`
}

// BulkAnswerResult aggregates a bulk disclosure run.
type BulkAnswerResult struct {
	ReportID  string           `json:"report_id"`
	Items     []BulkAnswerItem `json:"items"`
	Answered  int              `json:"answered"`
	Failed    int              `json:"failed"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// BulkAnswerUsecase answers a batch of disclosure questions against the
// indexed documents, e.g. a full ESRS datapoint checklist for one report.
// Individual failures are recorded per question and never abort the run.
type BulkAnswerUsecase struct {
	answer *AnswerUsecase
	logger *slog.Logger
}

func NewBulkAnswerUsecase(answer *AnswerUsecase, logger *slog.Logger) *BulkAnswerUsecase {
	return &BulkAnswerUsecase{
		answer: answer,
		logger: logger,
	}
}

func (u *BulkAnswerUsecase) Execute(ctx context.Context, reportID string, questions []string) (*BulkAnswerResult, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions provided")
	}

	start := time.Now()
	items := make([]BulkAnswerItem, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkAnswerConcurrency)
	for i, question := range questions {
		g.Go(func() error {
			items[i] = u.answerOne(gctx, question)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BulkAnswerResult{
		ReportID:  reportID,
		Items:     items,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	for _, item := range items {
		if item.Error == "" {
			result.Answered++
		} else {
			result.Failed++
		}
	}

	u.logger.Info("bulk_answer_completed",
		slog.String("report_id", reportID),
		slog.Int("questions", len(questions)),
		slog.Int("answered", result.Answered),
		slog.Int("failed", result.Failed),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (u *BulkAnswerUsecase) answerOne(ctx context.Context, question string) BulkAnswerItem {
	item := BulkAnswerItem{Question: question}

	result, err := u.answer.Execute(ctx, question)
	if err != nil {
		u.logger.Warn("bulk_answer_question_failed",
			slog.String("question", truncateForLog(question)),
			slog.String("error", err.Error()),
		)
		item.Error = err.Error()
		return item
	}

	item.Answer = result.Answer
	item.Confidence = result.Confidence
	item.TierUsed = result.TierUsed
	item.Insufficient = result.Insufficient
	return item
}
