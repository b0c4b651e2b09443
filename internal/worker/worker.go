package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"esg-rag/internal/domain"
	"esg-rag/internal/infra/logger"
	"esg-rag/internal/usecase"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	jobTimeout          = 10 * time.Minute
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute
	retryDelay          = 30 * time.Second
)

// DocumentProcessor is the slice of the ingestion usecase the worker needs.
type DocumentProcessor interface {
	Execute(ctx context.Context, documentID, documentName, text, contentType string, force bool) (*usecase.ProcessResult, error)
}

// DisclosureAnswerer is the slice of the bulk answer usecase the worker needs.
type DisclosureAnswerer interface {
	Execute(ctx context.Context, reportID string, questions []string) (*usecase.BulkAnswerResult, error)
}

// JobWorker polls the job queue and dispatches by job type. Document
// reprocessing and bulk disclosure runs both take minutes, so they run here
// instead of inside a request handler.
type JobWorker struct {
	jobs      domain.JobRepository
	processor DocumentProcessor
	answerer  DisclosureAnswerer
	logs      *logger.ContextLogger
	logger    *slog.Logger // base, outside any job context

	pollInterval time.Duration
	stopChan     chan struct{}
	backoff      time.Duration
}

func NewJobWorker(
	jobs domain.JobRepository,
	processor DocumentProcessor,
	answerer DisclosureAnswerer,
	pollInterval time.Duration,
	logs *logger.ContextLogger,
) *JobWorker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &JobWorker{
		jobs:         jobs,
		processor:    processor,
		answerer:     answerer,
		logs:         logs,
		logger:       logs.WithContext(context.Background()),
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
	}
}

func (w *JobWorker) Start() {
	w.logger.Info("job_worker_started",
		slog.Duration("poll_interval", w.pollInterval),
	)
	go w.run()
}

func (w *JobWorker) Stop() {
	w.logger.Info("job_worker_stopping")
	close(w.stopChan)
}

func (w *JobWorker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextJob()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(w.pollInterval)
			}
		}
	}
}

func (w *JobWorker) processNextJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := w.jobs.AcquireNext(ctx, []string{
		domain.JobTypeReprocessDocument,
		domain.JobTypeAnswerDisclosures,
	})
	if err == domain.ErrJobNotFound {
		w.backoff = 0
		return
	}
	if err != nil {
		w.backoff = w.nextBackoff(w.backoff)
		w.logger.Error("job_acquire_failed",
			slog.String("error", err.Error()),
			slog.Duration("backoff", w.backoff),
		)
		return
	}

	ctx = logger.WithJobID(ctx, job.ID.String())
	log := w.logs.WithContext(ctx).With(slog.String("job_type", job.JobType))
	log.Info("job_processing_started", slog.Int("attempt", job.Attempts))

	var processErr error
	switch job.JobType {
	case domain.JobTypeReprocessDocument:
		processErr = w.processReprocessDocument(ctx, job)
	case domain.JobTypeAnswerDisclosures:
		processErr = w.processAnswerDisclosures(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	if processErr != nil {
		w.backoff = w.nextBackoff(w.backoff)
		log.Warn("job_processing_failed",
			slog.String("error", processErr.Error()),
			slog.Duration("backoff", w.backoff),
		)
		if err := w.jobs.MarkFailed(ctx, job.ID, processErr.Error(), retryDelay); err != nil {
			log.Error("job_status_update_failed", slog.String("error", err.Error()))
		}
		return
	}

	w.backoff = 0
	log.Info("job_completed")
	if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil {
		log.Error("job_status_update_failed", slog.String("error", err.Error()))
	}
}

func (w *JobWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (w *JobWorker) processReprocessDocument(ctx context.Context, job domain.Job) error {
	var payload domain.ReprocessDocumentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid reprocess payload: %w", err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("reprocess payload missing document_id")
	}

	ctx = logger.WithDocumentID(ctx, payload.DocumentID)
	w.logs.WithContext(ctx).Info("document_reprocess_dispatched")
	_, err := w.processor.Execute(ctx, payload.DocumentID, payload.DocumentName, payload.Text, payload.ContentType, payload.Force)
	return err
}

func (w *JobWorker) processAnswerDisclosures(ctx context.Context, job domain.Job) error {
	var payload domain.AnswerDisclosuresPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid disclosure payload: %w", err)
	}
	if len(payload.Questions) == 0 {
		return fmt.Errorf("disclosure payload has no questions")
	}

	result, err := w.answerer.Execute(ctx, payload.ReportID, payload.Questions)
	if err != nil {
		return err
	}
	w.logs.WithContext(ctx).Info("disclosure_run_completed",
		slog.String("report_id", payload.ReportID),
		slog.Int("answered", result.Answered),
		slog.Int("failed", result.Failed),
	)
	return nil
}
