package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"esg-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates the pgx-backed job queue.
func NewJobRepository(pool *pgxpool.Pool) domain.JobRepository {
	return &jobRepository{pool: pool}
}

func (r *jobRepository) Enqueue(ctx context.Context, job domain.Job) error {
	query := `
		INSERT INTO rag_jobs (id, job_type, payload, status, attempts, max_retry, last_error, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.JobType, []byte(job.Payload), job.Status,
		job.Attempts, job.MaxRetry, job.LastError, job.RunAfter,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// AcquireNext claims the oldest runnable job atomically. The CTE with
// FOR UPDATE SKIP LOCKED lets concurrent workers each claim distinct jobs
// without blocking on each other.
func (r *jobRepository) AcquireNext(ctx context.Context, jobTypes []string) (domain.Job, error) {
	query := `
		WITH next_job AS (
			SELECT id
			FROM rag_jobs
			WHERE status = 'pending'
			  AND job_type = ANY($2)
			  AND run_after <= $1
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE rag_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = $1
		FROM next_job
		WHERE rag_jobs.id = next_job.id
		RETURNING rag_jobs.id, rag_jobs.job_type, rag_jobs.payload, rag_jobs.status,
			rag_jobs.attempts, rag_jobs.max_retry, rag_jobs.last_error,
			rag_jobs.run_after, rag_jobs.created_at, rag_jobs.updated_at
	`
	job, err := scanJob(r.pool.QueryRow(ctx, query, time.Now(), jobTypes))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to acquire next job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	query := `
		SELECT id, job_type, payload, status, attempts, max_retry, last_error, run_after, created_at, updated_at
		FROM rag_jobs
		WHERE id = $1
	`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE rag_jobs
		SET status = 'completed', last_error = '', updated_at = $1
		WHERE id = $2
	`
	_, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// MarkFailed reschedules the job after delay, or parks it as failed when
// attempts are exhausted.
func (r *jobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, delay time.Duration) error {
	query := `
		UPDATE rag_jobs
		SET status = CASE WHEN attempts >= max_retry THEN 'failed' ELSE 'pending' END,
			last_error = $1,
			run_after = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.pool.Exec(ctx, query, errMsg, time.Now().Add(delay), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var payload []byte
	var lastError pgtype.Text
	err := row.Scan(&job.ID, &job.JobType, &payload, &job.Status,
		&job.Attempts, &job.MaxRetry, &lastError, &job.RunAfter,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return domain.Job{}, err
	}
	job.Payload = payload
	job.LastError = lastError.String
	return job, nil
}
