package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
)

// JobRepo implements the database-backed job queue.
type JobRepo struct{ db DBTX }

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts,
	error_message, scheduled_at, started_at, completed_at, created_at`

func scanJob(scan func(...interface{}) error) (*domain.Job, error) {
	var j domain.Job
	var errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	err := scan(
		&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority, &j.Attempts,
		&j.MaxAttempts, &errorMessage, &j.ScheduledAt, &startedAt, &completedAt,
		&j.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

// Enqueue adds a job to the queue.
func (r *JobRepo) Enqueue(ctx context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO jobs (job_type, payload, priority, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		params.JobType, params.Payload, params.Priority, params.MaxAttempts, params.ScheduledAt)
	return scanJob(row.Scan)
}

// Dequeue claims the next due pending job. FOR UPDATE SKIP LOCKED lets
// concurrent workers dequeue without blocking each other. Returns
// sql.ErrNoRows when the queue is empty.
func (r *JobRepo) Dequeue(ctx context.Context) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending' AND scheduled_at <= now()
		ORDER BY priority DESC, scheduled_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`)
	return scanJob(row.Scan)
}

// MarkStarted transitions a claimed job to running and counts the attempt.
func (r *JobRepo) MarkStarted(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'running', attempts = attempts + 1, started_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}
	return requireRow(res)
}

// MarkCompleted records successful completion.
func (r *JobRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', completed_at = now(), error_message = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return requireRow(res)
}

// MarkFailed records a failure. Jobs with attempts left go back to pending
// with exponential backoff (1m, 4m, 9m, ...); otherwise they land in failed.
// Permanent failures pass retryable=false to skip the retry path entirely.
func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, retryable bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET error_message = $2,
		    status = CASE
		        WHEN $3 AND attempts < max_attempts THEN 'pending'
		        ELSE 'failed'
		    END,
		    scheduled_at = CASE
		        WHEN $3 AND attempts < max_attempts
		        THEN now() + (interval '1 minute' * attempts * attempts)
		        ELSE scheduled_at
		    END,
		    completed_at = CASE
		        WHEN $3 AND attempts < max_attempts THEN NULL
		        ELSE now()
		    END
		WHERE id = $1
	`, id, errorMessage, retryable)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return requireRow(res)
}

// RecoverStale resets running jobs older than the threshold back to pending.
// Called at worker startup to reclaim jobs orphaned by a crash.
func (r *JobRepo) RecoverStale(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE status = 'running'
		  AND started_at < now() - (interval '1 second' * $1)
	`, thresholdSeconds)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}
