// Package worker implements the database-backed background job processor.
//
// Jobs are stored in the jobs table and claimed with FOR UPDATE SKIP LOCKED
// so multiple worker goroutines (and multiple processes) can dequeue
// concurrently without double-processing.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/metrics"
	"github.com/faxingberling1/mailward/internal/repository"
)

// Worker manages background job processing with concurrent workers.
type Worker struct {
	store    *repository.Store
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(store *repository.Store, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		store:    store,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler to the worker.
// The handler's Type() must be unique. Call this before Start().
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("registered job handler", "job_type", jobType)
}

// Start begins processing jobs with the configured number of concurrent workers.
// It also recovers any stale jobs from previous worker crashes.
func (w *Worker) Start(ctx context.Context) {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("failed to recover stale jobs", "error", err)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("worker started", "concurrency", w.config.Concurrency)
}

// Stop signals all workers to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timeout exceeded, some jobs may still be running")
	}
}

// recoverStaleJobs finds jobs that have been running too long and resets them
// to pending. This handles the case where a worker crashed mid-job.
func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	count, err := w.store.Jobs.RecoverStale(ctx, w.config.StaleJobThreshold.Seconds())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}

	if count > 0 {
		w.logger.Warn("recovered stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}
	return nil
}

// runWorker is the main loop for a worker goroutine.
// It continuously polls for jobs until stopCh is closed.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker started")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("worker stopping")
			return
		case <-ticker.C:
			if err := w.processNextJob(ctx, logger); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					// Queue is empty, this is normal.
					continue
				}
				logger.Error("failed to process job", "error", err)
			}
		}
	}
}

// processNextJob attempts to dequeue and execute a single job.
// Returns sql.ErrNoRows if no jobs are available.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	// Claim and mark the job in one transaction so a crash between the two
	// leaves nothing half-claimed.
	tx, err := w.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := w.store.WithTx(tx)

	job, err := txStore.Jobs.Dequeue(ctx)
	if err != nil {
		return err // sql.ErrNoRows when the queue is empty
	}

	if err := txStore.Jobs.MarkStarted(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dequeue: %w", err)
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Info("processing job")

	start := time.Now()
	if err := w.executeJob(ctx, job); err != nil {
		logger.Error("job failed", "error", err)
		metrics.JobsTotal.WithLabelValues(job.JobType, "failed").Inc()
		w.markJobFailed(ctx, job, err)
		return fmt.Errorf("execute job: %w", err)
	}

	metrics.JobsTotal.WithLabelValues(job.JobType, "completed").Inc()
	metrics.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())

	logger.Info("job completed")
	if err := w.store.Jobs.MarkCompleted(ctx, job.ID); err != nil {
		logger.Error("failed to mark job as completed", "error", err)
		return err
	}
	return nil
}

// executeJob runs the appropriate handler for the job with a timeout context.
func (w *Worker) executeJob(ctx context.Context, job *domain.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		// No handler registered, retrying cannot fix this.
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}

// markJobFailed records a failure. Permanent errors and exhausted attempts
// land in 'failed'; everything else is rescheduled with backoff.
func (w *Worker) markJobFailed(ctx context.Context, job *domain.Job, jobErr error) {
	retryable := !IsPermanent(jobErr)
	if !retryable {
		w.logger.Warn("job failed with permanent error, will not retry",
			"job_id", job.ID, "error", jobErr.Error())
	} else {
		metrics.JobRetriesTotal.WithLabelValues(job.JobType).Inc()
	}

	if err := w.store.Jobs.MarkFailed(ctx, job.ID, jobErr.Error(), retryable); err != nil {
		w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", err)
	}
}
