package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faxingberling1/mailward/internal/repository"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "concurrency too low",
			config: Config{
				Concurrency:       0,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "concurrency too high",
			config: Config{
				Concurrency:       101,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "poll interval too short",
			config: Config{
				Concurrency:       2,
				PollInterval:      500 * time.Millisecond,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "wrapped permanent error",
			err:  fmt.Errorf("execute job: %w", NewPermanentError(errors.New("bad payload"))),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// recordingHandler counts invocations and returns a configurable error.
type recordingHandler struct {
	jobType string
	err     error
	calls   int
	payload []byte
}

func (h *recordingHandler) Type() string { return h.jobType }

func (h *recordingHandler) Handle(_ context.Context, payload []byte) error {
	h.calls++
	h.payload = payload
	return h.err
}

func newWorkerFixture(t *testing.T) (*Worker, sqlmock.Sqlmock) {
	t.Helper()
	db, dbmock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w, err := New(repository.NewStore(db), DefaultConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return w, dbmock
}

func jobRow(id uuid.UUID, jobType string, payload []byte, attempts int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "job_type", "payload", "status", "priority", "attempts", "max_attempts",
		"error_message", "scheduled_at", "started_at", "completed_at", "created_at",
	}).AddRow(id, jobType, payload, "pending", 10, attempts, 3,
		nil, time.Now(), nil, nil, time.Now())
}

func TestProcessNextJob_Success(t *testing.T) {
	w, dbmock := newWorkerFixture(t)
	jobID := uuid.New()
	payload := []byte(`{"campaign_id":"` + uuid.NewString() + `"}`)

	handler := &recordingHandler{jobType: "send_campaign"}
	w.Register(handler)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(jobRow(jobID, "send_campaign", payload, 0))
	dbmock.ExpectExec(`UPDATE jobs\s+SET status = 'running'`).
		WithArgs(jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectCommit()
	dbmock.ExpectExec(`UPDATE jobs\s+SET status = 'completed'`).
		WithArgs(jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.processNextJob(context.Background(), w.logger)
	require.NoError(t, err)

	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, payload, handler.payload)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestProcessNextJob_EmptyQueue(t *testing.T) {
	w, dbmock := newWorkerFixture(t)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnError(sql.ErrNoRows)
	dbmock.ExpectRollback()

	err := w.processNextJob(context.Background(), w.logger)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestProcessNextJob_HandlerFailureRetries(t *testing.T) {
	w, dbmock := newWorkerFixture(t)
	jobID := uuid.New()

	handler := &recordingHandler{jobType: "send_campaign", err: errors.New("smtp timeout")}
	w.Register(handler)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(jobRow(jobID, "send_campaign", []byte(`{}`), 0))
	dbmock.ExpectExec(`UPDATE jobs\s+SET status = 'running'`).
		WithArgs(jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectCommit()
	dbmock.ExpectExec(regexp.QuoteMeta("UPDATE jobs")).
		WithArgs(jobID, "smtp timeout", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.processNextJob(context.Background(), w.logger)
	require.Error(t, err)

	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestProcessNextJob_UnknownTypeIsPermanent(t *testing.T) {
	w, dbmock := newWorkerFixture(t)
	jobID := uuid.New()

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(jobRow(jobID, "mystery_job", []byte(`{}`), 0))
	dbmock.ExpectExec(`UPDATE jobs\s+SET status = 'running'`).
		WithArgs(jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectCommit()
	// retryable=false routes the job straight to 'failed'.
	dbmock.ExpectExec(regexp.QuoteMeta("UPDATE jobs")).
		WithArgs(jobID, "no handler registered for job type: mystery_job", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.processNextJob(context.Background(), w.logger)
	require.Error(t, err)

	assert.NoError(t, dbmock.ExpectationsWereMet())
}
