package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a unit of deferred work stored in the database-backed queue.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       JobStatus
	Priority     int
	Attempts     int
	MaxAttempts  int
	ErrorMessage string
	ScheduledAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// EnqueueJobParams are the inputs for adding a job to the queue.
type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int
	MaxAttempts int
	ScheduledAt time.Time
}
