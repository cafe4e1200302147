package worker

import (
	"fmt"
	"time"
)

// Config controls the background worker pool that drains the jobs table.
type Config struct {
	// Concurrency is the number of polling goroutines. Campaign sends are
	// SMTP-bound and long-running, so a small pool goes a long way; raise
	// this when the send queue backs up, not for segment refreshes.
	// Default: 2
	Concurrency int

	// PollInterval is how long an idle worker sleeps between dequeue
	// attempts when the queue is empty.
	// Default: 5 seconds
	PollInterval time.Duration

	// JobTimeout bounds a single job run. It must cover a full campaign
	// fan-out, which delivers one message per segment member; when exceeded
	// the job's context is canceled and the attempt counts as a failure.
	// Default: 5 minutes
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight jobs before
	// giving up. A send interrupted here is picked up again by stale
	// recovery on the next start.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age at which a 'running' job is presumed
	// orphaned by a crashed worker and requeued at startup. Keep it above
	// JobTimeout or healthy long sends get double-delivered.
	// Default: 10 minutes
	StaleJobThreshold time.Duration
}

// DefaultConfig returns defaults sized for the send/refresh job mix.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate checks the configuration before the pool starts.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.PollInterval < 1*time.Second {
		return fmt.Errorf("poll interval must be at least 1 second, got %v", c.PollInterval)
	}
	if c.JobTimeout < 1*time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.StaleJobThreshold < 1*time.Minute {
		return fmt.Errorf("stale job threshold must be at least 1 minute, got %v", c.StaleJobThreshold)
	}
	return nil
}
