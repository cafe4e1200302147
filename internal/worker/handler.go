package worker

import (
	"context"
	"errors"
)

// JobHandler executes one kind of background job. The worker routes each
// dequeued job to the registered handler whose Type matches the row's
// job_type column.
type JobHandler interface {
	// Type returns the job type this handler owns, e.g. JobTypeSendCampaign.
	Type() string

	// Handle runs the job. The payload is the raw JSON stored at enqueue
	// time and is the handler's to unmarshal. A plain error reschedules the
	// job with backoff; wrap with NewPermanentError for failures a retry
	// cannot fix, such as a deleted campaign or an unparseable payload.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a failure as non-retryable. A job that fails with one
// goes straight to 'failed' instead of being rescheduled.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to see the wrapped error.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err so the worker will not retry it.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is a
// PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
