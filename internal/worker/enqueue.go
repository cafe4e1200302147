package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeSendCampaign   = "send_campaign"
	JobTypeRefreshSegment = "refresh_segment"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendCampaignPayload is the payload for campaign send jobs.
type SendCampaignPayload struct {
	CampaignID  uuid.UUID `json:"campaign_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
}

// RefreshSegmentPayload is the payload for segment refresh jobs.
type RefreshSegmentPayload struct {
	SegmentID   uuid.UUID `json:"segment_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*domain.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int) EnqueueOption {
	return func(p *domain.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int) EnqueueOption {
	return func(p *domain.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *domain.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	store *repository.Store,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (*domain.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	params := domain.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := store.Jobs.Enqueue(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Enqueuer enqueues the deferred work the services hand off. It satisfies
// the Enqueuer interfaces declared next to their consumers.
type Enqueuer struct {
	store *repository.Store
}

// NewEnqueuer creates a new Enqueuer backed by the given store.
func NewEnqueuer(store *repository.Store) *Enqueuer {
	return &Enqueuer{store: store}
}

// EnqueueSendCampaign enqueues a campaign send. Sends run at high priority
// so a deep refresh backlog cannot delay them.
func (e *Enqueuer) EnqueueSendCampaign(ctx context.Context, campaignID, workspaceID uuid.UUID) error {
	_, err := EnqueueJob(ctx, e.store, JobTypeSendCampaign, SendCampaignPayload{
		CampaignID:  campaignID,
		WorkspaceID: workspaceID,
	}, WithPriority(PriorityHigh))
	return err
}

// EnqueueRefreshSegment enqueues a segment membership refresh.
func (e *Enqueuer) EnqueueRefreshSegment(ctx context.Context, segmentID, workspaceID uuid.UUID) error {
	_, err := EnqueueJob(ctx, e.store, JobTypeRefreshSegment, RefreshSegmentPayload{
		SegmentID:   segmentID,
		WorkspaceID: workspaceID,
	})
	return err
}
