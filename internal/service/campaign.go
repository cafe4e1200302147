// Package service contains the business logic layer.
//
// This file implements the campaign service. Campaign creation is the
// operation that exercises the quota gate: workflow-count and email-volume
// checks run first, then the insert and the credit consumption commit in a
// single transaction.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/metrics"
	"github.com/faxingberling1/mailward/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CampaignService defines the interface for campaign operations.
type CampaignService interface {
	// Create creates a new campaign after passing the workflow-count and
	// email-volume checks. The campaign insert and the email credit
	// consumption commit atomically; a denial leaves storage untouched.
	// Returns domain.ELIMIT when a tier limit would be exceeded.
	Create(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error)

	// Get retrieves a campaign with its sequence steps.
	Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Campaign, error)

	// List retrieves a paginated list of campaigns for a workspace.
	List(ctx context.Context, params domain.ListCampaignsParams) ([]domain.Campaign, int64, error)

	// Update applies partial updates to a draft or scheduled campaign.
	Update(ctx context.Context, params domain.UpdateCampaignParams) error

	// Delete removes a draft campaign.
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error

	// Schedule transitions a draft campaign to scheduled and enqueues the
	// send job.
	Schedule(ctx context.Context, workspaceID, id uuid.UUID) error
}

// Enqueuer abstracts the job queue for services that defer work.
type Enqueuer interface {
	EnqueueSendCampaign(ctx context.Context, campaignID, workspaceID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type campaignService struct {
	store    *repository.Store
	usage    UsageService
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewCampaignService creates a new CampaignService.
func NewCampaignService(
	store *repository.Store,
	usage UsageService,
	enqueuer Enqueuer,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		store:    store,
		usage:    usage,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// =============================================================================
// Create
// =============================================================================

// Create runs the gated creation pipeline: resolve limits, check workflow
// count, check email volume, then insert and consume inside one transaction.
// Three exit points: two denials and one success; a denial is terminal for
// the request.
func (s *campaignService) Create(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error) {
	const op = "campaign.create"

	if err := s.validateCreateParams(op, params); err != nil {
		return nil, err
	}

	workflowCheck, err := s.usage.CheckCampaignLimit(ctx, params.WorkspaceID, params.OwnerID)
	if err != nil {
		return nil, err
	}
	if !workflowCheck.Allowed {
		return nil, denialError(op, workflowCheck)
	}

	emailCheck, err := s.usage.CheckEmailLimit(ctx, params.WorkspaceID, params.SegmentCount)
	if err != nil {
		return nil, err
	}
	if !emailCheck.Allowed {
		return nil, denialError(op, emailCheck)
	}

	// The insert and the counter increment are all-or-nothing: a consumed
	// but unrecorded email count is not an acceptable state, and neither is
	// the reverse.
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	txStore := s.store.WithTx(tx)

	campaign, err := txStore.Campaigns.Create(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create campaign")
	}

	if params.SegmentCount > 0 {
		if err := txStore.Workspaces.ConsumeEmailCredits(ctx, params.WorkspaceID, params.SegmentCount); err != nil {
			return nil, domain.Internal(err, op, "failed to consume email credits")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit transaction")
	}

	metrics.CampaignsCreated.Inc()
	s.logger.Info("campaign created",
		"campaign_id", campaign.ID,
		"workspace_id", params.WorkspaceID,
		"segment_count", params.SegmentCount,
	)

	return campaign, nil
}

func (s *campaignService) validateCreateParams(op string, params domain.CreateCampaignParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return domain.Invalid(op, "campaign name is required")
	}
	if strings.TrimSpace(params.Subject) == "" {
		return domain.Invalid(op, "campaign subject is required")
	}
	if params.SegmentCount < 0 {
		return domain.Invalid(op, "segment count must be non-negative")
	}
	return nil
}

// denialError converts a check denial into the typed error callers branch on.
func denialError(op string, result domain.UsageCheckResult) *domain.Error {
	code := domain.ELIMIT
	switch result.Code {
	case domain.CheckCodeNoWorkspace:
		code = domain.EUNAUTHORIZED
	case domain.CheckCodeSuspended:
		code = domain.ESUSPENDED
	}
	return &domain.Error{
		Code:    code,
		Op:      op,
		Message: result.Reason,
	}
}

// =============================================================================
// Reads and lifecycle
// =============================================================================

// Get retrieves a campaign with its steps.
func (s *campaignService) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Campaign, error) {
	const op = "campaign.get"

	campaign, err := s.store.Campaigns.Get(ctx, workspaceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(op, "campaign", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get campaign")
	}
	return campaign, nil
}

// List retrieves campaigns for a workspace.
func (s *campaignService) List(ctx context.Context, params domain.ListCampaignsParams) ([]domain.Campaign, int64, error) {
	const op = "campaign.list"

	campaigns, total, err := s.store.Campaigns.List(ctx, params)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list campaigns")
	}
	return campaigns, total, nil
}

// Update applies partial updates to an editable campaign.
func (s *campaignService) Update(ctx context.Context, params domain.UpdateCampaignParams) error {
	const op = "campaign.update"

	err := s.store.Campaigns.Update(ctx, params)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "editable campaign", params.ID.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to update campaign")
	}
	return nil
}

// Delete removes a draft campaign.
func (s *campaignService) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	const op = "campaign.delete"

	err := s.store.Campaigns.Delete(ctx, workspaceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "draft campaign", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to delete campaign")
	}
	return nil
}

// Schedule marks the campaign scheduled and hands it to the send worker.
func (s *campaignService) Schedule(ctx context.Context, workspaceID, id uuid.UUID) error {
	const op = "campaign.schedule"

	campaign, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return err
	}
	if !campaign.IsEditable() {
		return domain.Invalid(op, "only draft or scheduled campaigns can be scheduled")
	}
	if campaign.SegmentID == nil {
		return domain.Invalid(op, "campaign has no segment assigned")
	}

	if err := s.store.Campaigns.UpdateStatus(ctx, workspaceID, id, domain.CampaignStatusScheduled); err != nil {
		return domain.Internal(err, op, "failed to schedule campaign")
	}

	if err := s.enqueuer.EnqueueSendCampaign(ctx, id, workspaceID); err != nil {
		return domain.Internal(err, op, "failed to enqueue send job")
	}

	s.logger.Info("campaign scheduled", "campaign_id", id, "workspace_id", workspaceID)
	return nil
}
