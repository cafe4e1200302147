// Package service contains the business logic layer.
//
// This file implements the usage service: evaluating tier limits against a
// workspace's remaining balances. Checks never mutate counters; consumption
// is performed by the campaign and segment services inside their own
// transactions. The balances are drawn down by every consumption write,
// refreshed by admin resets and plan changes, and raised by credit grants,
// so evaluating against them keeps all of those paths enforceable.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/metrics"
	"github.com/faxingberling1/mailward/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService defines operations for checking tier limits.
type UsageService interface {
	// CheckEmailLimit evaluates whether the workspace may send requestedCount
	// more emails this period. A zero-sized request is always allowed.
	// Evaluation has no side effects.
	CheckEmailLimit(ctx context.Context, workspaceID uuid.UUID, requestedCount int) (domain.UsageCheckResult, error)

	// CheckAICredits evaluates whether the workspace may spend requestedCount
	// more AI credits. The balance includes admin-granted credits on top of
	// the tier allowance.
	CheckAICredits(ctx context.Context, workspaceID uuid.UUID, requestedCount int) (domain.UsageCheckResult, error)

	// CheckCampaignLimit evaluates the workflow-count limit: whether the
	// owner may create one more campaign under the workspace's plan.
	CheckCampaignLimit(ctx context.Context, workspaceID, ownerID uuid.UUID) (domain.UsageCheckResult, error)

	// GetUsage returns current consumption against the plan's limits for the
	// dashboard usage panel.
	GetUsage(ctx context.Context, workspaceID, ownerID uuid.UUID) (*domain.Usage, error)
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(store *repository.Store, logger *slog.Logger) UsageService {
	return &usageService{
		store:  store,
		logger: logger,
	}
}

// CheckEmailLimit evaluates the email-volume limit.
func (s *usageService) CheckEmailLimit(ctx context.Context, workspaceID uuid.UUID, requestedCount int) (domain.UsageCheckResult, error) {
	const op = "usage.check_email_limit"

	if requestedCount < 0 {
		return domain.UsageCheckResult{}, domain.Invalid(op, "requested count must be non-negative")
	}

	// You cannot be denied for consuming nothing. Short-circuits before the
	// snapshot read so a zero request succeeds even for an exhausted balance.
	if requestedCount == 0 {
		return domain.Allow(), nil
	}

	snap, err := s.snapshot(ctx, op, workspaceID)
	if err != nil {
		return domain.UsageCheckResult{}, err
	}
	if denied, ok := s.denyUnusable(snap, workspaceID); ok {
		return denied, nil
	}

	remaining := snap.EmailLimitRemaining
	if requestedCount > remaining {
		limits := domain.GetTierLimits(snap.Plan)
		s.logger.Info("email limit denied",
			"workspace_id", workspaceID,
			"plan", snap.Plan,
			"requested", requestedCount,
			"remaining", remaining,
		)
		metrics.LimitDenialsTotal.WithLabelValues("emails").Inc()
		denial := domain.LimitReached(op, snap.Plan, "emails", limits.EmailsPerMonth)
		return domain.Deny(domain.CheckCodeLimitReached, denial.Message), nil
	}

	return domain.Allow(), nil
}

// CheckAICredits evaluates the AI-credit limit.
func (s *usageService) CheckAICredits(ctx context.Context, workspaceID uuid.UUID, requestedCount int) (domain.UsageCheckResult, error) {
	const op = "usage.check_ai_credits"

	if requestedCount < 0 {
		return domain.UsageCheckResult{}, domain.Invalid(op, "requested count must be non-negative")
	}
	if requestedCount == 0 {
		return domain.Allow(), nil
	}

	snap, err := s.snapshot(ctx, op, workspaceID)
	if err != nil {
		return domain.UsageCheckResult{}, err
	}
	if denied, ok := s.denyUnusable(snap, workspaceID); ok {
		return denied, nil
	}

	remaining := snap.AICreditsRemaining
	if requestedCount > remaining {
		limits := domain.GetTierLimits(snap.Plan)
		s.logger.Info("ai credit limit denied",
			"workspace_id", workspaceID,
			"plan", snap.Plan,
			"requested", requestedCount,
			"remaining", remaining,
		)
		metrics.LimitDenialsTotal.WithLabelValues("ai_credits").Inc()
		denial := domain.LimitReached(op, snap.Plan, "AI credits", limits.AICreditsPerMonth)
		return domain.Deny(domain.CheckCodeLimitReached, denial.Message), nil
	}

	return domain.Allow(), nil
}

// CheckCampaignLimit evaluates the workflow-count limit against the number
// of campaigns the owner already has.
func (s *usageService) CheckCampaignLimit(ctx context.Context, workspaceID, ownerID uuid.UUID) (domain.UsageCheckResult, error) {
	const op = "usage.check_campaign_limit"

	snap, err := s.snapshot(ctx, op, workspaceID)
	if err != nil {
		return domain.UsageCheckResult{}, err
	}
	if denied, ok := s.denyUnusable(snap, workspaceID); ok {
		return denied, nil
	}

	count, err := s.store.Campaigns.CountByOwner(ctx, ownerID)
	if err != nil {
		return domain.UsageCheckResult{}, domain.Internal(err, op, "failed to count campaigns")
	}

	limits := domain.GetTierLimits(snap.Plan)
	if count >= int64(limits.AutomationWorkflows) {
		s.logger.Info("campaign limit denied",
			"workspace_id", workspaceID,
			"owner_id", ownerID,
			"plan", snap.Plan,
			"count", count,
			"limit", limits.AutomationWorkflows,
		)
		metrics.LimitDenialsTotal.WithLabelValues("campaigns").Inc()
		denial := domain.LimitReached(op, snap.Plan, "automation workflows", limits.AutomationWorkflows)
		return domain.Deny(domain.CheckCodeLimitReached, denial.Message), nil
	}

	return domain.Allow(), nil
}

// GetUsage returns the dashboard usage read model.
func (s *usageService) GetUsage(ctx context.Context, workspaceID, ownerID uuid.UUID) (*domain.Usage, error) {
	const op = "usage.get_usage"

	snap, err := s.snapshot(ctx, op, workspaceID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.Campaigns.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count campaigns")
	}

	// Remaining figures come from the same balances the evaluators enforce,
	// so the dashboard never disagrees with a denial.
	limits := domain.GetTierLimits(snap.Plan)
	return &domain.Usage{
		Plan:            snap.Plan,
		Limits:          limits,
		TotalEmailsSent: snap.TotalEmailsSent,
		TotalAIUsed:     snap.TotalAIUsed,
		EmailsRemaining: int64(snap.EmailLimitRemaining),
		AIRemaining:     int64(snap.AICreditsRemaining),
		CampaignsUsed:   count,
		CampaignsLimit:  limits.AutomationWorkflows,
	}, nil
}

// snapshot loads the usage read model, mapping a missing workspace to a
// typed unauthorized error so callers deny by default.
func (s *usageService) snapshot(ctx context.Context, op string, workspaceID uuid.UUID) (*domain.UsageSnapshot, error) {
	snap, err := s.store.Workspaces.GetSnapshot(ctx, workspaceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Unauthorized(op, "no active workspace")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load usage snapshot")
	}
	return snap, nil
}

// denyUnusable returns a denial for workspaces that must reject all
// consumption regardless of remaining balance.
func (s *usageService) denyUnusable(snap *domain.UsageSnapshot, workspaceID uuid.UUID) (domain.UsageCheckResult, bool) {
	if snap.Deleted {
		return domain.Deny(domain.CheckCodeNoWorkspace, "no active workspace"), true
	}
	if snap.HealthStatus == domain.HealthStatusSuspended {
		s.logger.Info("consumption rejected for suspended workspace", "workspace_id", workspaceID)
		return domain.Deny(domain.CheckCodeSuspended,
			"This workspace is suspended. Contact support to restore access."), true
	}
	return domain.UsageCheckResult{}, false
}
