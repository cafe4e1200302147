// Package service contains the business logic layer.
//
// This file implements the workspace service, including the administrative
// overrides that mutate usage counters outside the normal consumption path.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// WorkspaceService defines workspace lifecycle and administrative operations.
type WorkspaceService interface {
	// Create provisions a workspace with its tier's default balances.
	Create(ctx context.Context, params domain.CreateWorkspaceParams) (*domain.Workspace, error)

	// Get retrieves a workspace by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)

	// ResetLimits restores remaining balances to the tier defaults and
	// zeroes the cumulative counters. This is the only operation that
	// decrements them.
	ResetLimits(ctx context.Context, id uuid.UUID) error

	// AddCredits grants extra AI credits on top of the tier allowance.
	AddCredits(ctx context.Context, id uuid.UUID, count int) error

	// ChangePlan moves the workspace to a new plan and refreshes balances.
	ChangePlan(ctx context.Context, id uuid.UUID, plan domain.Plan, status domain.SubscriptionStatus, subscriptionID string) error

	// Suspend blocks all quota-consuming operations for the workspace.
	Suspend(ctx context.Context, id uuid.UUID) error

	// Reactivate restores a suspended workspace to healthy.
	Reactivate(ctx context.Context, id uuid.UUID) error

	// Delete soft-deletes the workspace. Workspaces are never hard-deleted.
	Delete(ctx context.Context, id uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type workspaceService struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(store *repository.Store, logger *slog.Logger) WorkspaceService {
	return &workspaceService{
		store:  store,
		logger: logger,
	}
}

// Create provisions a new workspace.
func (s *workspaceService) Create(ctx context.Context, params domain.CreateWorkspaceParams) (*domain.Workspace, error) {
	const op = "workspace.create"

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "workspace name is required")
	}

	workspace, err := s.store.Workspaces.Create(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create workspace")
	}

	s.logger.Info("workspace created",
		"workspace_id", workspace.ID,
		"plan", workspace.Plan,
	)
	return workspace, nil
}

// Get retrieves a workspace.
func (s *workspaceService) Get(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	const op = "workspace.get"

	workspace, err := s.store.Workspaces.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(op, "workspace", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get workspace")
	}
	return workspace, nil
}

// ResetLimits performs the administrative counter reset.
func (s *workspaceService) ResetLimits(ctx context.Context, id uuid.UUID) error {
	const op = "workspace.reset_limits"

	workspace, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	limits := domain.GetTierLimits(workspace.Plan)
	if err := s.store.Workspaces.ResetLimits(ctx, id, limits); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound(op, "workspace", id.String())
		}
		return domain.Internal(err, op, "failed to reset limits")
	}

	s.logger.Info("limits reset", "workspace_id", id, "plan", workspace.Plan)
	return nil
}

// AddCredits grants extra AI credits.
func (s *workspaceService) AddCredits(ctx context.Context, id uuid.UUID, count int) error {
	const op = "workspace.add_credits"

	if count <= 0 {
		return domain.Invalid(op, "credit count must be positive")
	}

	err := s.store.Workspaces.AddAICredits(ctx, id, count)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "workspace", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to add credits")
	}

	s.logger.Info("ai credits granted", "workspace_id", id, "count", count)
	return nil
}

// ChangePlan moves the workspace to a new plan.
func (s *workspaceService) ChangePlan(ctx context.Context, id uuid.UUID, plan domain.Plan, status domain.SubscriptionStatus, subscriptionID string) error {
	const op = "workspace.change_plan"

	err := s.store.Workspaces.ChangePlan(ctx, id, plan, status, subscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "workspace", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to change plan")
	}

	s.logger.Info("plan changed",
		"workspace_id", id,
		"plan", domain.NormalizePlan(plan),
		"subscription_status", status,
	)
	return nil
}

// Suspend blocks consumption for the workspace.
func (s *workspaceService) Suspend(ctx context.Context, id uuid.UUID) error {
	const op = "workspace.suspend"

	err := s.store.Workspaces.SetHealthStatus(ctx, id, domain.HealthStatusSuspended)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "workspace", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to suspend workspace")
	}

	s.logger.Warn("workspace suspended", "workspace_id", id)
	return nil
}

// Reactivate restores a suspended workspace.
func (s *workspaceService) Reactivate(ctx context.Context, id uuid.UUID) error {
	const op = "workspace.reactivate"

	err := s.store.Workspaces.SetHealthStatus(ctx, id, domain.HealthStatusHealthy)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "workspace", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to reactivate workspace")
	}

	s.logger.Info("workspace reactivated", "workspace_id", id)
	return nil
}

// Delete soft-deletes the workspace.
func (s *workspaceService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "workspace.delete"

	err := s.store.Workspaces.SoftDelete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "workspace", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to delete workspace")
	}

	s.logger.Warn("workspace soft-deleted", "workspace_id", id)
	return nil
}
