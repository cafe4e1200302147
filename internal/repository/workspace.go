package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
)

// WorkspaceRepo implements workspace reads and the usage consumption writes.
type WorkspaceRepo struct{ db DBTX }

const workspaceColumns = `id, name, plan, subscription_status, subscription_id,
	stripe_customer_id, health_status, ai_credits_remaining, email_limit_remaining,
	total_ai_used, total_emails_sent, deleted_at, created_at, updated_at`

func (r *WorkspaceRepo) scanWorkspace(row *sql.Row) (*domain.Workspace, error) {
	var w domain.Workspace
	var deletedAt sql.NullTime
	err := row.Scan(
		&w.ID, &w.Name, &w.Plan, &w.SubscriptionStatus, &w.SubscriptionID,
		&w.StripeCustomerID, &w.HealthStatus, &w.AICreditsRemaining, &w.EmailLimitRemaining,
		&w.TotalAIUsed, &w.TotalEmailsSent, &deletedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	if deletedAt.Valid {
		w.DeletedAt = &deletedAt.Time
	}
	return &w, nil
}

// Get returns a workspace by ID, including soft-deleted rows so callers can
// distinguish "deleted" from "never existed".
func (r *WorkspaceRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id)
	return r.scanWorkspace(row)
}

// GetSnapshot returns the usage read model for the evaluator: plan, health,
// cumulative counters, and remaining balances.
func (r *WorkspaceRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.UsageSnapshot, error) {
	var s domain.UsageSnapshot
	var deletedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT plan, health_status, deleted_at, total_ai_used, total_emails_sent,
		       ai_credits_remaining, email_limit_remaining
		FROM workspaces
		WHERE id = $1
	`, id).Scan(
		&s.Plan, &s.HealthStatus, &deletedAt, &s.TotalAIUsed, &s.TotalEmailsSent,
		&s.AICreditsRemaining, &s.EmailLimitRemaining,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get usage snapshot: %w", err)
	}
	s.Deleted = deletedAt.Valid
	return &s, nil
}

// Create inserts a new workspace with its tier's default balances.
func (r *WorkspaceRepo) Create(ctx context.Context, params domain.CreateWorkspaceParams) (*domain.Workspace, error) {
	plan := domain.NormalizePlan(params.Plan)
	limits := domain.GetTierLimits(plan)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO workspaces (name, plan, ai_credits_remaining, email_limit_remaining)
		VALUES ($1, $2, $3, $4)
		RETURNING `+workspaceColumns, params.Name, plan, limits.AICreditsPerMonth, limits.EmailsPerMonth)
	return r.scanWorkspace(row)
}

// ConsumeEmailCredits increments the monotonic sent counter and draws down
// the remaining balance. Must be called inside the same transaction as the
// domain write it is paired with.
func (r *WorkspaceRepo) ConsumeEmailCredits(ctx context.Context, id uuid.UUID, count int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET total_emails_sent = total_emails_sent + $2,
		    email_limit_remaining = GREATEST(email_limit_remaining - $2, 0),
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, count)
	if err != nil {
		return fmt.Errorf("consume email credits: %w", err)
	}
	return requireRow(res)
}

// ConsumeEmailCreditsGuarded is the conditional-write variant: the draw-down
// only applies while the remaining balance covers it, closing the
// check-then-act window in a single statement. Callers that need strict
// enforcement under concurrency use this instead of ConsumeEmailCredits.
func (r *WorkspaceRepo) ConsumeEmailCreditsGuarded(ctx context.Context, id uuid.UUID, count int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET total_emails_sent = total_emails_sent + $2,
		    email_limit_remaining = email_limit_remaining - $2,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND email_limit_remaining >= $2
	`, id, count)
	if err != nil {
		return fmt.Errorf("consume email credits guarded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrLimitExceeded
	}
	return nil
}

// ConsumeAICredits increments the monotonic AI counter and draws down the
// remaining balance.
func (r *WorkspaceRepo) ConsumeAICredits(ctx context.Context, id uuid.UUID, count int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET total_ai_used = total_ai_used + $2,
		    ai_credits_remaining = GREATEST(ai_credits_remaining - $2, 0),
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, count)
	if err != nil {
		return fmt.Errorf("consume ai credits: %w", err)
	}
	return requireRow(res)
}

// ResetLimits is the administrative reset: restores remaining balances to
// the tier defaults and zeroes the cumulative counters. This is the only
// path that decrements the monotonic counters.
func (r *WorkspaceRepo) ResetLimits(ctx context.Context, id uuid.UUID, limits domain.TierLimits) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET ai_credits_remaining = $2,
		    email_limit_remaining = $3,
		    total_ai_used = 0,
		    total_emails_sent = 0,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, limits.AICreditsPerMonth, limits.EmailsPerMonth)
	if err != nil {
		return fmt.Errorf("reset limits: %w", err)
	}
	return requireRow(res)
}

// AddAICredits grants extra AI credits on top of the tier allowance.
func (r *WorkspaceRepo) AddAICredits(ctx context.Context, id uuid.UUID, count int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET ai_credits_remaining = ai_credits_remaining + $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, count)
	if err != nil {
		return fmt.Errorf("add ai credits: %w", err)
	}
	return requireRow(res)
}

// ChangePlan moves a workspace to a new plan and refreshes its remaining
// balances to the new tier's allowances.
func (r *WorkspaceRepo) ChangePlan(ctx context.Context, id uuid.UUID, plan domain.Plan, status domain.SubscriptionStatus, subscriptionID string) error {
	limits := domain.GetTierLimits(plan)
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET plan = $2,
		    subscription_status = $3,
		    subscription_id = $4,
		    ai_credits_remaining = $5,
		    email_limit_remaining = $6,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, domain.NormalizePlan(plan), status, subscriptionID, limits.AICreditsPerMonth, limits.EmailsPerMonth)
	if err != nil {
		return fmt.Errorf("change plan: %w", err)
	}
	return requireRow(res)
}

// SetHealthStatus updates the workspace health state (suspend/reactivate).
func (r *WorkspaceRepo) SetHealthStatus(ctx context.Context, id uuid.UUID, status domain.HealthStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces SET health_status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, status)
	if err != nil {
		return fmt.Errorf("set health status: %w", err)
	}
	return requireRow(res)
}

// SoftDelete marks a workspace deleted. Workspaces are never hard-deleted.
func (r *WorkspaceRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workspaces SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete workspace: %w", err)
	}
	return requireRow(res)
}

// GetByAPIKeyHash resolves an API key hash to its workspace. Returns the
// workspace and whether the key carries admin rights.
func (r *WorkspaceRepo) GetByAPIKeyHash(ctx context.Context, keyHash string) (*domain.Workspace, bool, error) {
	var workspaceID uuid.UUID
	var isAdmin bool
	err := r.db.QueryRowContext(ctx, `
		SELECT workspace_id, is_admin FROM api_keys WHERE key_hash = $1
	`, keyHash).Scan(&workspaceID, &isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup api key: %w", err)
	}

	w, err := r.Get(ctx, workspaceID)
	if err != nil {
		return nil, false, err
	}
	return w, isAdmin, nil
}

// TouchAPIKey records key usage, best effort.
func (r *WorkspaceRepo) TouchAPIKey(ctx context.Context, keyHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE key_hash = $1`, keyHash, at)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
