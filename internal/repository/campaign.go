package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
)

// CampaignRepo implements campaign persistence.
type CampaignRepo struct{ db DBTX }

const campaignColumns = `id, workspace_id, owner_id, name, subject, from_name,
	from_email, html_content, status, segment_id, segment_count, sent_count,
	created_at, updated_at`

func scanCampaign(scan func(...interface{}) error) (*domain.Campaign, error) {
	var c domain.Campaign
	var segmentID uuid.NullUUID
	err := scan(
		&c.ID, &c.WorkspaceID, &c.OwnerID, &c.Name, &c.Subject, &c.FromName,
		&c.FromEmail, &c.HTMLContent, &c.Status, &segmentID, &c.SegmentCount,
		&c.SentCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	if segmentID.Valid {
		c.SegmentID = &segmentID.UUID
	}
	return &c, nil
}

// Create inserts a campaign and its sequence steps. Callers gating the
// insert on a quota check run this through Store.WithTx so the insert and
// the credit consumption commit or roll back together.
func (r *CampaignRepo) Create(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error) {
	var segmentID uuid.NullUUID
	if params.SegmentID != nil {
		segmentID = uuid.NullUUID{UUID: *params.SegmentID, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (workspace_id, owner_id, name, subject, from_name,
		                       from_email, html_content, status, segment_id, segment_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+campaignColumns,
		params.WorkspaceID, params.OwnerID, params.Name, params.Subject, params.FromName,
		params.FromEmail, params.HTMLContent, domain.CampaignStatusDraft, segmentID, params.SegmentCount)

	c, err := scanCampaign(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}

	for i, step := range params.Steps {
		var s domain.CampaignStep
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO campaign_steps (campaign_id, position, subject, html_content, delay_hours)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, campaign_id, position, subject, html_content, delay_hours
		`, c.ID, i+1, step.Subject, step.HTMLContent, step.DelayHours).Scan(
			&s.ID, &s.CampaignID, &s.Position, &s.Subject, &s.HTMLContent, &s.DelayHours,
		)
		if err != nil {
			return nil, fmt.Errorf("insert campaign step %d: %w", i+1, err)
		}
		c.Steps = append(c.Steps, s)
	}

	return c, nil
}

// CountByOwner returns the number of campaigns the principal owns,
// used by the workflow-count limit check.
func (r *CampaignRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count campaigns by owner: %w", err)
	}
	return count, nil
}

// Get returns a single campaign scoped to its workspace.
func (r *CampaignRepo) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID)
	c, err := scanCampaign(row.Scan)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, position, subject, html_content, delay_hours
		FROM campaign_steps WHERE campaign_id = $1 ORDER BY position
	`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list campaign steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.CampaignStep
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.Position, &s.Subject, &s.HTMLContent, &s.DelayHours); err != nil {
			return nil, fmt.Errorf("scan campaign step: %w", err)
		}
		c.Steps = append(c.Steps, s)
	}
	return c, rows.Err()
}

// List returns campaigns for a workspace, newest first.
func (r *CampaignRepo) List(ctx context.Context, params domain.ListCampaignsParams) ([]domain.Campaign, int64, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns WHERE workspace_id = $1`
	countArgs := []interface{}{params.WorkspaceID}
	if params.Status != "" {
		countQ += ` AND status = $2`
		countArgs = append(countArgs, params.Status)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE workspace_id = $1`
	args := []interface{}{params.WorkspaceID}
	idx := 2
	if params.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, params.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// Update applies the non-nil fields of params to a draft campaign.
func (r *CampaignRepo) Update(ctx context.Context, params domain.UpdateCampaignParams) error {
	q := `UPDATE campaigns SET updated_at = now()`
	args := []interface{}{params.ID, params.WorkspaceID}
	idx := 3

	appendSet := func(column string, value interface{}) {
		q += fmt.Sprintf(", %s = $%d", column, idx)
		args = append(args, value)
		idx++
	}
	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.Subject != nil {
		appendSet("subject", *params.Subject)
	}
	if params.FromName != nil {
		appendSet("from_name", *params.FromName)
	}
	if params.FromEmail != nil {
		appendSet("from_email", *params.FromEmail)
	}
	if params.HTMLContent != nil {
		appendSet("html_content", *params.HTMLContent)
	}

	q += ` WHERE id = $1 AND workspace_id = $2 AND status IN ('draft', 'scheduled')`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(res)
}

// Delete removes a draft campaign. Steps cascade at the database level.
func (r *CampaignRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND workspace_id = $2 AND status = 'draft'`,
		id, workspaceID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireRow(res)
}

// UpdateStatus transitions a campaign's lifecycle state.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, workspaceID, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $3, updated_at = now() WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID, status)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return requireRow(res)
}

// AddSentCount records delivered volume after a send run.
func (r *CampaignRepo) AddSentCount(ctx context.Context, id uuid.UUID, n int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET sent_count = sent_count + $2, updated_at = now() WHERE id = $1`,
		id, n)
	if err != nil {
		return fmt.Errorf("add sent count: %w", err)
	}
	return requireRow(res)
}
