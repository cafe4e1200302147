package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
)

// ContactRepo implements contact persistence.
type ContactRepo struct{ db DBTX }

const contactColumns = `id, workspace_id, email, first_name, last_name, company,
	engagement_score, last_opened_at, subscribed, created_at, updated_at`

func scanContact(scan func(...interface{}) error) (*domain.Contact, error) {
	var c domain.Contact
	var lastOpened sql.NullTime
	err := scan(
		&c.ID, &c.WorkspaceID, &c.Email, &c.FirstName, &c.LastName, &c.Company,
		&c.EngagementScore, &lastOpened, &c.Subscribed, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	if lastOpened.Valid {
		c.LastOpenedAt = &lastOpened.Time
	}
	return &c, nil
}

// Create inserts a contact. A duplicate email within the workspace surfaces
// as a unique constraint violation from the driver.
func (r *ContactRepo) Create(ctx context.Context, params domain.CreateContactParams) (*domain.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (workspace_id, email, first_name, last_name, company)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+contactColumns,
		params.WorkspaceID, params.Email, params.FirstName, params.LastName, params.Company)
	return scanContact(row.Scan)
}

// Get returns a single contact scoped to its workspace.
func (r *ContactRepo) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Contact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID)
	return scanContact(row.Scan)
}

// List returns contacts for a workspace ordered by creation time.
func (r *ContactRepo) List(ctx context.Context, params domain.ListContactsParams) ([]domain.Contact, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, params.WorkspaceID, limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Delete removes a contact.
func (r *ContactRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return requireRow(res)
}

// ListByCriteria returns the IDs of contacts matching segmentation criteria.
// ActiveWithin of zero means no recency constraint.
func (r *ContactRepo) ListByCriteria(ctx context.Context, workspaceID uuid.UUID, criteria domain.SegmentCriteria) ([]uuid.UUID, error) {
	q := `
		SELECT id FROM contacts
		WHERE workspace_id = $1
		  AND engagement_score >= $2
		  AND engagement_score <= $3`
	args := []interface{}{workspaceID, criteria.MinEngagement, criteria.MaxEngagement}
	if criteria.SubscribedOnly {
		q += ` AND subscribed = true`
	}
	if criteria.ActiveWithin > 0 {
		q += fmt.Sprintf(` AND last_opened_at >= now() - ($%d || ' days')::interval`, len(args)+1)
		args = append(args, criteria.ActiveWithin)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts by criteria: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListBySegment returns the subscribed members of a segment, for campaign sends.
func (r *ContactRepo) ListBySegment(ctx context.Context, segmentID uuid.UUID) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixedContactColumns("c")+`
		FROM contacts c
		JOIN segment_members m ON m.contact_id = c.id
		WHERE m.segment_id = $1 AND c.subscribed = true
		ORDER BY c.email
	`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("list contacts by segment: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func prefixedContactColumns(alias string) string {
	return alias + `.id, ` + alias + `.workspace_id, ` + alias + `.email, ` +
		alias + `.first_name, ` + alias + `.last_name, ` + alias + `.company, ` +
		alias + `.engagement_score, ` + alias + `.last_opened_at, ` + alias + `.subscribed, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
