package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
)

// SegmentRepo implements segment persistence.
type SegmentRepo struct{ db DBTX }

const segmentColumns = `id, workspace_id, name, description, criteria,
	contact_count, generated_by, refreshed_at, created_at, updated_at`

func scanSegment(scan func(...interface{}) error) (*domain.Segment, error) {
	var s domain.Segment
	var refreshedAt sql.NullTime
	var criteria []byte
	err := scan(
		&s.ID, &s.WorkspaceID, &s.Name, &s.Description, &criteria,
		&s.ContactCount, &s.GeneratedBy, &refreshedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan segment: %w", err)
	}
	s.Criteria = json.RawMessage(criteria)
	if refreshedAt.Valid {
		s.RefreshedAt = &refreshedAt.Time
	}
	return &s, nil
}

// Create inserts a segment.
func (r *SegmentRepo) Create(ctx context.Context, workspaceID uuid.UUID, name, description string, criteria json.RawMessage, source domain.SegmentSource) (*domain.Segment, error) {
	if len(criteria) == 0 {
		criteria = json.RawMessage(`{}`)
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO segments (workspace_id, name, description, criteria, generated_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+segmentColumns,
		workspaceID, name, description, []byte(criteria), source)
	return scanSegment(row.Scan)
}

// Get returns a single segment scoped to its workspace.
func (r *SegmentRepo) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Segment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID)
	return scanSegment(row.Scan)
}

// List returns all segments for a workspace.
func (r *SegmentRepo) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE workspace_id = $1 ORDER BY created_at DESC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []domain.Segment
	for rows.Next() {
		s, err := scanSegment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SetRefreshed stores the criteria and membership produced by a refresh.
// Membership replacement and the count update run in the caller's transaction.
func (r *SegmentRepo) SetRefreshed(ctx context.Context, id uuid.UUID, criteria json.RawMessage, source domain.SegmentSource, contactIDs []uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE segments
		SET criteria = $2, generated_by = $3, contact_count = $4,
		    refreshed_at = now(), updated_at = now()
		WHERE id = $1
	`, id, []byte(criteria), source, len(contactIDs))
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM segment_members WHERE segment_id = $1`, id); err != nil {
		return fmt.Errorf("clear segment members: %w", err)
	}
	for _, contactID := range contactIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO segment_members (segment_id, contact_id) VALUES ($1, $2)`,
			id, contactID); err != nil {
			return fmt.Errorf("insert segment member: %w", err)
		}
	}
	return nil
}

// Delete removes a segment; membership rows cascade.
func (r *SegmentRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM segments WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	return requireRow(res)
}
