// Package repository implements data access against PostgreSQL.
//
// All repositories operate through the DBTX interface so the same query code
// runs against the pooled connection or inside a transaction obtained via
// Store.WithTx.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a point read matches no rows.
var ErrNotFound = errors.New("repository: not found")

// ErrLimitExceeded is returned by guarded consumption writes when the
// conditional update matched no rows because the limit would be exceeded.
var ErrLimitExceeded = errors.New("repository: limit exceeded")

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store bundles all repositories over a single DBTX.
type Store struct {
	conn *sql.DB

	Workspaces *WorkspaceRepo
	Campaigns  *CampaignRepo
	Contacts   *ContactRepo
	Segments   *SegmentRepo
	Jobs       *JobRepo
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		conn:       db,
		Workspaces: &WorkspaceRepo{db: db},
		Campaigns:  &CampaignRepo{db: db},
		Contacts:   &ContactRepo{db: db},
		Segments:   &SegmentRepo{db: db},
		Jobs:       &JobRepo{db: db},
	}
}

// WithTx returns a Store whose repositories execute inside the given
// transaction. The caller owns commit/rollback.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{
		conn:       s.conn,
		Workspaces: &WorkspaceRepo{db: tx},
		Campaigns:  &CampaignRepo{db: tx},
		Contacts:   &ContactRepo{db: tx},
		Segments:   &SegmentRepo{db: tx},
		Jobs:       &JobRepo{db: tx},
	}
}

// DB exposes the underlying pool for transaction management.
func (s *Store) DB() *sql.DB {
	return s.conn
}
