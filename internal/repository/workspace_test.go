package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
)

// ============================================================================
// Consumption writes
// ============================================================================

func TestConsumeEmailCredits(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(id, 500).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	if err := store.Workspaces.ConsumeEmailCredits(context.Background(), id, 500); err != nil {
		t.Fatalf("ConsumeEmailCredits: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConsumeEmailCredits_DeletedWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(id, 100).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	err = store.Workspaces.ConsumeEmailCredits(context.Background(), id, 100)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted workspace, got %v", err)
	}
}

func TestConsumeEmailCreditsGuarded_OverLimit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	// Conditional update matches no rows when the remaining balance cannot
	// cover the draw-down.
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(id, 1000).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	err = store.Workspaces.ConsumeEmailCreditsGuarded(context.Background(), id, 1000)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestConsumeEmailCreditsGuarded_WithinLimit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(id, 1000).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	if err := store.Workspaces.ConsumeEmailCreditsGuarded(context.Background(), id, 1000); err != nil {
		t.Fatalf("ConsumeEmailCreditsGuarded: %v", err)
	}
}

func TestResetLimits(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	limits := domain.GetTierLimits(domain.PlanStarter)
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(id, limits.AICreditsPerMonth, limits.EmailsPerMonth).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	if err := store.Workspaces.ResetLimits(context.Background(), id, limits); err != nil {
		t.Fatalf("ResetLimits: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ============================================================================
// Snapshot reads
// ============================================================================

func TestGetSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	rows := sqlmock.NewRows([]string{
		"plan", "health_status", "deleted_at", "total_ai_used", "total_emails_sent",
		"ai_credits_remaining", "email_limit_remaining",
	}).AddRow("starter", "healthy", nil, 12, 9500, 88, 500)

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(id).
		WillReturnRows(rows)

	store := NewStore(db)
	snap, err := store.Workspaces.GetSnapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Plan != domain.PlanStarter {
		t.Errorf("plan = %q, want starter", snap.Plan)
	}
	if snap.TotalEmailsSent != 9500 {
		t.Errorf("total emails sent = %d, want 9500", snap.TotalEmailsSent)
	}
	if snap.Deleted {
		t.Error("snapshot should not be marked deleted")
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"plan"}))

	store := NewStore(db)
	_, err = store.Workspaces.GetSnapshot(context.Background(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
