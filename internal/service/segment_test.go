package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/faxingberling1/mailward/internal/ai"
	"github.com/faxingberling1/mailward/internal/ai/mock"
	"github.com/faxingberling1/mailward/internal/cache"
	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/repository"
)

func newSegmentFixture(t *testing.T) (SegmentService, sqlmock.Sqlmock, *mock.Provider) {
	t.Helper()
	db, dbmock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	segmentCache := cache.NewSegmentCache(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)

	store := repository.NewStore(db)
	usage := NewUsageService(store, discardLogger())
	provider := mock.New(discardLogger())
	svc := NewSegmentService(store, usage, provider, segmentCache, discardLogger())
	return svc, dbmock, provider
}

func segmentRow(id, wsID uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "name", "description", "criteria",
		"contact_count", "generated_by", "refreshed_at", "created_at", "updated_at",
	}).AddRow(id, wsID, "Engaged", "highly engaged subscribers",
		[]byte(`{}`), 0, "ai", nil, now, now)
}

func expectSegmentPersist(dbmock sqlmock.Sqlmock, segID, wsID uuid.UUID, memberIDs []uuid.UUID, consumesCredit bool) {
	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`INSERT INTO segments`).
		WillReturnRows(segmentRow(segID, wsID))
	dbmock.ExpectExec(`UPDATE segments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectExec(`DELETE FROM segment_members`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for range memberIDs {
		dbmock.ExpectExec(`INSERT INTO segment_members`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	if consumesCredit {
		dbmock.ExpectExec(`UPDATE workspaces`).
			WithArgs(wsID, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	dbmock.ExpectCommit()
}

// First generation for a description calls the provider and spends one
// AI credit.
func TestGenerateSegment_ConsumesCredit(t *testing.T) {
	svc, dbmock, provider := newSegmentFixture(t)
	wsID, segID := uuid.New(), uuid.New()
	member := uuid.New()

	// AI credit check
	dbmock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("starter", "healthy", 10, 0))

	// Criteria evaluation
	dbmock.ExpectQuery(`SELECT id FROM contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(member))

	expectSegmentPersist(dbmock, segID, wsID, []uuid.UUID{member}, true)

	segment, err := svc.Generate(context.Background(), GenerateSegmentParams{
		WorkspaceID: wsID,
		Name:        "Engaged",
		Description: "highly engaged subscribers",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider.GenerateCalls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.GenerateCalls)
	}
	if segment.ContactCount != 1 {
		t.Errorf("contact count = %d, want 1", segment.ContactCount)
	}
	if err := dbmock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A repeated description is served from cache: no provider call, no credit
// check, no consumption.
func TestGenerateSegment_CacheHitSkipsCredit(t *testing.T) {
	svc, dbmock, provider := newSegmentFixture(t)
	wsID := uuid.New()

	// Seed the cache with a first generation.
	firstSeg := uuid.New()
	dbmock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("starter", "healthy", 0, 0))
	dbmock.ExpectQuery(`SELECT id FROM contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectSegmentPersist(dbmock, firstSeg, wsID, nil, true)

	params := GenerateSegmentParams{
		WorkspaceID: wsID,
		Name:        "Engaged",
		Description: "highly engaged subscribers",
	}
	if _, err := svc.Generate(context.Background(), params); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	// Second run: straight to contact evaluation, no snapshot read and no
	// AI-credit consumption.
	secondSeg := uuid.New()
	dbmock.ExpectQuery(`SELECT id FROM contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectSegmentPersist(dbmock, secondSeg, wsID, nil, false)

	params.Name = "Engaged copy"
	if _, err := svc.Generate(context.Background(), params); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if provider.GenerateCalls != 1 {
		t.Errorf("provider calls = %d, want 1 (second call should hit cache)", provider.GenerateCalls)
	}
	if err := dbmock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// Exhausted AI credits deny generation before the provider is called.
func TestGenerateSegment_CreditLimitDenied(t *testing.T) {
	svc, dbmock, provider := newSegmentFixture(t)
	wsID := uuid.New()

	// Starter allows 100 AI credits and all are used.
	dbmock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("starter", "healthy", 100, 0))

	_, err := svc.Generate(context.Background(), GenerateSegmentParams{
		WorkspaceID: wsID,
		Name:        "Engaged",
		Description: "dormant contacts",
	})
	if domain.ErrorCode(err) != domain.ELIMIT {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.ELIMIT)
	}
	if provider.GenerateCalls != 0 {
		t.Errorf("provider called %d times on denial, want 0", provider.GenerateCalls)
	}
	if err := dbmock.ExpectationsWereMet(); err != nil {
		t.Errorf("storage touched on denial: %v", err)
	}
}

// Unparseable model output falls back to the default criteria instead of
// failing the request.
func TestGenerateSegment_UnparseableCriteriaFallsBack(t *testing.T) {
	svc, dbmock, provider := newSegmentFixture(t)
	wsID, segID := uuid.New(), uuid.New()

	provider.GenerateResponse = &ai.GenerateResult{
		CriteriaJSON: []byte(`these are not the criteria you are looking for`),
	}

	dbmock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 0, 0))
	dbmock.ExpectQuery(`SELECT id FROM contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectSegmentPersist(dbmock, segID, wsID, nil, true)

	if _, err := svc.Generate(context.Background(), GenerateSegmentParams{
		WorkspaceID: wsID,
		Name:        "Odd",
		Description: "everyone, loosely speaking",
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := dbmock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
