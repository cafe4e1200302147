package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/repository"
)

func newCampaignFixture(t *testing.T) (CampaignService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db)
	usage := NewUsageService(store, discardLogger())
	return NewCampaignService(store, usage, nil, discardLogger()), mock
}

func campaignRow(id, wsID, ownerID uuid.UUID, segmentCount int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "owner_id", "name", "subject", "from_name",
		"from_email", "html_content", "status", "segment_id", "segment_count",
		"sent_count", "created_at", "updated_at",
	}).AddRow(id, wsID, ownerID, "Launch", "Hello", "Acme", "hi@acme.test",
		"<p>hi</p>", "draft", nil, segmentCount, 0, now, now)
}

func createParams(wsID, ownerID uuid.UUID, segmentCount int) domain.CreateCampaignParams {
	return domain.CreateCampaignParams{
		WorkspaceID:  wsID,
		OwnerID:      ownerID,
		Name:         "Launch",
		Subject:      "Hello",
		FromName:     "Acme",
		FromEmail:    "hi@acme.test",
		HTMLContent:  "<p>hi</p>",
		SegmentCount: segmentCount,
	}
}

// Creating a campaign on a plan with ample credits succeeds and consumes
// exactly the segment count in the same transaction as the insert.
func TestCreateCampaign_ConsumesCredits(t *testing.T) {
	svc, mock := newCampaignFixture(t)
	wsID, ownerID, campaignID := uuid.New(), uuid.New(), uuid.New()

	// Workflow-count check
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 0, 1000))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	// Email-volume check
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 0, 1000))

	// Insert and consumption commit together
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO campaigns`).
		WillReturnRows(campaignRow(campaignID, wsID, ownerID, 200))
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(wsID, 200).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	campaign, err := svc.Create(context.Background(), createParams(wsID, ownerID, 200))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if campaign.ID != campaignID {
		t.Errorf("campaign ID = %s, want %s", campaign.ID, campaignID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A denied email-volume check is terminal: no insert, no consumption.
func TestCreateCampaign_DeniedLeavesStorageUntouched(t *testing.T) {
	svc, mock := newCampaignFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("free", "healthy", 0, 1000))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	// Free tier is exhausted: 1000 of 1000 sent, request for 500 more.
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("free", "healthy", 0, 1000))

	_, err := svc.Create(context.Background(), createParams(wsID, ownerID, 500))
	if domain.ErrorCode(err) != domain.ELIMIT {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.ELIMIT)
	}

	// No transaction was opened, so no campaign row and no counter change.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("storage touched on denial: %v", err)
	}
}

// A denied workflow-count check short-circuits before the email check.
func TestCreateCampaign_WorkflowLimitDenied(t *testing.T) {
	svc, mock := newCampaignFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("starter", "healthy", 0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Create(context.Background(), createParams(wsID, ownerID, 100))
	if domain.ErrorCode(err) != domain.ELIMIT {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.ELIMIT)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected extra queries: %v", err)
	}
}

// If the consumption write fails after the insert, the whole transaction
// rolls back: no campaign without its counter update.
func TestCreateCampaign_ConsumptionFailureRollsBack(t *testing.T) {
	svc, mock := newCampaignFixture(t)
	wsID, ownerID, campaignID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 0, 0))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO campaigns`).
		WillReturnRows(campaignRow(campaignID, wsID, ownerID, 300))
	mock.ExpectExec(`UPDATE workspaces`).
		WithArgs(wsID, 300).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), createParams(wsID, ownerID, 300))
	if domain.ErrorCode(err) != domain.EINTERNAL {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.EINTERNAL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A zero-volume campaign passes the email check and skips the consumption
// write entirely.
func TestCreateCampaign_ZeroSegmentCount(t *testing.T) {
	svc, mock := newCampaignFixture(t)
	wsID, ownerID, campaignID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("free", "healthy", 0, 1000))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO campaigns`).
		WillReturnRows(campaignRow(campaignID, wsID, ownerID, 0))
	mock.ExpectCommit()

	if _, err := svc.Create(context.Background(), createParams(wsID, ownerID, 0)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateCampaign_Validation(t *testing.T) {
	svc, _ := newCampaignFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	params := createParams(wsID, ownerID, 10)
	params.Name = "  "
	if _, err := svc.Create(context.Background(), params); domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("blank name: error code = %q, want %q", domain.ErrorCode(err), domain.EINVALID)
	}

	params = createParams(wsID, ownerID, -5)
	if _, err := svc.Create(context.Background(), params); domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("negative segment count: error code = %q, want %q", domain.ErrorCode(err), domain.EINVALID)
	}
}
