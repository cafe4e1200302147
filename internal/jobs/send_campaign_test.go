package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faxingberling1/mailward/internal/email"
	"github.com/faxingberling1/mailward/internal/repository"
	"github.com/faxingberling1/mailward/internal/worker"
)

// recordingSender captures sent messages and fails addresses on a denylist.
type recordingSender struct {
	sent    []email.Message
	failFor map[string]error
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	if err, ok := s.failFor[msg.To]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newSendFixture(t *testing.T, sender email.Sender) (*SendCampaignHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, dbmock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewSendCampaignHandler(repository.NewStore(db), sender,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, dbmock
}

func campaignRows(id, wsID, segmentID uuid.UUID, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "owner_id", "name", "subject", "from_name",
		"from_email", "html_content", "status", "segment_id", "segment_count",
		"sent_count", "created_at", "updated_at",
	}).AddRow(id, wsID, wsID, "Launch", "We launched!", "Acme",
		"hello@acme.test", "<p>hi</p>", status, segmentID, 2,
		0, time.Now(), time.Now())
}

func contactRows(wsID uuid.UUID, emails ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "workspace_id", "email", "first_name", "last_name", "company",
		"engagement_score", "last_opened_at", "subscribed", "created_at", "updated_at",
	})
	for _, addr := range emails {
		rows.AddRow(uuid.New(), wsID, addr, "", "", "", 50.0, nil, true, time.Now(), time.Now())
	}
	return rows
}

func sendPayload(t *testing.T, campaignID, wsID uuid.UUID) []byte {
	t.Helper()
	payload, err := json.Marshal(worker.SendCampaignPayload{
		CampaignID:  campaignID,
		WorkspaceID: wsID,
	})
	require.NoError(t, err)
	return payload
}

func TestSendCampaign_DeliversToSegment(t *testing.T) {
	sender := &recordingSender{}
	h, dbmock := newSendFixture(t, sender)

	campaignID, wsID, segmentID := uuid.New(), uuid.New(), uuid.New()

	dbmock.ExpectQuery(`SELECT (.+) FROM campaigns WHERE id`).
		WithArgs(campaignID, wsID).
		WillReturnRows(campaignRows(campaignID, wsID, segmentID, "scheduled"))
	dbmock.ExpectQuery(`FROM campaign_steps`).
		WithArgs(campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "position", "subject", "html_content", "delay_hours"}))
	dbmock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(campaignID, wsID, "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectQuery(`JOIN segment_members`).
		WithArgs(segmentID).
		WillReturnRows(contactRows(wsID, "a@test.dev", "b@test.dev"))
	dbmock.ExpectExec(`UPDATE campaigns SET sent_count`).
		WithArgs(campaignID, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(campaignID, wsID, "sent").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := h.Handle(context.Background(), sendPayload(t, campaignID, wsID))
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "a@test.dev", sender.sent[0].To)
	assert.Equal(t, "We launched!", sender.sent[0].Subject)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestSendCampaign_PartialFailureStillSent(t *testing.T) {
	sender := &recordingSender{failFor: map[string]error{
		"bounce@test.dev": errors.New("mailbox unavailable"),
	}}
	h, dbmock := newSendFixture(t, sender)

	campaignID, wsID, segmentID := uuid.New(), uuid.New(), uuid.New()

	dbmock.ExpectQuery(`SELECT (.+) FROM campaigns WHERE id`).
		WithArgs(campaignID, wsID).
		WillReturnRows(campaignRows(campaignID, wsID, segmentID, "scheduled"))
	dbmock.ExpectQuery(`FROM campaign_steps`).
		WithArgs(campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "position", "subject", "html_content", "delay_hours"}))
	dbmock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(campaignID, wsID, "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectQuery(`JOIN segment_members`).
		WithArgs(segmentID).
		WillReturnRows(contactRows(wsID, "ok@test.dev", "bounce@test.dev"))
	dbmock.ExpectExec(`UPDATE campaigns SET sent_count`).
		WithArgs(campaignID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(campaignID, wsID, "sent").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := h.Handle(context.Background(), sendPayload(t, campaignID, wsID))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestSendCampaign_MissingCampaignIsPermanent(t *testing.T) {
	h, dbmock := newSendFixture(t, &recordingSender{})

	campaignID, wsID := uuid.New(), uuid.New()
	dbmock.ExpectQuery(`SELECT (.+) FROM campaigns WHERE id`).
		WithArgs(campaignID, wsID).
		WillReturnError(sql.ErrNoRows)

	err := h.Handle(context.Background(), sendPayload(t, campaignID, wsID))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestSendCampaign_MalformedPayloadIsPermanent(t *testing.T) {
	h, _ := newSendFixture(t, &recordingSender{})

	err := h.Handle(context.Background(), []byte(`{broken`))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestSendCampaign_TerminalStatusSkipped(t *testing.T) {
	sender := &recordingSender{}
	h, dbmock := newSendFixture(t, sender)

	campaignID, wsID := uuid.New(), uuid.New()
	dbmock.ExpectQuery(`SELECT (.+) FROM campaigns WHERE id`).
		WithArgs(campaignID, wsID).
		WillReturnRows(campaignRows(campaignID, wsID, uuid.New(), "sent"))
	dbmock.ExpectQuery(`FROM campaign_steps`).
		WithArgs(campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "position", "subject", "html_content", "delay_hours"}))

	err := h.Handle(context.Background(), sendPayload(t, campaignID, wsID))
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}
