// Package jobs contains the background job handlers executed by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/email"
	"github.com/faxingberling1/mailward/internal/metrics"
	"github.com/faxingberling1/mailward/internal/repository"
	"github.com/faxingberling1/mailward/internal/worker"
)

// SendCampaignHandler processes campaign send jobs: it delivers the campaign
// to every contact in its segment and records progress on the campaign row.
//
// The email credits for the send were already consumed when the campaign was
// created; this handler performs no quota checks.
type SendCampaignHandler struct {
	store  *repository.Store
	sender email.Sender
	logger *slog.Logger
}

// NewSendCampaignHandler creates a new handler for campaign send jobs.
func NewSendCampaignHandler(store *repository.Store, sender email.Sender, logger *slog.Logger) *SendCampaignHandler {
	return &SendCampaignHandler{
		store:  store,
		sender: sender,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *SendCampaignHandler) Type() string {
	return worker.JobTypeSendCampaign
}

// Handle executes the campaign send job.
func (h *SendCampaignHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendCampaignPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	campaign, err := h.store.Campaigns.Get(ctx, p.WorkspaceID, p.CampaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return worker.NewPermanentError(fmt.Errorf("campaign not found: %s", p.CampaignID))
	}
	if err != nil {
		return fmt.Errorf("fetch campaign: %w", err)
	}

	if campaign.Status != domain.CampaignStatusScheduled && campaign.Status != domain.CampaignStatusSending {
		// Already sent, or reverted to draft since scheduling. Nothing to do.
		h.logger.Info("skipping campaign in terminal status",
			"campaign_id", campaign.ID, "status", campaign.Status)
		return nil
	}
	if campaign.SegmentID == nil {
		return worker.NewPermanentError(fmt.Errorf("campaign %s has no segment", campaign.ID))
	}

	if err := h.store.Campaigns.UpdateStatus(ctx, p.WorkspaceID, campaign.ID, domain.CampaignStatusSending); err != nil {
		return fmt.Errorf("mark campaign sending: %w", err)
	}

	contacts, err := h.store.Contacts.ListBySegment(ctx, *campaign.SegmentID)
	if err != nil {
		return fmt.Errorf("load segment contacts: %w", err)
	}

	sent, failed := h.deliver(ctx, campaign, contacts)

	if sent > 0 {
		if err := h.store.Campaigns.AddSentCount(ctx, campaign.ID, sent); err != nil {
			h.logger.Error("failed to record sent count",
				"campaign_id", campaign.ID, "error", err)
		}
	}

	finalStatus := domain.CampaignStatusSent
	if sent == 0 && failed > 0 {
		finalStatus = domain.CampaignStatusFailed
	}
	if err := h.store.Campaigns.UpdateStatus(ctx, p.WorkspaceID, campaign.ID, finalStatus); err != nil {
		return fmt.Errorf("mark campaign %s: %w", finalStatus, err)
	}

	h.logger.Info("campaign send finished",
		"campaign_id", campaign.ID,
		"sent", sent,
		"failed", failed,
		"status", finalStatus,
	)

	if finalStatus == domain.CampaignStatusFailed {
		// Retrying a fully-failed send is safe: nothing was delivered.
		return fmt.Errorf("all %d deliveries failed", failed)
	}
	return nil
}

// deliver sends the campaign to each contact, continuing past individual
// failures.
func (h *SendCampaignHandler) deliver(ctx context.Context, campaign *domain.Campaign, contacts []domain.Contact) (sent, failed int) {
	for i := range contacts {
		contact := &contacts[i]
		if ctx.Err() != nil {
			h.logger.Warn("send interrupted",
				"campaign_id", campaign.ID, "sent", sent, "remaining", len(contacts)-i)
			return sent, failed
		}

		msg := email.Message{
			To:        contact.Email,
			FromName:  campaign.FromName,
			FromEmail: campaign.FromEmail,
			Subject:   campaign.Subject,
			HTMLBody:  campaign.HTMLContent,
		}
		if err := h.sender.Send(ctx, msg); err != nil {
			failed++
			h.logger.Warn("delivery failed",
				"campaign_id", campaign.ID, "contact_id", contact.ID, "error", err)
			continue
		}
		sent++
		metrics.EmailsSent.Inc()
	}
	return sent, failed
}
