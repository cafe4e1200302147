package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/faxingberling1/mailward/internal/billing"
	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/service"
)

// maxWebhookBody bounds the Stripe webhook payload size.
const maxWebhookBody = 64 << 10

// WebhookHandler processes Stripe billing webhooks. Plan changes flow from
// Stripe into the workspace through here; the new plan's balances take
// effect immediately.
type WebhookHandler struct {
	billing    billing.Service
	workspaces service.WorkspaceService
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billingService billing.Service, workspaces service.WorkspaceService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:    billingService,
		workspaces: workspaces,
		logger:     logger,
	}
}

// HandleStripe handles POST /webhooks/stripe. Unhandled event types are
// acknowledged so Stripe does not retry them.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	const op = "webhook.stripe"

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		Error(w, r, domain.Invalid(op, "failed to read payload"))
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		Error(w, r, domain.Unauthorized(op, "invalid webhook signature"))
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChange(r, op, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(r, op, event)
	default:
		h.logger.Debug("ignoring webhook event", "type", event.Type)
	}
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"received": true})
}

// handleSubscriptionChange maps the subscription's price to a plan and
// applies it to the owning workspace.
func (h *WebhookHandler) handleSubscriptionChange(r *http.Request, op string, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Invalid(op, "malformed subscription payload")
	}

	workspaceID, err := webhookWorkspaceID(sub.Metadata)
	if err != nil {
		h.logger.Warn("subscription without workspace metadata", "subscription_id", sub.ID)
		return nil // Acknowledge; retrying will not fix missing metadata.
	}

	var priceID string
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	plan := h.billing.PlanForPriceID(priceID)

	h.logger.Info("applying subscription change",
		"workspace_id", workspaceID,
		"plan", plan,
		"subscription_status", sub.Status,
	)
	return h.workspaces.ChangePlan(r.Context(), workspaceID, plan,
		domain.SubscriptionStatus(sub.Status), sub.ID)
}

// handleSubscriptionDeleted drops the workspace back to the free plan.
func (h *WebhookHandler) handleSubscriptionDeleted(r *http.Request, op string, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Invalid(op, "malformed subscription payload")
	}

	workspaceID, err := webhookWorkspaceID(sub.Metadata)
	if err != nil {
		h.logger.Warn("subscription without workspace metadata", "subscription_id", sub.ID)
		return nil
	}

	h.logger.Info("subscription canceled, reverting to free plan", "workspace_id", workspaceID)
	return h.workspaces.ChangePlan(r.Context(), workspaceID, domain.PlanFree,
		domain.SubscriptionStatusCanceled, "")
}

// webhookWorkspaceID extracts the workspace ID from subscription metadata.
func webhookWorkspaceID(metadata map[string]string) (uuid.UUID, error) {
	return uuid.Parse(metadata["workspace_id"])
}
