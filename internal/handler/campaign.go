package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/service"
)

// =============================================================================
// Campaign Handler
// =============================================================================

// CampaignHandler serves the campaign endpoints.
type CampaignHandler struct {
	campaigns service.CampaignService
	logger    *slog.Logger
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(campaigns service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		logger:    logger,
	}
}

type createCampaignRequest struct {
	Name         string            `json:"name"`
	Subject      string            `json:"subject"`
	FromName     string            `json:"from_name"`
	FromEmail    string            `json:"from_email"`
	HTMLContent  string            `json:"html_content"`
	SegmentID    *uuid.UUID        `json:"segment_id"`
	SegmentCount int               `json:"segment_count"`
	Steps        []campaignStepReq `json:"steps"`
}

type campaignStepReq struct {
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	DelayHours  int    `json:"delay_hours"`
}

type campaignResponse struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Subject      string                `json:"subject"`
	FromName     string                `json:"from_name"`
	FromEmail    string                `json:"from_email"`
	HTMLContent  string                `json:"html_content"`
	Status       domain.CampaignStatus `json:"status"`
	SegmentID    *uuid.UUID            `json:"segment_id"`
	SegmentCount int                   `json:"segment_count"`
	SentCount    int                   `json:"sent_count"`
	Steps        []campaignStepResp    `json:"steps,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

type campaignStepResp struct {
	ID          uuid.UUID `json:"id"`
	Position    int       `json:"position"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"html_content"`
	DelayHours  int       `json:"delay_hours"`
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	resp := campaignResponse{
		ID:           c.ID,
		Name:         c.Name,
		Subject:      c.Subject,
		FromName:     c.FromName,
		FromEmail:    c.FromEmail,
		HTMLContent:  c.HTMLContent,
		Status:       c.Status,
		SegmentID:    c.SegmentID,
		SegmentCount: c.SegmentCount,
		SentCount:    c.SentCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for _, step := range c.Steps {
		resp.Steps = append(resp.Steps, campaignStepResp{
			ID:          step.ID,
			Position:    step.Position,
			Subject:     step.Subject,
			HTMLContent: step.HTMLContent,
			DelayHours:  step.DelayHours,
		})
	}
	return resp
}

// Create handles POST /api/campaigns.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("campaign.create", "invalid request body"))
		return
	}

	params := domain.CreateCampaignParams{
		WorkspaceID:  workspace.ID,
		OwnerID:      workspace.ID,
		Name:         req.Name,
		Subject:      req.Subject,
		FromName:     req.FromName,
		FromEmail:    req.FromEmail,
		HTMLContent:  req.HTMLContent,
		SegmentID:    req.SegmentID,
		SegmentCount: req.SegmentCount,
	}
	for _, step := range req.Steps {
		params.Steps = append(params.Steps, domain.CreateStepParams{
			Subject:     step.Subject,
			HTMLContent: step.HTMLContent,
			DelayHours:  step.DelayHours,
		})
	}

	campaign, err := h.campaigns.Create(r.Context(), params)
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, toCampaignResponse(campaign))
}

// Get handles GET /api/campaigns/{id}.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("campaign.get", "invalid campaign ID"))
		return
	}

	campaign, err := h.campaigns.Get(r.Context(), workspace.ID, id)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, toCampaignResponse(campaign))
}

// List handles GET /api/campaigns.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	params := domain.ListCampaignsParams{
		WorkspaceID: workspace.ID,
		Status:      domain.CampaignStatus(r.URL.Query().Get("status")),
		Limit:       queryInt(r, "limit", 50),
		Offset:      queryInt(r, "offset", 0),
	}

	campaigns, total, err := h.campaigns.List(r.Context(), params)
	if err != nil {
		Error(w, r, err)
		return
	}

	items := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		items = append(items, toCampaignResponse(&campaigns[i]))
	}

	OK(w, map[string]interface{}{
		"campaigns": items,
		"total":     total,
	})
}

type updateCampaignRequest struct {
	Name        *string `json:"name"`
	Subject     *string `json:"subject"`
	FromName    *string `json:"from_name"`
	FromEmail   *string `json:"from_email"`
	HTMLContent *string `json:"html_content"`
}

// Update handles PATCH /api/campaigns/{id}.
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("campaign.update", "invalid campaign ID"))
		return
	}

	var req updateCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("campaign.update", "invalid request body"))
		return
	}

	err = h.campaigns.Update(r.Context(), domain.UpdateCampaignParams{
		ID:          id,
		WorkspaceID: workspace.ID,
		Name:        req.Name,
		Subject:     req.Subject,
		FromName:    req.FromName,
		FromEmail:   req.FromEmail,
		HTMLContent: req.HTMLContent,
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"updated": true})
}

// Delete handles DELETE /api/campaigns/{id}.
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("campaign.delete", "invalid campaign ID"))
		return
	}

	if err := h.campaigns.Delete(r.Context(), workspace.ID, id); err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"deleted": true})
}

// Schedule handles POST /api/campaigns/{id}/schedule.
func (h *CampaignHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("campaign.schedule", "invalid campaign ID"))
		return
	}

	if err := h.campaigns.Schedule(r.Context(), workspace.ID, id); err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"scheduled": true})
}
