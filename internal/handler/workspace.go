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
// Workspace Handler (admin)
// =============================================================================

// WorkspaceHandler serves the administrative workspace endpoints. All routes
// are mounted behind RequireAdmin.
type WorkspaceHandler struct {
	workspaces service.WorkspaceService
	logger     *slog.Logger
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(workspaces service.WorkspaceService, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		logger:     logger,
	}
}

type createWorkspaceRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan"`
}

type workspaceResponse struct {
	ID                 uuid.UUID                 `json:"id"`
	Name               string                    `json:"name"`
	Plan               domain.Plan               `json:"plan"`
	SubscriptionStatus domain.SubscriptionStatus `json:"subscription_status"`
	HealthStatus       domain.HealthStatus       `json:"health_status"`
	AICreditsRemaining int                       `json:"ai_credits_remaining"`
	EmailLimitRemain   int                       `json:"email_limit_remaining"`
	TotalAIUsed        int64                     `json:"total_ai_used"`
	TotalEmailsSent    int64                     `json:"total_emails_sent"`
	CreatedAt          time.Time                 `json:"created_at"`
}

func toWorkspaceResponse(ws *domain.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:                 ws.ID,
		Name:               ws.Name,
		Plan:               ws.Plan,
		SubscriptionStatus: ws.SubscriptionStatus,
		HealthStatus:       ws.HealthStatus,
		AICreditsRemaining: ws.AICreditsRemaining,
		EmailLimitRemain:   ws.EmailLimitRemaining,
		TotalAIUsed:        ws.TotalAIUsed,
		TotalEmailsSent:    ws.TotalEmailsSent,
		CreatedAt:          ws.CreatedAt,
	}
}

// Create handles POST /api/admin/workspaces.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("workspace.create", "invalid request body"))
		return
	}

	workspace, err := h.workspaces.Create(r.Context(), domain.CreateWorkspaceParams{
		Name: req.Name,
		Plan: domain.NormalizePlan(domain.Plan(req.Plan)),
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, toWorkspaceResponse(workspace))
}

// Get handles GET /api/admin/workspaces/{id}.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.get", "invalid workspace ID"))
		return
	}

	workspace, err := h.workspaces.Get(r.Context(), id)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, toWorkspaceResponse(workspace))
}

// ResetLimits handles POST /api/admin/workspaces/{id}/reset-limits. This is
// the administrative override that zeroes the cumulative counters.
func (h *WorkspaceHandler) ResetLimits(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.reset_limits", "invalid workspace ID"))
		return
	}

	if err := h.workspaces.ResetLimits(r.Context(), id); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.Info("admin reset limits", "workspace_id", id)
	OK(w, map[string]bool{"reset": true})
}

type addCreditsRequest struct {
	Count int `json:"count"`
}

// AddCredits handles POST /api/admin/workspaces/{id}/credits.
func (h *WorkspaceHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.add_credits", "invalid workspace ID"))
		return
	}

	var req addCreditsRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("workspace.add_credits", "invalid request body"))
		return
	}

	if err := h.workspaces.AddCredits(r.Context(), id, req.Count); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.Info("admin granted credits", "workspace_id", id, "count", req.Count)
	OK(w, map[string]bool{"granted": true})
}

type changePlanRequest struct {
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status"`
	SubscriptionID     string `json:"subscription_id"`
}

// ChangePlan handles PUT /api/admin/workspaces/{id}/plan.
func (h *WorkspaceHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.change_plan", "invalid workspace ID"))
		return
	}

	var req changePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("workspace.change_plan", "invalid request body"))
		return
	}

	status := domain.SubscriptionStatus(req.SubscriptionStatus)
	if status == "" {
		status = domain.SubscriptionStatusActive
	}

	err = h.workspaces.ChangePlan(r.Context(), id, domain.Plan(req.Plan), status, req.SubscriptionID)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"changed": true})
}

// Suspend handles POST /api/admin/workspaces/{id}/suspend.
func (h *WorkspaceHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.suspend", "invalid workspace ID"))
		return
	}

	if err := h.workspaces.Suspend(r.Context(), id); err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"suspended": true})
}

// Reactivate handles POST /api/admin/workspaces/{id}/reactivate.
func (h *WorkspaceHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.reactivate", "invalid workspace ID"))
		return
	}

	if err := h.workspaces.Reactivate(r.Context(), id); err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"reactivated": true})
}

// Delete handles DELETE /api/admin/workspaces/{id}. Workspaces are
// soft-deleted, never hard-deleted.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("workspace.delete", "invalid workspace ID"))
		return
	}

	if err := h.workspaces.Delete(r.Context(), id); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.Warn("admin deleted workspace", "workspace_id", id)
	OK(w, map[string]bool{"deleted": true})
}
