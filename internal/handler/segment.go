package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/service"
)

// =============================================================================
// Segment Handler
// =============================================================================

// SegmentHandler serves the segment endpoints, including AI generation.
type SegmentHandler struct {
	segments service.SegmentService
	logger   *slog.Logger
}

// NewSegmentHandler creates a new SegmentHandler.
func NewSegmentHandler(segments service.SegmentService, logger *slog.Logger) *SegmentHandler {
	return &SegmentHandler{
		segments: segments,
		logger:   logger,
	}
}

type generateSegmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createSegmentRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Criteria    domain.SegmentCriteria `json:"criteria"`
}

type segmentResponse struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Criteria     json.RawMessage      `json:"criteria"`
	ContactCount int                  `json:"contact_count"`
	GeneratedBy  domain.SegmentSource `json:"generated_by"`
	RefreshedAt  *time.Time           `json:"refreshed_at"`
	CreatedAt    time.Time            `json:"created_at"`
}

func toSegmentResponse(s *domain.Segment) segmentResponse {
	return segmentResponse{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		Criteria:     s.Criteria,
		ContactCount: s.ContactCount,
		GeneratedBy:  s.GeneratedBy,
		RefreshedAt:  s.RefreshedAt,
		CreatedAt:    s.CreatedAt,
	}
}

// Generate handles POST /api/segments/generate. Consumes one AI credit
// unless the criteria are served from cache.
func (h *SegmentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	var req generateSegmentRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("segment.generate", "invalid request body"))
		return
	}

	segment, err := h.segments.Generate(r.Context(), service.GenerateSegmentParams{
		WorkspaceID: workspace.ID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, toSegmentResponse(segment))
}

// Create handles POST /api/segments with user-authored criteria.
func (h *SegmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	var req createSegmentRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("segment.create", "invalid request body"))
		return
	}

	segment, err := h.segments.CreateManual(r.Context(), workspace.ID, req.Name, req.Description, req.Criteria)
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, toSegmentResponse(segment))
}

// Get handles GET /api/segments/{id}.
func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("segment.get", "invalid segment ID"))
		return
	}

	segment, err := h.segments.Get(r.Context(), workspace.ID, id)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, toSegmentResponse(segment))
}

// List handles GET /api/segments.
func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	segments, err := h.segments.List(r.Context(), workspace.ID)
	if err != nil {
		Error(w, r, err)
		return
	}

	items := make([]segmentResponse, 0, len(segments))
	for i := range segments {
		items = append(items, toSegmentResponse(&segments[i]))
	}

	OK(w, map[string]interface{}{"segments": items})
}

// Refresh handles POST /api/segments/{id}/refresh. Membership is recomputed
// from the stored criteria; no AI credit is consumed.
func (h *SegmentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("segment.refresh", "invalid segment ID"))
		return
	}

	segment, err := h.segments.Refresh(r.Context(), workspace.ID, id)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, toSegmentResponse(segment))
}

// Delete handles DELETE /api/segments/{id}.
func (h *SegmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("segment.delete", "invalid segment ID"))
		return
	}

	if err := h.segments.Delete(r.Context(), workspace.ID, id); err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"deleted": true})
}
