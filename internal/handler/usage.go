package handler

import (
	"net/http"

	"github.com/faxingberling1/mailward/internal/service"
)

// UsageHandler serves the dashboard usage endpoint.
type UsageHandler struct {
	usage service.UsageService
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage service.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// Get handles GET /api/usage. It reports consumption against the plan's
// limits; it never mutates counters.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	usage, err := h.usage.GetUsage(r.Context(), workspace.ID, workspace.ID)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, usage)
}
