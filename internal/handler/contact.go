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
// Contact Handler
// =============================================================================

// ContactHandler serves the contact endpoints.
type ContactHandler struct {
	contacts service.ContactService
	logger   *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(contacts service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		logger:   logger,
	}
}

type createContactRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
}

type contactResponse struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Company         string     `json:"company"`
	EngagementScore float64    `json:"engagement_score"`
	LastOpenedAt    *time.Time `json:"last_opened_at"`
	Subscribed      bool       `json:"subscribed"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toContactResponse(c *domain.Contact) contactResponse {
	return contactResponse{
		ID:              c.ID,
		Email:           c.Email,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Company:         c.Company,
		EngagementScore: c.EngagementScore,
		LastOpenedAt:    c.LastOpenedAt,
		Subscribed:      c.Subscribed,
		CreatedAt:       c.CreatedAt,
	}
}

// Create handles POST /api/contacts.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	var req createContactRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, domain.Invalid("contact.create", "invalid request body"))
		return
	}

	contact, err := h.contacts.Create(r.Context(), domain.CreateContactParams{
		WorkspaceID: workspace.ID,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Company:     req.Company,
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, toContactResponse(contact))
}

// Get handles GET /api/contacts/{id}.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("contact.get", "invalid contact ID"))
		return
	}

	contact, err := h.contacts.Get(r.Context(), workspace.ID, id)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, toContactResponse(contact))
}

// List handles GET /api/contacts.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	contacts, err := h.contacts.List(r.Context(), domain.ListContactsParams{
		WorkspaceID: workspace.ID,
		Limit:       queryInt(r, "limit", 100),
		Offset:      queryInt(r, "offset", 0),
	})
	if err != nil {
		Error(w, r, err)
		return
	}

	items := make([]contactResponse, 0, len(contacts))
	for i := range contacts {
		items = append(items, toContactResponse(&contacts[i]))
	}

	OK(w, map[string]interface{}{"contacts": items})
}

// Delete handles DELETE /api/contacts/{id}.
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		Error(w, r, domain.Invalid("contact.delete", "invalid contact ID"))
		return
	}

	if err := h.contacts.Delete(r.Context(), workspace.ID, id); err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]bool{"deleted": true})
}

// Export handles POST /api/contacts/export. The CSV is written to object
// storage and a short-lived download URL is returned.
func (h *ContactHandler) Export(w http.ResponseWriter, r *http.Request) {
	workspace := GetWorkspace(r.Context())

	url, err := h.contacts.Export(r.Context(), workspace.ID)
	if err != nil {
		Error(w, r, err)
		return
	}

	OK(w, map[string]string{"url": url})
}
