// Package service contains the business logic layer.
//
// This file implements the contact service, including CSV export to object
// storage.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/repository"
	"github.com/faxingberling1/mailward/internal/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ContactService defines the interface for contact operations.
type ContactService interface {
	// Create adds a contact to the workspace.
	// Returns domain.ECONFLICT if the email already exists in the workspace.
	Create(ctx context.Context, params domain.CreateContactParams) (*domain.Contact, error)

	// Get retrieves a contact.
	Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Contact, error)

	// List retrieves contacts for a workspace.
	List(ctx context.Context, params domain.ListContactsParams) ([]domain.Contact, error)

	// Delete removes a contact.
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error

	// Export writes the workspace's contacts to object storage as CSV and
	// returns a short-lived download URL.
	Export(ctx context.Context, workspaceID uuid.UUID) (string, error)
}

// =============================================================================
// Implementation
// =============================================================================

type contactService struct {
	store  *repository.Store
	files  storage.Storage
	logger *slog.Logger
}

// NewContactService creates a new ContactService.
func NewContactService(store *repository.Store, files storage.Storage, logger *slog.Logger) ContactService {
	return &contactService{
		store:  store,
		files:  files,
		logger: logger,
	}
}

// Create adds a contact.
func (s *contactService) Create(ctx context.Context, params domain.CreateContactParams) (*domain.Contact, error) {
	const op = "contact.create"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	if params.Email == "" {
		return nil, domain.Invalid(op, "email is required")
	}
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, domain.Invalid(op, "invalid email address")
	}

	contact, err := s.store.Contacts.Create(ctx, params)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "a contact with this email already exists")
		}
		return nil, domain.Internal(err, op, "failed to create contact")
	}

	s.logger.Info("contact created", "contact_id", contact.ID, "workspace_id", params.WorkspaceID)
	return contact, nil
}

// Get retrieves a contact.
func (s *contactService) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Contact, error) {
	const op = "contact.get"

	contact, err := s.store.Contacts.Get(ctx, workspaceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(op, "contact", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get contact")
	}
	return contact, nil
}

// List retrieves contacts.
func (s *contactService) List(ctx context.Context, params domain.ListContactsParams) ([]domain.Contact, error) {
	const op = "contact.list"

	contacts, err := s.store.Contacts.List(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list contacts")
	}
	return contacts, nil
}

// Delete removes a contact.
func (s *contactService) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	const op = "contact.delete"

	err := s.store.Contacts.Delete(ctx, workspaceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "contact", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to delete contact")
	}
	return nil
}

// Export writes a CSV of all contacts to storage and returns a download URL
// valid for one hour.
func (s *contactService) Export(ctx context.Context, workspaceID uuid.UUID) (string, error) {
	const op = "contact.export"

	contacts, err := s.store.Contacts.List(ctx, domain.ListContactsParams{
		WorkspaceID: workspaceID,
		Limit:       100000,
	})
	if err != nil {
		return "", domain.Internal(err, op, "failed to load contacts")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"email", "first_name", "last_name", "company", "engagement_score", "subscribed"}); err != nil {
		return "", domain.Internal(err, op, "failed to write csv header")
	}
	for _, c := range contacts {
		record := []string{
			c.Email,
			c.FirstName,
			c.LastName,
			c.Company,
			strconv.FormatFloat(c.EngagementScore, 'f', 1, 64),
			strconv.FormatBool(c.Subscribed),
		}
		if err := w.Write(record); err != nil {
			return "", domain.Internal(err, op, "failed to write csv record")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", domain.Internal(err, op, "failed to flush csv")
	}

	key := fmt.Sprintf("exports/%s/contacts-%s.csv", workspaceID, time.Now().UTC().Format("20060102-150405"))
	if err := s.files.Put(ctx, key, &buf, storage.PutOptions{ContentType: "text/csv"}); err != nil {
		return "", domain.Internal(err, op, "failed to store export")
	}

	url, err := s.files.URL(ctx, key, time.Hour)
	if err != nil {
		return "", domain.Internal(err, op, "failed to generate export url")
	}

	s.logger.Info("contacts exported",
		"workspace_id", workspaceID,
		"count", len(contacts),
		"key", key,
	)
	return url, nil
}

// isUniqueViolation detects a postgres unique constraint error (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
