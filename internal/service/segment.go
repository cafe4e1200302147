// Package service contains the business logic layer.
//
// This file implements the segment service. AI-generated segments spend one
// AI credit per generation; repeated descriptions are served from the Redis
// cache without consuming credits.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/ai"
	"github.com/faxingberling1/mailward/internal/cache"
	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/metrics"
	"github.com/faxingberling1/mailward/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SegmentService defines operations for contact segments.
type SegmentService interface {
	// Generate creates an AI-generated segment from an audience description.
	// Consumes one AI credit unless the criteria are served from cache.
	// Returns domain.ELIMIT when the AI credit limit would be exceeded.
	Generate(ctx context.Context, params GenerateSegmentParams) (*domain.Segment, error)

	// CreateManual creates a segment from user-authored criteria.
	CreateManual(ctx context.Context, workspaceID uuid.UUID, name, description string, criteria domain.SegmentCriteria) (*domain.Segment, error)

	// Get retrieves a segment.
	Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Segment, error)

	// List retrieves all segments for a workspace.
	List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Segment, error)

	// Refresh recomputes a segment's membership from its stored criteria.
	Refresh(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Segment, error)

	// Delete removes a segment.
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// GenerateSegmentParams contains inputs for AI segment generation.
type GenerateSegmentParams struct {
	WorkspaceID uuid.UUID
	Name        string
	Description string
}

// =============================================================================
// Implementation
// =============================================================================

type segmentService struct {
	store    *repository.Store
	usage    UsageService
	provider ai.Provider
	cache    *cache.SegmentCache
	logger   *slog.Logger
}

// NewSegmentService creates a new SegmentService.
func NewSegmentService(
	store *repository.Store,
	usage UsageService,
	provider ai.Provider,
	segmentCache *cache.SegmentCache,
	logger *slog.Logger,
) SegmentService {
	return &segmentService{
		store:    store,
		usage:    usage,
		provider: provider,
		cache:    segmentCache,
		logger:   logger,
	}
}

// Generate creates an AI-generated segment.
func (s *segmentService) Generate(ctx context.Context, params GenerateSegmentParams) (*domain.Segment, error) {
	const op = "segment.generate"

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "segment name is required")
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, domain.Invalid(op, "audience description is required")
	}

	criteriaJSON, cached, err := s.resolveCriteria(ctx, op, params)
	if err != nil {
		return nil, err
	}

	// Unparseable model output falls back to the safe default rather than
	// failing the request.
	criteria := domain.DefaultSegmentCriteria()
	if err := json.Unmarshal(criteriaJSON, &criteria); err != nil {
		s.logger.Warn("unparseable criteria, using default",
			"workspace_id", params.WorkspaceID, "error", err)
		criteria = domain.DefaultSegmentCriteria()
		criteriaJSON, _ = json.Marshal(criteria)
	}

	contactIDs, err := s.store.Contacts.ListByCriteria(ctx, params.WorkspaceID, criteria)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to evaluate criteria")
	}

	// Segment creation, membership, and the credit consumption commit
	// together. Cached criteria cost nothing.
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	txStore := s.store.WithTx(tx)

	segment, err := txStore.Segments.Create(ctx, params.WorkspaceID, params.Name, params.Description,
		criteriaJSON, domain.SegmentSourceAI)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create segment")
	}

	if err := txStore.Segments.SetRefreshed(ctx, segment.ID, criteriaJSON, domain.SegmentSourceAI, contactIDs); err != nil {
		return nil, domain.Internal(err, op, "failed to store segment members")
	}

	if !cached {
		if err := txStore.Workspaces.ConsumeAICredits(ctx, params.WorkspaceID, 1); err != nil {
			return nil, domain.Internal(err, op, "failed to consume ai credit")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit transaction")
	}

	metrics.SegmentsGenerated.WithLabelValues("success").Inc()
	segment.ContactCount = len(contactIDs)
	s.logger.Info("segment generated",
		"segment_id", segment.ID,
		"workspace_id", params.WorkspaceID,
		"contacts", len(contactIDs),
		"cached", cached,
	)
	return segment, nil
}

// resolveCriteria returns criteria JSON from cache or, after a credit check,
// from the AI provider. The bool reports whether the cache served it.
func (s *segmentService) resolveCriteria(ctx context.Context, op string, params GenerateSegmentParams) ([]byte, bool, error) {
	if s.cache != nil {
		if criteriaJSON, err := s.cache.Get(ctx, params.WorkspaceID, params.Description); err == nil {
			return criteriaJSON, true, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			// A broken cache degrades to a provider call, not a failure.
			s.logger.Warn("segment cache unavailable", "error", err)
		}
	}

	check, err := s.usage.CheckAICredits(ctx, params.WorkspaceID, 1)
	if err != nil {
		return nil, false, err
	}
	if !check.Allowed {
		metrics.SegmentsGenerated.WithLabelValues("denied").Inc()
		return nil, false, denialError(op, check)
	}

	result, err := s.provider.GenerateSegmentCriteria(ctx, ai.GenerateParams{
		Description: params.Description,
		WorkspaceID: params.WorkspaceID,
	})
	if err != nil {
		metrics.SegmentsGenerated.WithLabelValues("error").Inc()
		return nil, false, domain.Internal(err, op, "criteria generation failed")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, params.WorkspaceID, params.Description, result.CriteriaJSON); err != nil {
			s.logger.Warn("failed to cache criteria", "error", err)
		}
	}
	return result.CriteriaJSON, false, nil
}

// CreateManual creates a segment from user-authored criteria. No AI credit
// is consumed.
func (s *segmentService) CreateManual(ctx context.Context, workspaceID uuid.UUID, name, description string, criteria domain.SegmentCriteria) (*domain.Segment, error) {
	const op = "segment.create_manual"

	if strings.TrimSpace(name) == "" {
		return nil, domain.Invalid(op, "segment name is required")
	}

	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode criteria")
	}

	contactIDs, err := s.store.Contacts.ListByCriteria(ctx, workspaceID, criteria)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to evaluate criteria")
	}

	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	txStore := s.store.WithTx(tx)

	segment, err := txStore.Segments.Create(ctx, workspaceID, name, description,
		criteriaJSON, domain.SegmentSourceManual)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create segment")
	}
	if err := txStore.Segments.SetRefreshed(ctx, segment.ID, criteriaJSON, domain.SegmentSourceManual, contactIDs); err != nil {
		return nil, domain.Internal(err, op, "failed to store segment members")
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit transaction")
	}

	segment.ContactCount = len(contactIDs)
	return segment, nil
}

// Get retrieves a segment.
func (s *segmentService) Get(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Segment, error) {
	const op = "segment.get"

	segment, err := s.store.Segments.Get(ctx, workspaceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(op, "segment", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get segment")
	}
	return segment, nil
}

// List retrieves all segments for a workspace.
func (s *segmentService) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Segment, error) {
	const op = "segment.list"

	segments, err := s.store.Segments.List(ctx, workspaceID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list segments")
	}
	return segments, nil
}

// Refresh recomputes membership from the stored criteria.
func (s *segmentService) Refresh(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Segment, error) {
	const op = "segment.refresh"

	segment, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	criteria := domain.DefaultSegmentCriteria()
	if err := json.Unmarshal(segment.Criteria, &criteria); err != nil {
		s.logger.Warn("unparseable stored criteria, using default",
			"segment_id", id, "error", err)
	}

	contactIDs, err := s.store.Contacts.ListByCriteria(ctx, workspaceID, criteria)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to evaluate criteria")
	}

	if err := s.store.Segments.SetRefreshed(ctx, id, segment.Criteria, segment.GeneratedBy, contactIDs); err != nil {
		return nil, domain.Internal(err, op, "failed to refresh segment")
	}

	segment.ContactCount = len(contactIDs)
	return segment, nil
}

// Delete removes a segment.
func (s *segmentService) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	const op = "segment.delete"

	err := s.store.Segments.Delete(ctx, workspaceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(op, "segment", id.String())
	}
	if err != nil {
		return domain.Internal(err, op, "failed to delete segment")
	}
	return nil
}
