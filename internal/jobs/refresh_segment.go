package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/service"
	"github.com/faxingberling1/mailward/internal/worker"
)

// RefreshSegmentHandler recomputes a segment's membership from its stored
// criteria. Engagement scores drift, so segments are refreshed periodically
// and before large sends. No AI credit is consumed.
type RefreshSegmentHandler struct {
	segments service.SegmentService
	logger   *slog.Logger
}

// NewRefreshSegmentHandler creates a new handler for segment refresh jobs.
func NewRefreshSegmentHandler(segments service.SegmentService, logger *slog.Logger) *RefreshSegmentHandler {
	return &RefreshSegmentHandler{
		segments: segments,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *RefreshSegmentHandler) Type() string {
	return worker.JobTypeRefreshSegment
}

// Handle executes the segment refresh job.
func (h *RefreshSegmentHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.RefreshSegmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	segment, err := h.segments.Refresh(ctx, p.WorkspaceID, p.SegmentID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("segment not found: %s", p.SegmentID))
		}
		return fmt.Errorf("refresh segment: %w", err)
	}

	h.logger.Info("segment refreshed",
		"segment_id", segment.ID,
		"workspace_id", p.WorkspaceID,
		"contacts", segment.ContactCount,
	)
	return nil
}
