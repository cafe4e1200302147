package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Contact is a single subscriber owned by a workspace.
type Contact struct {
	ID              uuid.UUID
	WorkspaceID     uuid.UUID
	Email           string
	FirstName       string
	LastName        string
	Company         string
	EngagementScore float64
	LastOpenedAt    *time.Time
	Subscribed      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SegmentSource records how a segment's criteria were produced.
type SegmentSource string

const (
	SegmentSourceManual SegmentSource = "manual"
	SegmentSourceAI     SegmentSource = "ai"
)

// Segment is a named slice of a workspace's contacts. AI-generated segments
// carry the criteria the model proposed; manual segments carry
// user-authored criteria.
type Segment struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	Name         string
	Description  string
	Criteria     json.RawMessage
	ContactCount int
	GeneratedBy  SegmentSource
	RefreshedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SegmentCriteria is the structured form of a segment's matching rules.
// The AI provider returns this shape as JSON; unparseable responses fall
// back to DefaultSegmentCriteria.
type SegmentCriteria struct {
	MinEngagement  float64 `json:"min_engagement"`
	MaxEngagement  float64 `json:"max_engagement"`
	ActiveWithin   int     `json:"active_within_days"`
	SubscribedOnly bool    `json:"subscribed_only"`
}

// DefaultSegmentCriteria is the fail-safe segmentation applied when the
// model's response cannot be parsed: all subscribed contacts.
func DefaultSegmentCriteria() SegmentCriteria {
	return SegmentCriteria{
		MinEngagement:  0,
		MaxEngagement:  100,
		ActiveWithin:   0,
		SubscribedOnly: true,
	}
}

// CreateContactParams contains the validated parameters for contact creation.
type CreateContactParams struct {
	WorkspaceID uuid.UUID
	Email       string
	FirstName   string
	LastName    string
	Company     string
}

// ListContactsParams controls pagination for contact lists.
type ListContactsParams struct {
	WorkspaceID uuid.UUID
	Limit       int
	Offset      int
}
