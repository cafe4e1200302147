// Package domain contains core business types and interfaces.
//
// This file defines the Campaign domain type. Creating a campaign is the
// trigger event for the quota gate: its SegmentCount is the email volume
// the campaign will consume.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Campaign represents an email campaign owned by a principal within a workspace.
type Campaign struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	OwnerID      uuid.UUID
	Name         string
	Subject      string
	FromName     string
	FromEmail    string
	HTMLContent  string
	Status       CampaignStatus
	SegmentID    *uuid.UUID
	SegmentCount int // Email volume consumed at creation time
	SentCount    int
	Steps        []CampaignStep
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CampaignStep is a single email in a campaign's follow-up sequence.
type CampaignStep struct {
	ID          uuid.UUID
	CampaignID  uuid.UUID
	Position    int
	Subject     string
	HTMLContent string
	DelayHours  int
}

// IsEditable returns true if the campaign content may still be modified.
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// CreateCampaignParams contains the validated parameters for campaign creation.
type CreateCampaignParams struct {
	WorkspaceID  uuid.UUID
	OwnerID      uuid.UUID
	Name         string
	Subject      string
	FromName     string
	FromEmail    string
	HTMLContent  string
	SegmentID    *uuid.UUID
	SegmentCount int
	Steps        []CreateStepParams
}

// CreateStepParams describes one sequence step at campaign creation.
type CreateStepParams struct {
	Subject     string
	HTMLContent string
	DelayHours  int
}

// UpdateCampaignParams contains mutable campaign fields. Nil pointers are
// left unchanged.
type UpdateCampaignParams struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        *string
	Subject     *string
	FromName    *string
	FromEmail   *string
	HTMLContent *string
}

// ListCampaignsParams controls pagination and filtering for campaign lists.
type ListCampaignsParams struct {
	WorkspaceID uuid.UUID
	Status      CampaignStatus
	Limit       int
	Offset      int
}
