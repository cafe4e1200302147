// Package domain contains core business types and interfaces.
//
// This file defines the Workspace domain type. The workspace is the
// tenancy/billing unit: it owns contacts, campaigns, and the usage counters
// that tier quotas are enforced against.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a workspace's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// HealthStatus tracks a workspace's sending reputation state.
type HealthStatus string

const (
	HealthStatusHealthy    HealthStatus = "healthy"
	HealthStatusWarning    HealthStatus = "warning"
	HealthStatusRestricted HealthStatus = "restricted"
	HealthStatusSuspended  HealthStatus = "suspended"
)

// Workspace represents a tenant of the platform.
//
// The cumulative counters TotalAIUsed and TotalEmailsSent never decrease
// except through an explicit administrative reset. The *Remaining balances
// are maintained alongside them by the consumption writer.
type Workspace struct {
	ID                  uuid.UUID
	Name                string
	Plan                Plan
	SubscriptionStatus  SubscriptionStatus
	SubscriptionID      string
	StripeCustomerID    string
	HealthStatus        HealthStatus
	AICreditsRemaining  int
	EmailLimitRemaining int
	TotalAIUsed         int64
	TotalEmailsSent     int64
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsDeleted returns true if the workspace has been soft-deleted.
func (w *Workspace) IsDeleted() bool {
	return w.DeletedAt != nil
}

// IsOperational returns true if the workspace may perform quota-consuming
// operations. A suspended or soft-deleted workspace must reject them
// regardless of remaining balance.
func (w *Workspace) IsOperational() bool {
	return !w.IsDeleted() && w.HealthStatus != HealthStatusSuspended
}

// CreateWorkspaceParams contains the validated parameters for workspace creation.
type CreateWorkspaceParams struct {
	Name string
	Plan Plan
}
