// Package domain contains core business types and interfaces.
//
// This file defines the transient value objects returned by the usage
// evaluator. None of these are persisted.
package domain

// CheckCode identifies which limit a denial refers to.
type CheckCode string

const (
	CheckCodeLimitReached CheckCode = "LIMIT_REACHED"
	CheckCodeNoWorkspace  CheckCode = "NO_WORKSPACE"
	CheckCodeSuspended    CheckCode = "SUSPENDED"
)

// UsageCheckResult is the outcome of a single limit evaluation.
// Evaluation never mutates counters; a caller may run several checks
// before deciding to proceed without any partial consumption.
type UsageCheckResult struct {
	Allowed bool
	Reason  string    // Human-readable, includes plan name and numeric limit on denial
	Code    CheckCode // Empty when allowed
}

// Allow returns an allowed check result.
func Allow() UsageCheckResult {
	return UsageCheckResult{Allowed: true}
}

// Deny returns a denied check result with the given code and reason.
func Deny(code CheckCode, reason string) UsageCheckResult {
	return UsageCheckResult{Allowed: false, Code: code, Reason: reason}
}

// UsageSnapshot is the read model the evaluator works from: the workspace's
// plan, its cumulative counters, and the remaining balances every
// consumption write draws down.
type UsageSnapshot struct {
	Plan                Plan
	HealthStatus        HealthStatus
	Deleted             bool
	TotalAIUsed         int64
	TotalEmailsSent     int64
	AICreditsRemaining  int
	EmailLimitRemaining int
}

// Usage reports current consumption against the plan's limits, for the
// dashboard usage panel.
type Usage struct {
	Plan            Plan       `json:"plan"`
	Limits          TierLimits `json:"limits"`
	TotalEmailsSent int64      `json:"total_emails_sent"`
	TotalAIUsed     int64      `json:"total_ai_used"`
	EmailsRemaining int64      `json:"emails_remaining"`
	AIRemaining     int64      `json:"ai_remaining"`
	CampaignsUsed   int64      `json:"campaigns_used"`
	CampaignsLimit  int        `json:"campaigns_limit"`
}
