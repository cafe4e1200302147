// Package domain contains core business types and interfaces.
//
// This file defines the tier catalog: the static mapping from subscription
// plan to its numeric limits.
package domain

import "strings"

// Plan represents a named subscription level.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanGrowth     Plan = "growth"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// TierLimits defines the monthly limits for a subscription plan.
type TierLimits struct {
	AutomationWorkflows int // Concurrent campaigns/workflows a principal may own
	AICreditsPerMonth   int
	EmailsPerMonth      int
}

// tierCatalog maps each plan to its limits. This is pure configuration;
// there is no per-workspace versioning.
var tierCatalog = map[Plan]TierLimits{
	PlanFree: {
		AutomationWorkflows: 1,
		AICreditsPerMonth:   10,
		EmailsPerMonth:      1000,
	},
	PlanStarter: {
		AutomationWorkflows: 1,
		AICreditsPerMonth:   100,
		EmailsPerMonth:      10000,
	},
	PlanGrowth: {
		AutomationWorkflows: 10,
		AICreditsPerMonth:   500,
		EmailsPerMonth:      100000,
	},
	PlanPro: {
		AutomationWorkflows: 50,
		AICreditsPerMonth:   2000,
		EmailsPerMonth:      500000,
	},
	PlanEnterprise: {
		AutomationWorkflows: 250,
		AICreditsPerMonth:   10000,
		EmailsPerMonth:      2000000,
	},
}

// GetTierLimits returns the limits for a plan. Plan matching is
// case-insensitive. Unknown or empty plans resolve to the free tier rather
// than failing, so an unrecognized plan value tightens capability instead
// of widening it.
func GetTierLimits(plan Plan) TierLimits {
	normalized := Plan(strings.ToLower(strings.TrimSpace(string(plan))))
	if limits, ok := tierCatalog[normalized]; ok {
		return limits
	}
	return tierCatalog[PlanFree]
}

// NormalizePlan returns the canonical plan value, mapping anything
// unrecognized to the free tier.
func NormalizePlan(plan Plan) Plan {
	normalized := Plan(strings.ToLower(strings.TrimSpace(string(plan))))
	if _, ok := tierCatalog[normalized]; ok {
		return normalized
	}
	return PlanFree
}
