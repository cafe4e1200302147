package domain

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Tier Catalog Tests
// =============================================================================

func TestGetTierLimits_KnownPlans(t *testing.T) {
	testCases := []struct {
		plan      Plan
		workflows int
		emails    int
	}{
		{PlanFree, 1, 1000},
		{PlanStarter, 1, 10000},
		{PlanGrowth, 10, 100000},
		{PlanPro, 50, 500000},
		{PlanEnterprise, 250, 2000000},
	}

	for _, tc := range testCases {
		t.Run(string(tc.plan), func(t *testing.T) {
			limits := GetTierLimits(tc.plan)
			if limits.AutomationWorkflows != tc.workflows {
				t.Errorf("AutomationWorkflows = %d, want %d", limits.AutomationWorkflows, tc.workflows)
			}
			if limits.EmailsPerMonth != tc.emails {
				t.Errorf("EmailsPerMonth = %d, want %d", limits.EmailsPerMonth, tc.emails)
			}
		})
	}
}

func TestGetTierLimits_UnknownPlanFallsBackToFree(t *testing.T) {
	free := GetTierLimits(PlanFree)

	for _, plan := range []Plan{"some-unrecognized-string", "", "premium", "FREE_TRIAL"} {
		got := GetTierLimits(plan)
		if got != free {
			t.Errorf("GetTierLimits(%q) = %+v, want free tier %+v", plan, got, free)
		}
	}
}

func TestGetTierLimits_CaseInsensitive(t *testing.T) {
	testCases := []struct {
		input Plan
		want  Plan
	}{
		{"GROWTH", PlanGrowth},
		{"Starter", PlanStarter},
		{"  pro  ", PlanPro},
	}

	for _, tc := range testCases {
		if got := GetTierLimits(tc.input); got != GetTierLimits(tc.want) {
			t.Errorf("GetTierLimits(%q) != GetTierLimits(%q)", tc.input, tc.want)
		}
		if got := NormalizePlan(tc.input); got != tc.want {
			t.Errorf("NormalizePlan(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// =============================================================================
// Workspace State Tests
// =============================================================================

func TestWorkspaceIsOperational(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name        string
		health      HealthStatus
		deleted     bool
		operational bool
	}{
		{"healthy", HealthStatusHealthy, false, true},
		{"warning", HealthStatusWarning, false, true},
		{"restricted", HealthStatusRestricted, false, true},
		{"suspended", HealthStatusSuspended, false, false},
		{"deleted", HealthStatusHealthy, true, false},
		{"suspended and deleted", HealthStatusSuspended, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := Workspace{HealthStatus: tc.health}
			if tc.deleted {
				w.DeletedAt = &now
			}
			if got := w.IsOperational(); got != tc.operational {
				t.Errorf("IsOperational() = %v, want %v", got, tc.operational)
			}
		})
	}
}

func TestLimitReachedMessage(t *testing.T) {
	err := LimitReached("usage.check_email", PlanStarter, "emails", 10000)

	if ErrorCode(err) != ELIMIT {
		t.Errorf("code = %q, want %q", ErrorCode(err), ELIMIT)
	}
	msg := ErrorMessage(err)
	for _, want := range []string{"starter", "10,000", "emails"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
