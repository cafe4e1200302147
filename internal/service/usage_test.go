package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/faxingberling1/mailward/internal/domain"
	"github.com/faxingberling1/mailward/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newUsageFixture(t *testing.T) (UsageService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db)
	return NewUsageService(store, discardLogger()), mock
}

// snapshotRows builds a workspace snapshot whose remaining balances are the
// tier allowance minus the cumulative counters, the state every workspace is
// in before any grant or mid-period plan change.
func snapshotRows(plan string, health string, totalAI, totalEmails int64) *sqlmock.Rows {
	limits := domain.GetTierLimits(domain.Plan(plan))
	return balanceRows(plan, health, totalAI, totalEmails,
		clampZero(int64(limits.AICreditsPerMonth)-totalAI),
		clampZero(int64(limits.EmailsPerMonth)-totalEmails))
}

// balanceRows sets the remaining balances explicitly, for states produced by
// credit grants or plan changes.
func balanceRows(plan, health string, totalAI, totalEmails, aiRemaining, emailRemaining int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"plan", "health_status", "deleted_at", "total_ai_used", "total_emails_sent",
		"ai_credits_remaining", "email_limit_remaining",
	}).AddRow(plan, health, nil, totalAI, totalEmails, aiRemaining, emailRemaining)
}

func clampZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// ============================================================================
// Email limit
// ============================================================================

func TestCheckEmailLimit_ZeroAlwaysAllowed(t *testing.T) {
	// No snapshot read expected: the zero short-circuit comes first, so the
	// check succeeds even for an exhausted or missing workspace.
	svc, mock := newUsageFixture(t)

	result, err := svc.CheckEmailLimit(context.Background(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("CheckEmailLimit: %v", err)
	}
	if !result.Allowed {
		t.Error("zero-sized request must be allowed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries: %v", err)
	}
}

func TestCheckEmailLimit_Boundary(t *testing.T) {
	tests := []struct {
		name        string
		totalSent   int64
		requested   int
		wantAllowed bool
	}{
		{"at limit denies one more", 10000, 1, false},
		{"one below limit allows one", 9999, 1, true},
		{"exactly remaining allows", 9000, 1000, true},
		{"remaining plus one denies", 9000, 1001, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newUsageFixture(t)
			wsID := uuid.New()
			mock.ExpectQuery(`SELECT plan, health_status`).
				WithArgs(wsID).
				WillReturnRows(snapshotRows("starter", "healthy", 0, tt.totalSent))

			result, err := svc.CheckEmailLimit(context.Background(), wsID, tt.requested)
			if err != nil {
				t.Fatalf("CheckEmailLimit: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed {
				if result.Code != domain.CheckCodeLimitReached {
					t.Errorf("code = %q, want %q", result.Code, domain.CheckCodeLimitReached)
				}
				if !strings.Contains(result.Reason, "starter") {
					t.Errorf("reason %q should name the plan", result.Reason)
				}
				if !strings.Contains(result.Reason, "10,000") {
					t.Errorf("reason %q should carry the numeric limit", result.Reason)
				}
			}
		})
	}
}

func TestCheckEmailLimit_NoWorkspace(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID := uuid.New()
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(sqlmock.NewRows([]string{"plan"}))

	_, err := svc.CheckEmailLimit(context.Background(), wsID, 10)
	if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.EUNAUTHORIZED)
	}
}

func TestCheckEmailLimit_SuspendedWorkspace(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID := uuid.New()
	// Plenty of balance, still denied: suspension overrides remaining credits.
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("pro", "suspended", 0, 0))

	result, err := svc.CheckEmailLimit(context.Background(), wsID, 10)
	if err != nil {
		t.Fatalf("CheckEmailLimit: %v", err)
	}
	if result.Allowed {
		t.Error("suspended workspace must be denied")
	}
	if result.Code != domain.CheckCodeSuspended {
		t.Errorf("code = %q, want %q", result.Code, domain.CheckCodeSuspended)
	}
}

func TestCheckEmailLimit_UnknownPlanFallsBackToFree(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID := uuid.New()
	// Free tier allows 1000/month; 1001 total would exceed it.
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("platinum-legacy", "healthy", 0, 500))

	result, err := svc.CheckEmailLimit(context.Background(), wsID, 501)
	if err != nil {
		t.Fatalf("CheckEmailLimit: %v", err)
	}
	if result.Allowed {
		t.Error("unknown plan must be limited to free tier allowances")
	}
}

func TestCheckEmailLimit_NegativeCount(t *testing.T) {
	svc, _ := newUsageFixture(t)

	_, err := svc.CheckEmailLimit(context.Background(), uuid.New(), -1)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.EINVALID)
	}
}

// ============================================================================
// Campaign (workflow-count) limit
// ============================================================================

func TestCheckCampaignLimit_StarterAtLimit(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("starter", "healthy", 0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	result, err := svc.CheckCampaignLimit(context.Background(), wsID, ownerID)
	if err != nil {
		t.Fatalf("CheckCampaignLimit: %v", err)
	}
	if result.Allowed {
		t.Fatal("starter owner with 1 campaign must be denied a second workflow")
	}
	if !strings.Contains(result.Reason, "starter") || !strings.Contains(result.Reason, "1") {
		t.Errorf("reason %q should carry plan name and limit", result.Reason)
	}
}

func TestCheckCampaignLimit_UnderLimit(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	result, err := svc.CheckCampaignLimit(context.Background(), wsID, ownerID)
	if err != nil {
		t.Fatalf("CheckCampaignLimit: %v", err)
	}
	if !result.Allowed {
		t.Errorf("growth owner with 3 of 10 campaigns should be allowed: %s", result.Reason)
	}
}

// ============================================================================
// AI credits
// ============================================================================

func TestCheckAICredits_Boundary(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID := uuid.New()
	// Starter allows 100 AI credits; 100 used leaves nothing.
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("starter", "healthy", 100, 0))

	result, err := svc.CheckAICredits(context.Background(), wsID, 1)
	if err != nil {
		t.Fatalf("CheckAICredits: %v", err)
	}
	if result.Allowed {
		t.Error("exhausted AI credits must deny")
	}
	if result.Code != domain.CheckCodeLimitReached {
		t.Errorf("code = %q, want %q", result.Code, domain.CheckCodeLimitReached)
	}
}

func TestCheckAICredits_GrantedCreditsSpendable(t *testing.T) {
	tests := []struct {
		name        string
		requested   int
		wantAllowed bool
	}{
		{"within granted balance", 1, true},
		{"whole granted balance", 100, true},
		{"beyond granted balance", 101, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newUsageFixture(t)
			wsID := uuid.New()
			// The free allowance of 10 credits is fully used, but an admin
			// granted 100 more; the evaluator spends from the balance, not
			// from allowance minus usage.
			mock.ExpectQuery(`SELECT plan, health_status`).
				WithArgs(wsID).
				WillReturnRows(balanceRows("free", "healthy", 10, 0, 100, 1000))

			result, err := svc.CheckAICredits(context.Background(), wsID, tt.requested)
			if err != nil {
				t.Fatalf("CheckAICredits: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCheckEmailLimit_BalanceSurvivesPlanChange(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID := uuid.New()
	// Mid-period downgrade: the cumulative counter dwarfs the free allowance,
	// but the plan change refreshed the balance and that is what counts.
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(balanceRows("free", "healthy", 0, 50000, 10, 1000))

	result, err := svc.CheckEmailLimit(context.Background(), wsID, 500)
	if err != nil {
		t.Fatalf("CheckEmailLimit: %v", err)
	}
	if !result.Allowed {
		t.Errorf("refreshed balance should be spendable: %s", result.Reason)
	}
}

// ============================================================================
// Usage read model
// ============================================================================

func TestGetUsage(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(snapshotRows("growth", "healthy", 42, 2500))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	usage, err := svc.GetUsage(context.Background(), wsID, ownerID)
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	if usage.Plan != domain.PlanGrowth {
		t.Errorf("plan = %q, want growth", usage.Plan)
	}
	if usage.EmailsRemaining != 97500 {
		t.Errorf("emails remaining = %d, want 97500", usage.EmailsRemaining)
	}
	if usage.AIRemaining != 458 {
		t.Errorf("ai remaining = %d, want 458", usage.AIRemaining)
	}
	if usage.CampaignsUsed != 4 || usage.CampaignsLimit != 10 {
		t.Errorf("campaigns = %d/%d, want 4/10", usage.CampaignsUsed, usage.CampaignsLimit)
	}
}

func TestGetUsage_ReportsGrantedBalance(t *testing.T) {
	svc, mock := newUsageFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()

	// The dashboard must show the same balance the evaluator enforces,
	// including admin-granted credits.
	mock.ExpectQuery(`SELECT plan, health_status`).
		WithArgs(wsID).
		WillReturnRows(balanceRows("free", "healthy", 10, 0, 100, 1000))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	usage, err := svc.GetUsage(context.Background(), wsID, ownerID)
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	if usage.AIRemaining != 100 {
		t.Errorf("ai remaining = %d, want 100", usage.AIRemaining)
	}
}
