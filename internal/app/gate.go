package app

import (
	"context"
	"fmt"
	"time"

	"gauntlet-service/internal/domain"
)

// Limits are the abuse thresholds. IP and email limits are counted independently.
type Limits struct {
	IPBurstMax       int
	IPBurstWindow    time.Duration
	EmailBurstMax    int
	EmailBurstWindow time.Duration
	DuplicateWindow  time.Duration
	IPDailyMax       int
	IPDailyWindow    time.Duration
	DailyBudget      int
	BudgetWindow     time.Duration
}

// DefaultLimits returns the production thresholds with the given global budget.
func DefaultLimits(dailyBudget int) Limits {
	return Limits{
		IPBurstMax:       30,
		IPBurstWindow:    10 * time.Minute,
		EmailBurstMax:    6,
		EmailBurstWindow: time.Hour,
		DuplicateWindow:  12 * time.Hour,
		IPDailyMax:       20,
		IPDailyWindow:    24 * time.Hour,
		DailyBudget:      dailyBudget,
		BudgetWindow:     24 * time.Hour,
	}
}

// Gate runs the abuse checks that precede any paid external call.
// Each check returns the outcome label to log and the error to surface, or
// ("", nil) when the request may proceed. Store failures fail closed.
type Gate struct {
	store    SubmissionStore
	verifier Verifier
	limits   Limits
	now      func() time.Time
}

func NewGate(store SubmissionStore, verifier Verifier, limits Limits, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{store: store, verifier: verifier, limits: limits, now: now}
}

func (g *Gate) CheckIPBurst(ctx context.Context, ipFingerprint string) (domain.Outcome, error) {
	n, err := g.store.CountAttemptsByIP(ctx, ipFingerprint, g.now().Add(-g.limits.IPBurstWindow))
	if err != nil {
		return domain.OutcomeStoreError, fmt.Errorf("count ip attempts: %w", err)
	}
	if n >= g.limits.IPBurstMax {
		return domain.OutcomeBlockedIPBurst, domain.ErrRateLimited
	}
	return "", nil
}

func (g *Gate) CheckEmailBurst(ctx context.Context, emailFingerprint string) (domain.Outcome, error) {
	n, err := g.store.CountAttemptsByEmail(ctx, emailFingerprint, g.now().Add(-g.limits.EmailBurstWindow))
	if err != nil {
		return domain.OutcomeStoreError, fmt.Errorf("count email attempts: %w", err)
	}
	if n >= g.limits.EmailBurstMax {
		return domain.OutcomeBlockedEmailBurst, domain.ErrRateLimited
	}
	return "", nil
}

func (g *Gate) CheckVerification(ctx context.Context, token, remoteIP string) (domain.Outcome, error) {
	if g.verifier == nil || !g.verifier.Enabled() {
		return "", nil
	}
	ok, err := g.verifier.Verify(ctx, token, remoteIP)
	if err != nil {
		return domain.OutcomeBlockedVerification, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	if !ok {
		return domain.OutcomeBlockedVerification, domain.ErrVerificationFailed
	}
	return "", nil
}

func (g *Gate) CheckDuplicate(ctx context.Context, emailFingerprint string) (domain.Outcome, error) {
	dup, err := g.store.HasRecentSubmission(ctx, emailFingerprint, g.now().Add(-g.limits.DuplicateWindow))
	if err != nil {
		return domain.OutcomeStoreError, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return domain.OutcomeBlockedDuplicate, domain.ErrRateLimited
	}
	return "", nil
}

func (g *Gate) CheckIPDaily(ctx context.Context, ipFingerprint string) (domain.Outcome, error) {
	n, err := g.store.CountSubmissionsByIP(ctx, ipFingerprint, g.now().Add(-g.limits.IPDailyWindow))
	if err != nil {
		return domain.OutcomeStoreError, fmt.Errorf("count ip submissions: %w", err)
	}
	if n >= g.limits.IPDailyMax {
		return domain.OutcomeBlockedIPDaily, domain.ErrRateLimited
	}
	return "", nil
}

func (g *Gate) CheckBudget(ctx context.Context) (domain.Outcome, error) {
	n, err := g.store.CountSubmissions(ctx, g.now().Add(-g.limits.BudgetWindow))
	if err != nil {
		return domain.OutcomeStoreError, fmt.Errorf("count daily submissions: %w", err)
	}
	if n >= g.limits.DailyBudget {
		return domain.OutcomeBlockedBudget, domain.ErrBudgetExhausted
	}
	return "", nil
}
