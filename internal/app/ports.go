package app

import (
	"context"
	"time"

	"gauntlet-service/internal/domain"
)

// SubmissionStore abstracts the durable submission and attempt tables (Postgres, in-memory).
// Windowed queries take an explicit lower bound so callers own the clock.
type SubmissionStore interface {
	LogAttempt(ctx context.Context, rec domain.AttemptRecord) error
	// CountAttemptsByIP and CountAttemptsByEmail ignore classifying markers.
	CountAttemptsByIP(ctx context.Context, ipFingerprint string, since time.Time) (int, error)
	CountAttemptsByEmail(ctx context.Context, emailFingerprint string, since time.Time) (int, error)
	// HasRecentSubmission reports a persisted submission or a classifying marker for the email since the bound.
	HasRecentSubmission(ctx context.Context, emailFingerprint string, since time.Time) (bool, error)
	CountSubmissionsByIP(ctx context.Context, ipFingerprint string, since time.Time) (int, error)
	// CountSubmissions counts every submission created after since; the zero time counts all rows.
	CountSubmissions(ctx context.Context, since time.Time) (int, error)
	SaveSubmission(ctx context.Context, sub domain.StoredSubmission) (int64, error)
	RecentByArchetype(ctx context.Context, archetype string, limit int) ([]domain.StoredSubmission, error)
}

// Verifier checks a human-verification token.
type Verifier interface {
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// StatsCache keeps the last known submission count.
type StatsCache interface {
	Load(ctx context.Context) (domain.CountSnapshot, bool)
	Store(ctx context.Context, snap domain.CountSnapshot)
}
