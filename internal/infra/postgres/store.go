package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gauntlet-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store implements app.SubmissionStore on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) LogAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	var emailHash *string
	if rec.EmailFingerprint != "" {
		emailHash = &rec.EmailFingerprint
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submission_attempts (created_at, request_id, ip_hash, email_hash, outcome) VALUES ($1, $2, $3, $4, $5)`,
		createdAt, rec.RequestID, rec.IPFingerprint, emailHash, string(rec.Outcome))
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *Store) CountAttemptsByIP(ctx context.Context, ipFingerprint string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM submission_attempts WHERE ip_hash = $1 AND created_at > $2 AND outcome <> $3`,
		ipFingerprint, since, string(domain.OutcomeClassifying))
}

func (s *Store) CountAttemptsByEmail(ctx context.Context, emailFingerprint string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM submission_attempts WHERE email_hash = $1 AND created_at > $2 AND outcome <> $3`,
		emailFingerprint, since, string(domain.OutcomeClassifying))
}

func (s *Store) HasRecentSubmission(ctx context.Context, emailFingerprint string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM quiz_submissions WHERE email_hash = $1 AND created_at > $2
		) OR EXISTS (
			SELECT 1 FROM submission_attempts WHERE email_hash = $1 AND created_at > $2 AND outcome = $3
		)`, emailFingerprint, since, string(domain.OutcomeClassifying)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("duplicate lookup: %w", err)
	}
	return exists, nil
}

func (s *Store) CountSubmissionsByIP(ctx context.Context, ipFingerprint string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM quiz_submissions WHERE ip_hash = $1 AND created_at > $2`,
		ipFingerprint, since)
}

func (s *Store) CountSubmissions(ctx context.Context, since time.Time) (int, error) {
	if since.IsZero() {
		return s.count(ctx, `SELECT COUNT(*) FROM quiz_submissions`)
	}
	return s.count(ctx, `SELECT COUNT(*) FROM quiz_submissions WHERE created_at > $1`, since)
}

func (s *Store) SaveSubmission(ctx context.Context, sub domain.StoredSubmission) (int64, error) {
	responses, err := json.Marshal(sub.Responses)
	if err != nil {
		return 0, fmt.Errorf("marshal responses: %w", err)
	}
	results, err := json.Marshal(sub.Results)
	if err != nil {
		return 0, fmt.Errorf("marshal results: %w", err)
	}
	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO quiz_submissions (
			created_at, name, email, email_hash, company, archetype, responses, results, ip_hash, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10)
		RETURNING id`,
		createdAt, sub.Name, sub.Email, sub.EmailFingerprint, sub.Company, sub.Archetype,
		string(responses), string(results), sub.IPFingerprint, sub.UserAgent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

func (s *Store) RecentByArchetype(ctx context.Context, archetype string, limit int) ([]domain.StoredSubmission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, name, company, archetype
		FROM quiz_submissions
		WHERE archetype = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, archetype, limit)
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredSubmission
	for rows.Next() {
		var sub domain.StoredSubmission
		if err := rows.Scan(&sub.ID, &sub.CreatedAt, &sub.Name, &sub.Company, &sub.Archetype); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(n), nil
}
