package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gauntlet-service/internal/domain"
)

// Store is an in-memory implementation of app.SubmissionStore.
// State is lost on restart and is not shared across instances, so it is
// meant for development and tests only.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	submissions []domain.StoredSubmission
	attempts    []domain.AttemptRecord
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) LogAttempt(_ context.Context, rec domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.attempts = append(s.attempts, rec)
	return nil
}

func (s *Store) CountAttemptsByIP(_ context.Context, ipFingerprint string, since time.Time) (int, error) {
	return s.countAttempts(func(a domain.AttemptRecord) bool {
		return a.IPFingerprint == ipFingerprint && a.CreatedAt.After(since)
	}), nil
}

func (s *Store) CountAttemptsByEmail(_ context.Context, emailFingerprint string, since time.Time) (int, error) {
	return s.countAttempts(func(a domain.AttemptRecord) bool {
		return emailFingerprint != "" && a.EmailFingerprint == emailFingerprint && a.CreatedAt.After(since)
	}), nil
}

func (s *Store) countAttempts(match func(domain.AttemptRecord) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.attempts {
		if a.Outcome != domain.OutcomeClassifying && match(a) {
			n++
		}
	}
	return n
}

func (s *Store) HasRecentSubmission(_ context.Context, emailFingerprint string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.submissions {
		if sub.EmailFingerprint == emailFingerprint && sub.CreatedAt.After(since) {
			return true, nil
		}
	}
	for _, a := range s.attempts {
		if a.Outcome == domain.OutcomeClassifying && a.EmailFingerprint == emailFingerprint && a.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountSubmissionsByIP(_ context.Context, ipFingerprint string, since time.Time) (int, error) {
	return s.countSubmissions(func(sub domain.StoredSubmission) bool {
		return sub.IPFingerprint == ipFingerprint && sub.CreatedAt.After(since)
	}), nil
}

func (s *Store) CountSubmissions(_ context.Context, since time.Time) (int, error) {
	return s.countSubmissions(func(sub domain.StoredSubmission) bool {
		return since.IsZero() || sub.CreatedAt.After(since)
	}), nil
}

func (s *Store) countSubmissions(match func(domain.StoredSubmission) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sub := range s.submissions {
		if match(sub) {
			n++
		}
	}
	return n
}

func (s *Store) SaveSubmission(_ context.Context, sub domain.StoredSubmission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.ID = s.nextID
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	sub.Responses = append([]domain.Response(nil), sub.Responses...)
	sub.Results.Traits = append([]string(nil), sub.Results.Traits...)
	s.submissions = append(s.submissions, sub)
	return sub.ID, nil
}

func (s *Store) RecentByArchetype(_ context.Context, archetype string, limit int) ([]domain.StoredSubmission, error) {
	s.mu.RLock()
	matches := make([]domain.StoredSubmission, 0)
	for _, sub := range s.submissions {
		if sub.Archetype == archetype {
			matches = append(matches, sub)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Attempts returns a copy of the attempt log.
func (s *Store) Attempts() []domain.AttemptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AttemptRecord(nil), s.attempts...)
}

// Submissions returns a copy of the stored submissions.
func (s *Store) Submissions() []domain.StoredSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StoredSubmission(nil), s.submissions...)
}
