package app

import (
	"context"
	"time"

	"gauntlet-service/internal/domain"
)

// TotalSubmissions returns the seeded baseline plus the persisted count.
// A fresh cached count is served without touching the store; when the store
// fails the last known count is used, and the baseline alone when there is none.
func (s *SubmissionService) TotalSubmissions(ctx context.Context) int {
	now := s.now()
	cached, haveCached := s.loadSnapshot(ctx)
	if haveCached && now.Sub(cached.At) < s.statsFreshFor {
		s.log.Debug("stats served from cache", "total", cached.Total, "age", now.Sub(cached.At))
		return s.seededBaseline + cached.Total
	}

	// Coalesced callers share one query; it must not die with the first caller.
	queryCtx := context.WithoutCancel(ctx)
	result, err, shared := s.sf.Do("total", func() (interface{}, error) {
		return s.store.CountSubmissions(queryCtx, time.Time{})
	})
	if err != nil {
		s.log.Warn("stats count failed, serving fallback", "error", err, "cached", haveCached)
		if haveCached {
			return s.seededBaseline + cached.Total
		}
		return s.seededBaseline
	}

	total := result.(int)
	s.log.Debug("stats counted", "total", total, "shared", shared)
	if s.cache != nil {
		s.cache.Store(ctx, domain.CountSnapshot{Total: total, At: now})
	}
	return s.seededBaseline + total
}

func (s *SubmissionService) loadSnapshot(ctx context.Context) (domain.CountSnapshot, bool) {
	if s.cache == nil {
		return domain.CountSnapshot{}, false
	}
	return s.cache.Load(ctx)
}
