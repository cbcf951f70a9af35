package memory

import (
	"context"
	"sync"

	"gauntlet-service/internal/domain"
)

// StatsCache keeps the last known submission count in process.
type StatsCache struct {
	mu   sync.RWMutex
	snap domain.CountSnapshot
	ok   bool
}

func NewStatsCache() *StatsCache {
	return &StatsCache{}
}

func (c *StatsCache) Load(_ context.Context) (domain.CountSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.ok
}

func (c *StatsCache) Store(_ context.Context, snap domain.CountSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.ok = true
}
