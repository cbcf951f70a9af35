package redis

import (
	"context"
	"encoding/json"
	"time"

	"gauntlet-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StatsCache stores the last known submission count in Redis so every
// instance can serve it when the database is unavailable.
// Stored as: SET {prefix}stats:total {"total":N,"at":"..."} EX ttl
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	key    string
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl, key: "gauntlet:stats:total"}
}

func (c *StatsCache) Load(ctx context.Context) (domain.CountSnapshot, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		return domain.CountSnapshot{}, false
	}
	var snap domain.CountSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.CountSnapshot{}, false
	}
	return snap, true
}

// Store is best-effort; a Redis outage only costs cache freshness.
func (c *StatsCache) Store(ctx context.Context, snap domain.CountSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key, data, c.ttl).Err()
}
