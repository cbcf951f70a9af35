package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"gauntlet-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

func TestStatsCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewStatsCache(newClient(mr), time.Hour)
	ctx := context.Background()

	if _, ok := cache.Load(ctx); ok {
		t.Fatalf("expected miss on empty redis")
	}

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	cache.Store(ctx, domain.CountSnapshot{Total: 42, At: at})
	if !mr.Exists("gauntlet:stats:total") {
		t.Fatalf("expected redis key to be set")
	}

	snap, ok := cache.Load(ctx)
	if !ok || snap.Total != 42 || !snap.At.Equal(at) {
		t.Fatalf("unexpected snapshot %+v ok=%v", snap, ok)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := cache.Load(ctx); ok {
		t.Fatalf("expected key to expire")
	}
}

func TestStatsCacheIgnoresCorruptValue(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	_ = mr.Set("gauntlet:stats:total", "not json")
	cache := NewStatsCache(newClient(mr), time.Hour)
	if _, ok := cache.Load(context.Background()); ok {
		t.Fatalf("expected corrupt value to be a miss")
	}
}

func TestStatsCacheUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 5 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewStatsCache(client, time.Hour)
	cache.Store(context.Background(), domain.CountSnapshot{Total: 1})
	if _, ok := cache.Load(context.Background()); ok {
		t.Fatalf("expected miss when redis is down")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
