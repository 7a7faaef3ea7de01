package infrastructure

import (
	"context"
	"os"
	"testing"
	"time"

	"adpivot/internal/domain"
	"adpivot/pkg/logger"
)

// runs against a real server only when REDIS_TEST_ADDR is set
func newTestRedisCache(t *testing.T) *RedisAdCache {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: addr, DB: 15}, logger.Discard())
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	cache := NewRedisAdCache(client, logger.Discard())
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	return cache
}

func TestRedisAdCache(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "missing|"); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	ads := []domain.Ad{{"platform": "meta", "spend": 12.5, "f_products": []any{"A", "B"}}}
	if err := cache.Set(ctx, "vs|meta", ads, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, "vs|meta")
	if err != nil || !ok || len(got) != 1 {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if got[0]["spend"] != 12.5 {
		t.Errorf("spend = %v", got[0]["spend"])
	}

	if err := cache.Invalidate(ctx, "vs|meta"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "vs|meta"); ok {
		t.Error("entry served after Invalidate")
	}

	cache.Set(ctx, "a|", ads, time.Minute)
	cache.Set(ctx, "b|", ads, time.Minute)
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "a|"); ok {
		t.Error("entry survived Clear")
	}
}
