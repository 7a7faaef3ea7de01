package infrastructure

import (
	"context"
	"testing"
	"time"

	"adpivot/internal/domain"
	"adpivot/pkg/logger"
)

func TestMemoryAdCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAdCache(logger.Discard())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ads := []domain.Ad{{"platform": "meta"}}
	if err := cache.Set(ctx, "vs|", ads, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "vs|meta", ads, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, "vs|")
	if err != nil || !ok || len(got) != 1 {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := cache.Get(ctx, "vs|"); ok {
		t.Error("entry served after ttl")
	}
	if _, ok, _ := cache.Get(ctx, "vs|meta"); !ok {
		t.Error("zero ttl entry expired")
	}

	if err := cache.Invalidate(ctx, "vs|meta"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "vs|meta"); ok {
		t.Error("entry served after Invalidate")
	}
}

func TestMemoryAdCacheClear(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAdCache(logger.Discard())

	for _, key := range []string{"a|", "b|", "c|meta"} {
		cache.Set(ctx, key, []domain.Ad{}, time.Hour)
	}
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, key := range []string{"a|", "b|", "c|meta"} {
		if _, ok, _ := cache.Get(ctx, key); ok {
			t.Errorf("%s survived Clear", key)
		}
	}
}
