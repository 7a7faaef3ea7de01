package infrastructure

import (
	"context"
	"sync"
	"time"

	"adpivot/internal/domain"
	"adpivot/pkg/logger"
)

type cacheEntry struct {
	ads       []domain.Ad
	expiresAt time.Time
}

// MemoryAdCache implements domain.AdCache in process memory
type MemoryAdCache struct {
	data   map[string]cacheEntry
	mutex  sync.RWMutex
	logger *logger.Logger
	now    func() time.Time
}

func NewMemoryAdCache(logger *logger.Logger) *MemoryAdCache {
	return &MemoryAdCache{
		data:   make(map[string]cacheEntry),
		logger: logger,
		now:    time.Now,
	}
}

func (c *MemoryAdCache) Get(ctx context.Context, key string) ([]domain.Ad, bool, error) {
	c.mutex.RLock()
	entry, ok := c.data[key]
	c.mutex.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mutex.Lock()
		if current, ok := c.data[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.data, key)
		}
		c.mutex.Unlock()
		return nil, false, nil
	}
	return entry.ads, true, nil
}

// Set stores ads under key. A zero ttl never expires.
func (c *MemoryAdCache) Set(ctx context.Context, key string, ads []domain.Ad, ttl time.Duration) error {
	entry := cacheEntry{ads: ads}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mutex.Lock()
	c.data[key] = entry
	c.mutex.Unlock()

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"key":   key,
		"count": len(ads),
		"ttl":   ttl,
	}).Debug("Stored ads in memory cache")
	return nil
}

func (c *MemoryAdCache) Invalidate(ctx context.Context, key string) error {
	c.mutex.Lock()
	delete(c.data, key)
	c.mutex.Unlock()
	return nil
}

func (c *MemoryAdCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	count := len(c.data)
	c.data = make(map[string]cacheEntry)
	c.mutex.Unlock()

	c.logger.WithContext(ctx).WithField("count", count).Info("Cleared memory ads cache")
	return nil
}
