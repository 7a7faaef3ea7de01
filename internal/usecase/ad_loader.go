package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"adpivot/internal/domain"
	"adpivot/pkg/logger"
	"adpivot/pkg/metrics"
)

// AdLoader fetches ad lists from the upstream API through an optional cache
type AdLoader struct {
	source       domain.AdSource
	cache        domain.AdCache
	ttl          time.Duration
	defaultQuery string
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

// NewAdLoader creates a loader. A nil cache disables caching.
func NewAdLoader(
	source domain.AdSource,
	cache domain.AdCache,
	ttl time.Duration,
	defaultQuery string,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *AdLoader {
	return &AdLoader{
		source:       source,
		cache:        cache,
		ttl:          ttl,
		defaultQuery: defaultQuery,
		logger:       logger,
		metrics:      metrics,
	}
}

// Params normalizes request parameters, applying the default query
func (l *AdLoader) Params(query, platform string) domain.FetchParams {
	query = strings.TrimSpace(query)
	if query == "" {
		query = l.defaultQuery
	}
	return domain.FetchParams{Query: query, Platform: strings.TrimSpace(platform)}
}

// Load returns the ad list for params, from the cache when fresh. Cache
// failures are logged and fall through to the upstream API.
func (l *AdLoader) Load(ctx context.Context, params domain.FetchParams) ([]domain.Ad, error) {
	log := l.logger.WithContext(ctx)
	key := params.CacheKey()

	if l.cache != nil {
		ads, ok, err := l.cache.Get(ctx, key)
		switch {
		case err != nil:
			l.metrics.RecordCacheLookup("error")
			log.WithError(err).WithField("key", key).Warn("Ads cache read failed")
		case ok:
			l.metrics.RecordCacheLookup("hit")
			return ads, nil
		default:
			l.metrics.RecordCacheLookup("miss")
		}
	}

	ads, err := l.source.FetchAds(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, ads, l.ttl); err != nil {
			log.WithError(err).WithField("key", key).Warn("Ads cache write failed")
		}
	}

	return ads, nil
}

// Invalidate drops the cached list for params, or every list when params is nil
func (l *AdLoader) Invalidate(ctx context.Context, params *domain.FetchParams) error {
	if l.cache == nil {
		return nil
	}
	if params == nil {
		if err := l.cache.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear ads cache: %w", err)
		}
		return nil
	}
	if err := l.cache.Invalidate(ctx, params.CacheKey()); err != nil {
		return fmt.Errorf("failed to invalidate ads cache: %w", err)
	}
	return nil
}

// Warm loads several ad lists concurrently so the first requests hit the
// cache. It returns the number of lists loaded and the first error.
func (l *AdLoader) Warm(ctx context.Context, params ...domain.FetchParams) (int, error) {
	log := l.logger.WithContext(ctx)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		loaded   int
		firstErr error
	)

	for _, p := range params {
		wg.Add(1)
		go func(p domain.FetchParams) {
			defer wg.Done()

			ads, err := l.Load(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.WithError(err).WithField("key", p.CacheKey()).Error("Failed to warm ads cache")
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			loaded++
			log.WithFields(map[string]any{
				"key": p.CacheKey(),
				"ads": len(ads),
			}).Info("Warmed ads cache")
		}(p)
	}

	wg.Wait()
	return loaded, firstErr
}
