package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adpivot/internal/domain"
	"adpivot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const RedisKeyPrefix = "adpivot:ads:"

// keys fetched per SCAN round when clearing the cache
const scanCount = 200

// RedisAdCache implements domain.AdCache on Redis so that several server
// instances share one fetched ad list
type RedisAdCache struct {
	client *redis.Client
	logger *logger.Logger
}

// RedisOptions are the connection settings of NewRedisClient
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, opts RedisOptions, logger *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(map[string]any{
		"addr": opts.Addr,
		"db":   opts.DB,
	}).Info("Connected to Redis")

	return client, nil
}

func NewRedisAdCache(client *redis.Client, logger *logger.Logger) *RedisAdCache {
	return &RedisAdCache{client: client, logger: logger}
}

func (c *RedisAdCache) Get(ctx context.Context, key string) ([]domain.Ad, bool, error) {
	raw, err := c.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached ads: %w", err)
	}

	var ads []domain.Ad
	if err := json.Unmarshal(raw, &ads); err != nil {
		// a corrupt entry is a miss; the next Set overwrites it
		c.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("Discarding unreadable cached ads")
		return nil, false, nil
	}
	if ads == nil {
		ads = []domain.Ad{}
	}
	return ads, true, nil
}

// Set stores ads under key. A zero ttl never expires.
func (c *RedisAdCache) Set(ctx context.Context, key string, ads []domain.Ad, ttl time.Duration) error {
	raw, err := json.Marshal(ads)
	if err != nil {
		return fmt.Errorf("failed to marshal ads: %w", err)
	}
	if err := c.client.Set(ctx, RedisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache ads: %w", err)
	}
	return nil
}

func (c *RedisAdCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, RedisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached ads: %w", err)
	}
	return nil
}

// Clear deletes every key under RedisKeyPrefix
func (c *RedisAdCache) Clear(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, RedisKeyPrefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cached ads: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear cached ads: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.WithContext(ctx).WithField("count", deleted).Info("Cleared redis ads cache")
	return nil
}
