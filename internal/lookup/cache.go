package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "lookup:v1:"

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache on top of a go-redis client.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// CachedProvider serves successful lookups from a cache. Failures are never
// cached, and cache errors only cost a provider round trip.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProvider(next Provider, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedProvider) Lookup(ctx context.Context, externalID string) (*models.PlaceDetails, error) {
	key := cacheKeyPrefix + externalID

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var details models.PlaceDetails
		if err := json.Unmarshal(raw, &details); err == nil {
			return &details, nil
		}
		c.logger.Warn("Discarding undecodable cached lookup", "external_id", externalID)
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("Lookup cache read failed", "external_id", externalID, "error", err)
	}

	details, err := c.next.Lookup(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(details); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("Lookup cache write failed", "external_id", externalID, "error", err)
		}
	}
	return details, nil
}
