package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "chain-risk:"

// RedisCache is a Redis implementation of the CacheRepository interface.
// Expiry is delegated to Redis key TTLs.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

type redisEnvelope struct {
	Payload   []byte    `json:"payload"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRedisCache connects to Redis and creates a new cache
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", db))
	return &RedisCache{rdb: rdb, logger: logger}, nil
}

func redisKey(key core.CacheKey) string {
	return redisKeyPrefix + key.String()
}

// Get retrieves an unexpired cache entry
func (c *RedisCache) Get(ctx context.Context, key core.CacheKey) (*core.CacheEntry, error) {
	raw, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	entry, err := decodeEnvelope(key, raw)
	if err != nil {
		return nil, err
	}
	if entry.Expired(time.Now()) {
		return nil, core.ErrCacheMiss
	}
	return entry, nil
}

// Set stores a cache entry with a TTL matching its expiry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	raw, err := encodeEnvelope(entry)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, redisKey(entry.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, key core.CacheKey) error {
	if err := c.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis evicts expired keys itself
func (c *RedisCache) Cleanup(ctx context.Context) error {
	return nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Stop closes the Redis connection
func (c *RedisCache) Stop() {
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}

func encodeEnvelope(entry *core.CacheEntry) ([]byte, error) {
	raw, err := json.Marshal(redisEnvelope{
		Payload:   entry.Payload,
		StoredAt:  entry.StoredAt,
		ExpiresAt: entry.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return raw, nil
}

func decodeEnvelope(key core.CacheKey, raw []byte) (*core.CacheEntry, error) {
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &core.CacheEntry{
		Key:       key,
		Payload:   env.Payload,
		StoredAt:  env.StoredAt,
		ExpiresAt: env.ExpiresAt,
	}, nil
}
