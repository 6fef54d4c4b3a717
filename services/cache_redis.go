package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/redis/go-redis/v9"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

const (
	redisCachePrefix  = "ragcache"
	redisCacheVersion = redisCachePrefix + ":version"
)

// RedisResultCache is the shared ResultCache for multi-process deployments.
// Payloads are brotli-compressed JSON. Global invalidation bumps a version
// counter that is part of every key, so Clear is O(1) and stale entries just
// age out on their TTL.
type RedisResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisResultCache creates a Redis-backed cache with the given TTL.
func NewRedisResultCache(rdb *redis.Client, ttl time.Duration) *RedisResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisResultCache{rdb: rdb, ttl: ttl}
}

// Get fetches and decodes a cached result. Any Redis or decode trouble is a
// cache miss, never an error for the caller.
func (c *RedisResultCache) Get(ctx context.Context, key string) (*models.RetrievalResult, bool) {
	fullKey, err := c.versionedKey(ctx, key)
	if err != nil {
		return nil, false
	}

	compressed, err := c.rdb.Get(ctx, fullKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("result cache read failed", "error", err)
		}
		return nil, false
	}

	payload, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		logger.Warn("result cache decompress failed", "error", err)
		return nil, false
	}

	var result models.RetrievalResult
	if err := json.Unmarshal(payload, &result); err != nil {
		logger.Warn("result cache decode failed", "error", err)
		return nil, false
	}
	return &result, true
}

// Set stores a compressed snapshot with the configured TTL.
func (c *RedisResultCache) Set(ctx context.Context, key string, result *models.RetrievalResult) error {
	fullKey, err := c.versionedKey(ctx, key)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize cached result: %w", err)
	}

	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to compress cached result: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to flush compressed result: %w", err)
	}

	if err := c.rdb.Set(ctx, fullKey, buf.Bytes(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached result: %w", err)
	}
	return nil
}

// Clear invalidates every entry by bumping the key version.
func (c *RedisResultCache) Clear(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, redisCacheVersion).Err(); err != nil {
		return fmt.Errorf("failed to bump cache version: %w", err)
	}
	return nil
}

func (c *RedisResultCache) versionedKey(ctx context.Context, key string) (string, error) {
	version, err := c.rdb.Get(ctx, redisCacheVersion).Int64()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("failed to read cache version: %w", err)
	}
	return fmt.Sprintf("%s:v%d:%s", redisCachePrefix, version, key), nil
}
