package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag-platform/models"
)

func testRedisCache(t *testing.T) *RedisResultCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisResultCache(rdb, time.Minute)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache := testRedisCache(t)
	ctx := context.Background()

	result := &models.RetrievalResult{
		Query:    "q",
		Strategy: models.StrategyHybrid,
		Matches: []models.RetrievalMatch{
			{ChunkID: "c1", Text: strings.Repeat("compressible text ", 100), Score: 0.9},
			{ChunkID: "c2", Text: "short", Score: 0.4,
				Metadata: map[string]interface{}{"page": 3.0}},
		},
	}
	require.NoError(t, cache.Set(ctx, "key", result))

	got, ok := cache.Get(ctx, "key")
	require.True(t, ok, "stored entry must decompress and decode")
	assert.Equal(t, result.Query, got.Query)
	assert.Equal(t, result.Strategy, got.Strategy)
	assert.Equal(t, result.Matches, got.Matches)

	_, ok = cache.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestRedisCacheClearHidesPriorEntries(t *testing.T) {
	cache := testRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", &models.RetrievalResult{Query: "a"}))
	require.NoError(t, cache.Set(ctx, "b", &models.RetrievalResult{Query: "b"}))

	_, ok := cache.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, cache.Clear(ctx))

	_, ok = cache.Get(ctx, "a")
	assert.False(t, ok, "cleared entries must be invisible")
	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok)

	// Writes after Clear land under the new version and are readable.
	require.NoError(t, cache.Set(ctx, "a", &models.RetrievalResult{Query: "fresh"}))
	got, ok := cache.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Query)
}

func TestRedisCacheRepeatedClears(t *testing.T) {
	cache := testRedisCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Set(ctx, "key", &models.RetrievalResult{Query: "q"}))
		_, ok := cache.Get(ctx, "key")
		require.True(t, ok)

		require.NoError(t, cache.Clear(ctx))
		_, ok = cache.Get(ctx, "key")
		require.False(t, ok)
	}
}
