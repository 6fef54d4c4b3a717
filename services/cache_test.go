package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag-platform/models"
)

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	a := CacheKey("q", models.StrategySemantic, 5, false, map[string]interface{}{
		"modality": "text", "source_name": "a.pdf", "page": 3,
	})
	b := CacheKey("q", models.StrategySemantic, 5, false, map[string]interface{}{
		"page": 3, "source_name": "a.pdf", "modality": "text",
	})
	assert.Equal(t, a, b)
}

func TestCacheKeyCoversEveryParameter(t *testing.T) {
	base := CacheKey("q", models.StrategySemantic, 5, false, nil)

	assert.NotEqual(t, base, CacheKey("other", models.StrategySemantic, 5, false, nil))
	assert.NotEqual(t, base, CacheKey("q", models.StrategyHybrid, 5, false, nil))
	assert.NotEqual(t, base, CacheKey("q", models.StrategySemantic, 10, false, nil))
	assert.NotEqual(t, base, CacheKey("q", models.StrategySemantic, 5, true, nil))
	assert.NotEqual(t, base, CacheKey("q", models.StrategySemantic, 5, false,
		map[string]interface{}{"modality": "image"}))
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryResultCache(time.Minute)
	ctx := context.Background()

	result := &models.RetrievalResult{
		Query:    "q",
		Strategy: models.StrategySemantic,
		Matches:  []models.RetrievalMatch{{ChunkID: "c1", Text: "hello", Score: 0.9}},
	}
	require.NoError(t, cache.Set(ctx, "key", result))

	got, ok := cache.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, result.Matches, got.Matches)

	_, ok = cache.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryCacheReturnsSnapshots(t *testing.T) {
	cache := NewMemoryResultCache(time.Minute)
	ctx := context.Background()

	result := &models.RetrievalResult{
		Query:   "q",
		Matches: []models.RetrievalMatch{{ChunkID: "c1", Score: 0.9}},
	}
	require.NoError(t, cache.Set(ctx, "key", result))

	first, ok := cache.Get(ctx, "key")
	require.True(t, ok)
	first.Matches[0].Score = 0 // mutate the returned copy

	second, ok := cache.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, 0.9, second.Matches[0].Score)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryResultCache(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", &models.RetrievalResult{Query: "q"}))
	_, ok := cache.Get(ctx, "key")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = cache.Get(ctx, "key")
	assert.False(t, ok)
}

func TestMemoryCacheClear(t *testing.T) {
	cache := NewMemoryResultCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", &models.RetrievalResult{Query: "a"}))
	require.NoError(t, cache.Set(ctx, "b", &models.RetrievalResult{Query: "b"}))
	require.NoError(t, cache.Clear(ctx))

	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok)
}
