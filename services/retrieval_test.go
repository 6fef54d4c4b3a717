package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag-platform/models"
)

func testEngineConfig() RetrievalConfig {
	cfg := DefaultRetrievalConfig()
	cfg.RetryAttempts = 1
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func TestRetrieveEmptyQueryIsValidationError(t *testing.T) {
	engine := NewRetrievalEngine(&fakeStore{}, &fakeEmbedder{}, nil, nil, testEngineConfig())

	_, err := engine.Retrieve(context.Background(), RetrievalRequest{Query: "   "})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestRetrieveUnknownStrategyIsValidationError(t *testing.T) {
	engine := NewRetrievalEngine(&fakeStore{}, &fakeEmbedder{}, nil, nil, testEngineConfig())

	_, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "q", Strategy: models.RetrievalStrategy("bm25"),
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestRetrieveEmptyStoreReturnsNoData(t *testing.T) {
	engine := NewRetrievalEngine(&fakeStore{}, &fakeEmbedder{}, nil, nil, testEngineConfig())

	_, err := engine.Retrieve(context.Background(), RetrievalRequest{Query: "anything here at all"})
	require.ErrorIs(t, err, ErrNoData)
}

func TestRetrieveEmbeddingFailureIsCapabilityUnavailable(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{{ChunkID: "a", Score: 0.5}}}
	engine := NewRetrievalEngine(store, &fakeEmbedder{fail: true}, nil, nil, testEngineConfig())

	_, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "what is the answer", Strategy: models.StrategySemantic,
	})
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestSemanticRetrievalOrdersAndTruncates(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{
		{ChunkID: "low", Score: 0.2},
		{ChunkID: "high", Score: 0.9},
		{ChunkID: "mid", Score: 0.5},
	}}
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, nil, nil, testEngineConfig())

	result, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "what is the answer", Strategy: models.StrategySemantic, NResults: 2,
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "high", result.Matches[0].ChunkID)
	assert.Equal(t, "mid", result.Matches[1].ChunkID)
	assert.Equal(t, models.StrategySemantic, result.Strategy)
}

func TestHybridRetrievalMergesWithoutDuplicates(t *testing.T) {
	store := &fakeStore{
		queryMatches: []models.RetrievalMatch{
			{ChunkID: "a", Score: 1.0},
			{ChunkID: "b", Score: 0.5},
		},
		keywordMatches: []models.RetrievalMatch{
			{ChunkID: "b", Score: 1.0},
			{ChunkID: "c", Score: 0.8},
		},
	}
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, nil, nil, testEngineConfig())

	result, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "term overlap", Strategy: models.StrategyHybrid, NResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 3)

	seen := map[string]bool{}
	for _, m := range result.Matches {
		assert.False(t, seen[m.ChunkID], "duplicate chunk %s", m.ChunkID)
		seen[m.ChunkID] = true
	}

	// 0.7/0.3 weighting: a = 0.7, b = 0.35 + 0.3 = 0.65, c = 0.24.
	assert.Equal(t, "a", result.Matches[0].ChunkID)
	assert.Equal(t, "b", result.Matches[1].ChunkID)
	assert.Equal(t, "c", result.Matches[2].ChunkID)
	assert.InDelta(t, 0.65, result.Matches[1].Score, 1e-9)
}

func TestExpandedRetrievalMergesByMaxScore(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{
		{ChunkID: "a", Score: 0.8},
		{ChunkID: "b", Score: 0.6},
	}}
	completer := &fakeCompleter{output: "variant one\nvariant two\n"}
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, completer, nil, testEngineConfig())

	result, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "vague theme", Strategy: models.StrategyExpanded, NResults: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, completer.calls)
	// Original plus two variants, one store query each.
	assert.Equal(t, 3, store.queryCalls)
	assert.Equal(t, []string{"vague theme", "variant one", "variant two"}, result.ExpandedQueries)

	require.Len(t, result.Matches, 2)
	assert.Equal(t, "a", result.Matches[0].ChunkID)
}

func TestExpandedRetrievalCapsParaphrases(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{{ChunkID: "a", Score: 0.8}}}
	completer := &fakeCompleter{output: "v1\nv2\nv3\nv4\nv5\n"}
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, completer, nil, testEngineConfig())

	result, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "vague theme", Strategy: models.StrategyExpanded,
	})
	require.NoError(t, err)
	// Original plus at most MaxExpansions paraphrases.
	assert.Equal(t, 4, store.queryCalls)
	assert.Equal(t, []string{"vague theme", "v1", "v2", "v3"}, result.ExpandedQueries)
}

func TestExpandedRetrievalFallsBackWhenCompletionFails(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{{ChunkID: "a", Score: 0.8}}}
	completer := &fakeCompleter{err: errors.New("completion offline")}
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, completer, nil, testEngineConfig())

	result, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "vague theme", Strategy: models.StrategyExpanded,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.queryCalls)
	assert.Empty(t, result.ExpandedQueries)
	require.Len(t, result.Matches, 1)
}

func TestRetrieveDefaultStrategyFromClassifier(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{{ChunkID: "a", Score: 0.8}}}
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, nil, nil, testEngineConfig())

	// Factual phrasing with no explicit strategy selects semantic retrieval.
	result, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "what is the deployment target",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StrategySemantic, result.Strategy)
}

func TestRetrieveCachesResults(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.4},
	}}
	cache := NewMemoryResultCache(time.Minute)
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, nil, cache, testEngineConfig())

	req := RetrievalRequest{Query: "What is X?", Strategy: models.StrategySemantic, NResults: 2}

	first, err := engine.Retrieve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, store.queryCalls)
	require.Equal(t, 1, store.countCalls)
	assert.False(t, first.Cached)

	second, err := engine.Retrieve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, store.queryCalls, "cache hit must not query the store")
	assert.Equal(t, 1, store.countCalls, "cache hit must not count the store")
	assert.Zero(t, store.keywordCalls)
	assert.True(t, second.Cached)

	// Byte-identical payloads for the caller.
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestRetrieveRerankedResultsAreCachedUnderDistinctKey(t *testing.T) {
	store := &fakeStore{queryMatches: []models.RetrievalMatch{
		{ChunkID: "a", Text: "some text", Score: 0.9},
	}}
	cache := NewMemoryResultCache(time.Minute)
	engine := NewRetrievalEngine(store, &fakeEmbedder{}, nil, cache, testEngineConfig())

	plain, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "what is x", Strategy: models.StrategySemantic,
	})
	require.NoError(t, err)
	assert.False(t, plain.Reranked)

	reranked, err := engine.Retrieve(context.Background(), RetrievalRequest{
		Query: "what is x", Strategy: models.StrategySemantic, Rerank: true,
	})
	require.NoError(t, err)
	assert.True(t, reranked.Reranked)
	assert.Equal(t, 2, store.queryCalls, "rerank flag must not share the plain cache entry")
}
