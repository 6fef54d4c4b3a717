package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag-platform/models"
)

func testPipeline(store *fakeStore, cache ResultCache) *IngestionPipeline {
	registry := NewNormalizerRegistry(&fakeCaptioner{caption: "a test image"}, 32)
	chunker := NewChunker(300, 50)
	return NewIngestionPipeline(registry, chunker, &fakeEmbedder{}, store, cache, 2)
}

func textDoc(name, text string) *models.Document {
	return &models.Document{
		SourceName: name,
		Raw:        []byte(text),
		Modality:   models.ModalityText,
		UploadedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestIngestOneCreatesChunks(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(store, nil)

	text := strings.Repeat("A sentence that carries a little meaning. ", 20)
	result := pipeline.IngestOne(context.Background(), textDoc("doc.txt", text))

	require.True(t, result.Success, "unexpected error: %s", result.Error)
	assert.Greater(t, result.ChunksCreated, 1)
	assert.Len(t, store.chunks, result.ChunksCreated)

	for i, ch := range store.chunks {
		assert.Equal(t, result.DocumentID, ch.DocumentID)
		assert.Equal(t, "doc.txt", ch.SourceName)
		assert.Equal(t, models.ModalityText, ch.Modality)
		assert.Equal(t, i, ch.Order)
		assert.NotEmpty(t, ch.ChunkID)
		assert.Equal(t, "2026-01-10T12:00:00Z", ch.Metadata["upload_timestamp"])
	}
}

func TestIngestOneEmptyDocumentFails(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(store, nil)

	result := pipeline.IngestOne(context.Background(), &models.Document{
		SourceName: "empty.txt", Modality: models.ModalityText,
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no content")
	assert.Empty(t, store.chunks)
}

func TestIngestManyIsolatesFailures(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(store, nil)

	docs := []*models.Document{
		textDoc("one.txt", "The first document has enough words to chunk."),
		{SourceName: "two.bin", Raw: []byte{0x00}, Modality: models.Modality("video")},
		textDoc("three.txt", "The third document also has content."),
	}

	results := pipeline.IngestMany(context.Background(), docs, false)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Greater(t, results[0].ChunksCreated, 0)
	assert.Equal(t, "one.txt", results[0].SourceName)

	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "unsupported modality")

	assert.True(t, results[2].Success)
	assert.Greater(t, results[2].ChunksCreated, 0)
	assert.Equal(t, "three.txt", results[2].SourceName)
}

func TestIngestManyParallelPreservesOrder(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(store, nil)

	var docs []*models.Document
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		docs = append(docs, textDoc(name, "Content for "+name+" with a few extra words."))
	}

	results := pipeline.IngestMany(context.Background(), docs, true)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, docs[i].SourceName, r.SourceName, "result %d out of order", i)
		assert.True(t, r.Success)
	}
}

func TestIngestRollsBackPartialWrites(t *testing.T) {
	store := &fakeStore{failPutAfter: 2}
	pipeline := testPipeline(store, nil)

	text := strings.Repeat("Plenty of sentences to guarantee several chunks. ", 30)
	result := pipeline.IngestOne(context.Background(), textDoc("doc.txt", text))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "vector store")
	require.Len(t, store.deleted, 1, "partial writes must be rolled back")
	assert.Empty(t, store.chunks, "no chunks may survive a failed ingestion")
}

func TestIngestInvalidatesCache(t *testing.T) {
	store := &fakeStore{}
	cache := NewMemoryResultCache(time.Minute)
	pipeline := testPipeline(store, cache)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "stale-key", &models.RetrievalResult{Query: "q"}))

	result := pipeline.IngestOne(ctx, textDoc("doc.txt", "Fresh content changes every answer."))
	require.True(t, result.Success)

	_, ok := cache.Get(ctx, "stale-key")
	assert.False(t, ok, "successful ingestion must clear the cache")
}

func TestIngestFailureKeepsCache(t *testing.T) {
	store := &fakeStore{}
	cache := NewMemoryResultCache(time.Minute)
	pipeline := testPipeline(store, cache)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", &models.RetrievalResult{Query: "q"}))

	result := pipeline.IngestOne(ctx, &models.Document{
		SourceName: "broken", Raw: []byte("x"), Modality: models.Modality("video"),
	})
	require.False(t, result.Success)

	_, ok := cache.Get(ctx, "key")
	assert.True(t, ok, "failed ingestion must not clear the cache")
}

func TestDeleteDocumentClearsStoreAndCache(t *testing.T) {
	store := &fakeStore{}
	cache := NewMemoryResultCache(time.Minute)
	pipeline := testPipeline(store, cache)
	ctx := context.Background()

	result := pipeline.IngestOne(ctx, textDoc("doc.txt", "Some content worth storing."))
	require.True(t, result.Success)
	require.NoError(t, cache.Set(ctx, "key", &models.RetrievalResult{Query: "q"}))

	require.NoError(t, pipeline.DeleteDocument(ctx, result.DocumentID))
	assert.Empty(t, store.chunks)
	_, ok := cache.Get(ctx, "key")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(store, nil)
	ctx := context.Background()

	require.True(t, pipeline.IngestOne(ctx, textDoc("one.txt", "First document content here.")).Success)
	require.True(t, pipeline.IngestOne(ctx, textDoc("two.txt", "Second document content here.")).Success)

	stats, err := pipeline.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.DocumentCount)
	assert.Equal(t, int64(len(store.chunks)), stats.ChunkCount)
}
