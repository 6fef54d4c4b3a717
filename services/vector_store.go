package services

import (
	"context"

	"multimodal-rag-platform/models"
)

// VectorStore is the storage capability the core consumes. The index's
// internal data structures and persistence are external concerns; the core
// only needs ranked similarity search, a keyword search used by the hybrid
// strategy, per-document deletion for rollback, and counts.
//
// Implementations: internal/database (MongoDB Atlas) in production, an
// in-memory fake in tests.
type VectorStore interface {
	// Put stores one chunk with its embedding and returns the stored id.
	Put(ctx context.Context, chunk models.Chunk, embedding []float32) (string, error)

	// Query returns up to k matches ranked by similarity to the embedding,
	// restricted by the metadata filter. Scores are the store's similarity
	// metric; the engine maps them into [0,1].
	Query(ctx context.Context, embedding []float32, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error)

	// Keyword returns up to k matches ranked by lexical/term-overlap score.
	Keyword(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error)

	// Delete removes every chunk belonging to the document.
	Delete(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)

	// DocumentCount returns the number of distinct source documents.
	DocumentCount(ctx context.Context) (int64, error)
}
