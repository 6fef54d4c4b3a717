package services

import (
	"context"
	"errors"
	"sync"

	"multimodal-rag-platform/models"
)

// fakeStore is an in-memory VectorStore with call counters, so tests can
// assert that cached queries skip the store entirely and that rollback
// removes partially written documents.
type fakeStore struct {
	mu sync.Mutex

	chunks  []models.Chunk
	deleted []string

	queryMatches   []models.RetrievalMatch
	keywordMatches []models.RetrievalMatch

	putCalls     int
	queryCalls   int
	keywordCalls int
	countCalls   int

	failPutAfter int // fail the Nth Put (1-based); 0 disables
	queryErr     error
	countErr     error
}

func (s *fakeStore) Put(_ context.Context, chunk models.Chunk, _ []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failPutAfter > 0 && s.putCalls >= s.failPutAfter {
		return "", errors.New("store write refused")
	}
	s.chunks = append(s.chunks, chunk)
	return chunk.ChunkID, nil
}

func (s *fakeStore) Query(_ context.Context, _ []float32, k int, _ map[string]interface{}) ([]models.RetrievalMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryCalls++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return capped(s.queryMatches, k), nil
}

func (s *fakeStore) Keyword(_ context.Context, _ string, k int, _ map[string]interface{}) ([]models.RetrievalMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywordCalls++
	return capped(s.keywordMatches, k), nil
}

func (s *fakeStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, documentID)
	kept := s.chunks[:0]
	for _, ch := range s.chunks {
		if ch.DocumentID != documentID {
			kept = append(kept, ch)
		}
	}
	s.chunks = kept
	return nil
}

func (s *fakeStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++
	if s.countErr != nil {
		return 0, s.countErr
	}
	if len(s.chunks) > 0 {
		return int64(len(s.chunks)), nil
	}
	return int64(len(s.queryMatches) + len(s.keywordMatches)), nil
}

func (s *fakeStore) DocumentCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, ch := range s.chunks {
		seen[ch.DocumentID] = struct{}{}
	}
	return int64(len(seen)), nil
}

func capped(matches []models.RetrievalMatch, k int) []models.RetrievalMatch {
	out := make([]models.RetrievalMatch, len(matches))
	copy(out, matches)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// fakeEmbedder returns a fixed vector for every text.
type fakeEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	fail       bool
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedCalls++
	if e.fail {
		return nil, errors.New("embedding model offline")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

// fakeCompleter returns a canned completion or an error.
type fakeCompleter struct {
	output string
	err    error
	calls  int
}

func (c *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.output, nil
}

// fakeCaptioner returns a canned caption or an error.
type fakeCaptioner struct {
	caption string
	err     error
}

func (c *fakeCaptioner) Caption(_ context.Context, _ []byte, _ string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.caption, nil
}
