package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic, dependency-free feature-hashing embedder.
// It is the fallback variant behind the circuit breaker: quality is far below
// a real model, but it keeps ingestion and retrieval available during remote
// outages, and its determinism makes it useful in tests.
type LocalEmbedder struct {
	dimension int
}

// NewLocalEmbedder creates a local embedder producing vectors of the given
// dimension, which must match the remote provider so stored vectors stay
// comparable.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &LocalEmbedder{dimension: dimension}
}

// Dimension returns the embedding vector size.
func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

// EmbedText hashes term frequencies into a fixed-size, L2-normalized vector.
func (e *LocalEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		bucket := int(sum % uint32(e.dimension))
		// Half the hash bits pick the sign so buckets cancel rather than
		// accumulate bias.
		if sum&0x80000000 != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1.0 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
