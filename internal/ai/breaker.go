package ai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"multimodal-rag-platform/internal/logger"
)

// FallbackEmbedder wraps a remote embedder with a circuit breaker and falls
// back to a local embedder on repeated remote failures. Provider choice is
// never hard-coded inside retrieval or ingestion logic; both consume this
// Embedder.
type FallbackEmbedder struct {
	remote  Embedder
	local   Embedder
	breaker *gobreaker.CircuitBreaker
}

// NewFallbackEmbedder creates the breaker-wrapped embedder. The breaker opens
// after consecutive remote failures and probes the remote again after the
// cool-down.
func NewFallbackEmbedder(remote, local Embedder) *FallbackEmbedder {
	settings := gobreaker.Settings{
		Name:        "remote-embedder",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &FallbackEmbedder{
		remote:  remote,
		local:   local,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Dimension returns the embedding vector size; remote and local agree on it.
func (f *FallbackEmbedder) Dimension() int {
	return f.remote.Dimension()
}

// EmbedText embeds one text, preferring the remote provider.
func (f *FallbackEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts through the remote provider; if the call fails or
// the breaker is open, the local embedder serves the request instead.
func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.remote.EmbedBatch(ctx, texts)
	})
	if err == nil {
		return out.([][]float32), nil
	}

	// Do not fall back on caller cancellation; only on provider trouble.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger.Warn("remote embedding failed, using local fallback", "error", err)
	return f.local.EmbedBatch(ctx, texts)
}
