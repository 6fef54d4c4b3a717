package ai

import (
	"context"
	"errors"
)

// ErrUnavailable marks a provider call that failed or timed out. Callers map
// it to their own capability-unavailable error.
var ErrUnavailable = errors.New("ai provider unavailable")

// Embedder turns text into fixed-dimension vectors. Batch input is supported
// so ingestion can amortize request overhead.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Captioner produces a text description of an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte, format string) (string, error)
}

// Completer generates text from a prompt. Used for query expansion and
// optional answer synthesis.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
