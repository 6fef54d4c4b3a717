package services

import "context"

// The model capabilities the core consumes, as narrow contracts. The
// implementations live in internal/ai (remote Gemini provider, local
// fallback, circuit-breaker wrapper); the core never depends on a concrete
// provider.

// Embedder turns text into fixed-dimension vectors. Batch input amortizes
// request overhead during ingestion.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Captioner produces a text description of an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte, format string) (string, error)
}

// Completer generates text from a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
