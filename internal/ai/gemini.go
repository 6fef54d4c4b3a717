package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const captionPrompt = "Describe this image concisely for search indexing. " +
	"Mention the main subjects, any visible text, and the overall scene."

// GeminiProvider implements Embedder, Captioner and Completer against the
// Google Generative AI API. All calls share one rate limiter and a per-call
// timeout; a timed-out call surfaces as ErrUnavailable, never a partial
// result.
type GeminiProvider struct {
	client     *genai.Client
	embedModel string
	genModel   string
	dimension  int
	limiter    *rate.Limiter
	timeout    time.Duration
}

// GeminiOptions configures a GeminiProvider.
type GeminiOptions struct {
	APIKey         string
	EmbedModel     string // e.g. "text-embedding-004"
	GenerateModel  string // e.g. "gemini-2.0-flash"
	Dimension      int
	RequestsPerMin int
	Timeout        time.Duration
}

// NewGeminiProvider creates a provider with its own API client.
func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("missing API key for Gemini provider")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if opts.EmbedModel == "" {
		opts.EmbedModel = "text-embedding-004"
	}
	if opts.GenerateModel == "" {
		opts.GenerateModel = "gemini-2.0-flash"
	}
	if opts.Dimension <= 0 {
		opts.Dimension = 768
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 60
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &GeminiProvider{
		client:     client,
		embedModel: opts.EmbedModel,
		genModel:   opts.GenerateModel,
		dimension:  opts.Dimension,
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMin)/60.0), opts.RequestsPerMin),
		timeout:    opts.Timeout,
	}, nil
}

// Dimension returns the embedding vector size.
func (p *GeminiProvider) Dimension() int {
	return p.dimension
}

// EmbedText embeds a single text.
func (p *GeminiProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one API round trip.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := p.client.EmbeddingModel(p.embedModel)
	batch := model.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: batch embed: %w", ErrUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrUnavailable, len(texts), len(resp.Embeddings))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrUnavailable, i)
		}
		vecs[i] = e.Values
	}
	return vecs, nil
}

// Caption describes an image. format is the image subtype ("png", "jpeg").
func (p *GeminiProvider) Caption(ctx context.Context, image []byte, format string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := p.client.GenerativeModel(p.genModel)
	resp, err := model.GenerateContent(ctx,
		genai.ImageData(format, image),
		genai.Text(captionPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("%w: caption: %w", ErrUnavailable, err)
	}

	caption := extractText(resp)
	if caption == "" {
		return "", fmt.Errorf("%w: empty caption response", ErrUnavailable)
	}
	return caption, nil
}

// Complete generates text for a prompt.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := p.client.GenerativeModel(p.genModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: completion: %w", ErrUnavailable, err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion response", ErrUnavailable)
	}
	return text, nil
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
