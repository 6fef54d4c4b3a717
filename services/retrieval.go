package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

var retrievalTracer = otel.Tracer("services.retrieval")

const expansionPromptTemplate = `Given this search query: %q

Generate %d different phrasings of this query that could help find relevant information.
Return only the queries, one per line, without numbering or explanation.`

// RetrievalConfig carries the policy knobs of the engine. Defaults are in
// DefaultRetrievalConfig.
type RetrievalConfig struct {
	// Hybrid blending (semantic-dominant).
	SemanticWeight float64
	LexicalWeight  float64

	// Rerank composite scoring.
	RelevanceWeight    float64
	RecencyWeight      float64
	LengthWeight       float64
	OptimalChunkLength int
	RecencyHalfLife    time.Duration

	// MaxExpansions caps the number of generated paraphrases; the original
	// query always runs in addition.
	MaxExpansions int

	// Retry policy for idempotent capability reads.
	RetryAttempts  int
	RetryBaseDelay time.Duration

	DefaultNResults int
}

// DefaultRetrievalConfig returns the default policy: hybrid 0.7/0.3,
// rerank 0.7/0.15/0.15 around a 500-character optimum, up to 3 expansions.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SemanticWeight:     0.7,
		LexicalWeight:      0.3,
		RelevanceWeight:    0.7,
		RecencyWeight:      0.15,
		LengthWeight:       0.15,
		OptimalChunkLength: 500,
		RecencyHalfLife:    30 * 24 * time.Hour,
		MaxExpansions:      3,
		RetryAttempts:      3,
		RetryBaseDelay:     100 * time.Millisecond,
		DefaultNResults:    5,
	}
}

// RetrievalRequest describes one retrieval call. Strategy is optional; when
// empty the classifier picks one from the query's intent.
type RetrievalRequest struct {
	Query    string                   `json:"query"`
	NResults int                      `json:"n_results"`
	Strategy models.RetrievalStrategy `json:"strategy,omitempty"`
	Filter   map[string]interface{}   `json:"filter,omitempty"`
	Rerank   bool                     `json:"rerank,omitempty"`
}

// RetrievalEngine executes semantic, hybrid, or query-expansion retrieval
// against the vector store, with optional reranking and a result cache in
// front.
type RetrievalEngine struct {
	store      VectorStore
	embedder   Embedder
	completer  Completer
	classifier *QueryClassifier
	cache      ResultCache
	reranker   *Reranker
	cfg        RetrievalConfig
}

// NewRetrievalEngine wires the engine. completer and cache may be nil: a nil
// completer degrades the expanded strategy to semantic, a nil cache disables
// caching.
func NewRetrievalEngine(store VectorStore, embedder Embedder, completer Completer, cache ResultCache, cfg RetrievalConfig) *RetrievalEngine {
	return &RetrievalEngine{
		store:      store,
		embedder:   embedder,
		completer:  completer,
		classifier: NewQueryClassifier(),
		cache:      cache,
		reranker:   NewReranker(cfg),
		cfg:        cfg,
	}
}

// Classify exposes the intent classifier on the boundary surface.
func (e *RetrievalEngine) Classify(query string) models.QueryIntent {
	return e.classifier.Classify(query)
}

// ClearCache drops all cached results.
func (e *RetrievalEngine) ClearCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Clear(ctx)
}

// Retrieve runs one retrieval request end to end: resolve the strategy,
// check the cache, execute, optionally rerank, store and return.
func (e *RetrievalEngine) Retrieve(ctx context.Context, req RetrievalRequest) (*models.RetrievalResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, newValidationError("query must not be empty")
	}
	if req.NResults <= 0 {
		req.NResults = e.cfg.DefaultNResults
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = e.classifier.DefaultStrategy(e.classifier.Classify(req.Query))
	}
	switch strategy {
	case models.StrategySemantic, models.StrategyHybrid, models.StrategyExpanded:
	default:
		return nil, newValidationError("unknown strategy %q", strategy)
	}

	ctx, span := retrievalTracer.Start(ctx, "retrieval.Retrieve",
		trace.WithAttributes(
			attribute.String("retrieval.strategy", string(strategy)),
			attribute.Int("retrieval.n_results", req.NResults),
			attribute.Bool("retrieval.rerank", req.Rerank),
		))
	defer span.End()

	// A hit is served without any store round trip. Ingest and delete both
	// clear the cache, so a hit cannot outlive an emptied store.
	key := CacheKey(req.Query, strategy, req.NResults, req.Rerank, req.Filter)
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			logger.Debug("result cache hit", "strategy", strategy, "query_len", len(req.Query))
			cached.Cached = true
			return cached, nil
		}
	}

	count, err := e.storeCount(ctx)
	if err != nil {
		return nil, capabilityError("vector store", err)
	}
	if count == 0 {
		return nil, ErrNoData
	}

	result, err := e.execute(ctx, strategy, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if req.Rerank {
		result.Matches = e.reranker.Rerank(result.Matches, req.NResults)
		result.Reranked = true
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, result); err != nil {
			logger.Warn("failed to cache retrieval result", "error", err)
		}
	}
	return result, nil
}

func (e *RetrievalEngine) execute(ctx context.Context, strategy models.RetrievalStrategy, req RetrievalRequest) (*models.RetrievalResult, error) {
	var (
		matches  []models.RetrievalMatch
		expanded []string
		err      error
	)
	switch strategy {
	case models.StrategyHybrid:
		matches, err = e.hybridRetrieval(ctx, req)
	case models.StrategyExpanded:
		matches, expanded, err = e.expandedRetrieval(ctx, req)
	default:
		matches, err = e.semanticRetrieval(ctx, req.Query, req.NResults, req.Filter)
	}
	if err != nil {
		return nil, err
	}

	return &models.RetrievalResult{
		Query:           req.Query,
		Strategy:        strategy,
		Matches:         matches,
		ExpandedQueries: expanded,
	}, nil
}

// semanticRetrieval embeds the query once and delegates a single similarity
// query to the store.
func (e *RetrievalEngine) semanticRetrieval(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	var vec []float32
	err := withRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryBaseDelay, func() error {
		var embErr error
		vec, embErr = e.embedder.EmbedText(ctx, query)
		return embErr
	})
	if err != nil {
		return nil, capabilityError("embedding", err)
	}

	var matches []models.RetrievalMatch
	err = withRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryBaseDelay, func() error {
		var qErr error
		matches, qErr = e.store.Query(ctx, vec, k, filter)
		return qErr
	})
	if err != nil {
		return nil, capabilityError("vector store", err)
	}

	for i := range matches {
		matches[i].Score = clampScore(matches[i].Score)
	}
	sortMatches(matches)
	return truncate(matches, k), nil
}

// hybridRetrieval blends semantic and lexical candidates. Both score sets are
// normalized before the weighted merge; duplicates keep the higher combined
// score.
func (e *RetrievalEngine) hybridRetrieval(ctx context.Context, req RetrievalRequest) ([]models.RetrievalMatch, error) {
	semantic, err := e.semanticRetrieval(ctx, req.Query, req.NResults, req.Filter)
	if err != nil {
		return nil, err
	}

	var lexical []models.RetrievalMatch
	err = withRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryBaseDelay, func() error {
		var kErr error
		lexical, kErr = e.store.Keyword(ctx, req.Query, req.NResults, req.Filter)
		return kErr
	})
	if err != nil {
		return nil, capabilityError("vector store", err)
	}

	normalizeScores(semantic)
	normalizeScores(lexical)

	merged := make(map[string]models.RetrievalMatch, len(semantic)+len(lexical))
	for _, m := range semantic {
		m.Score = e.cfg.SemanticWeight * m.Score
		merged[m.ChunkID] = m
	}
	for _, m := range lexical {
		combined := e.cfg.LexicalWeight * m.Score
		if existing, ok := merged[m.ChunkID]; ok {
			// Candidate found by both retrievers: blend the contributions.
			combined += existing.Score
			existing.Score = combined
			merged[m.ChunkID] = existing
			continue
		}
		m.Score = combined
		merged[m.ChunkID] = m
	}

	return truncate(flattenSorted(merged), req.NResults), nil
}

// expandedRetrieval retrieves for the original query and completion-generated
// variants, scoring each candidate by the best score it achieved across all
// sub-queries. Completion failure falls back to plain semantic retrieval.
func (e *RetrievalEngine) expandedRetrieval(ctx context.Context, req RetrievalRequest) ([]models.RetrievalMatch, []string, error) {
	queries := e.expandQuery(ctx, req.Query)

	merged := make(map[string]models.RetrievalMatch)
	for _, q := range queries {
		candidates, err := e.semanticRetrieval(ctx, q, req.NResults, req.Filter)
		if err != nil {
			if q == req.Query {
				return nil, nil, err
			}
			logger.Warn("sub-query retrieval failed, skipping variant", "error", err)
			continue
		}
		for _, m := range candidates {
			if existing, ok := merged[m.ChunkID]; !ok || m.Score > existing.Score {
				merged[m.ChunkID] = m
			}
		}
	}

	var expanded []string
	if len(queries) > 1 {
		expanded = queries
	}
	return truncate(flattenSorted(merged), req.NResults), expanded, nil
}

// expandQuery asks the completion capability for paraphrases. On any failure
// it returns just the original query, degrading the strategy instead of
// failing it.
func (e *RetrievalEngine) expandQuery(ctx context.Context, query string) []string {
	if e.completer == nil || e.cfg.MaxExpansions <= 0 {
		return []string{query}
	}

	prompt := fmt.Sprintf(expansionPromptTemplate, query, e.cfg.MaxExpansions)
	out, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		logger.Warn("query expansion failed, falling back to semantic", "error", err)
		return []string{query}
	}

	queries := []string{query}
	variants := 0
	for _, line := range strings.Split(out, "\n") {
		variant := strings.TrimSpace(line)
		if variant == "" || strings.EqualFold(variant, query) {
			continue
		}
		queries = append(queries, variant)
		variants++
		if variants >= e.cfg.MaxExpansions {
			break
		}
	}
	return queries
}

func (e *RetrievalEngine) storeCount(ctx context.Context) (int64, error) {
	var count int64
	err := withRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryBaseDelay, func() error {
		var cErr error
		count, cErr = e.store.Count(ctx)
		return cErr
	})
	return count, err
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// normalizeScores scales a candidate set so its best score is 1. Empty or
// all-zero sets are left alone.
func normalizeScores(matches []models.RetrievalMatch) {
	var max float64
	for _, m := range matches {
		if m.Score > max {
			max = m.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range matches {
		matches[i].Score /= max
	}
}

// sortMatches orders by score descending with chunk id as the deterministic
// tie-break.
func sortMatches(matches []models.RetrievalMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
}

func flattenSorted(merged map[string]models.RetrievalMatch) []models.RetrievalMatch {
	out := make([]models.RetrievalMatch, 0, len(merged))
	for _, m := range merged {
		out = append(out, m)
	}
	sortMatches(out)
	return out
}

func truncate(matches []models.RetrievalMatch, k int) []models.RetrievalMatch {
	if k > 0 && len(matches) > k {
		return matches[:k]
	}
	return matches
}
