package services

import (
	"math"
	"sort"
	"time"

	"multimodal-rag-platform/models"
)

// Reranker applies a secondary scoring pass over a candidate set: a weighted
// blend of the original relevance score, a recency factor when timestamp
// metadata is present, and a length-normalization factor penalizing very
// short or very long chunks. With neutral metadata the composite is monotonic
// in the original score, so reranking never disturbs an order it has no
// signal to improve.
type Reranker struct {
	relevanceWeight float64
	recencyWeight   float64
	lengthWeight    float64
	optimalLength   int
	halfLife        time.Duration
	now             func() time.Time
}

// NewReranker creates a reranker from the engine config.
func NewReranker(cfg RetrievalConfig) *Reranker {
	return &Reranker{
		relevanceWeight: cfg.RelevanceWeight,
		recencyWeight:   cfg.RecencyWeight,
		lengthWeight:    cfg.LengthWeight,
		optimalLength:   cfg.OptimalChunkLength,
		halfLife:        cfg.RecencyHalfLife,
		now:             time.Now,
	}
}

// Rerank recomputes composite scores, re-sorts, and returns the top k.
// Ties break on the original relevance score, then on chunk id, so the
// output is deterministic.
func (r *Reranker) Rerank(matches []models.RetrievalMatch, k int) []models.RetrievalMatch {
	if len(matches) == 0 {
		return matches
	}

	type scored struct {
		match     models.RetrievalMatch
		original  float64
		composite float64
	}

	candidates := make([]scored, len(matches))
	for i, m := range matches {
		composite := r.relevanceWeight*m.Score +
			r.recencyWeight*r.recencyFactor(m.Metadata) +
			r.lengthWeight*r.lengthFactor(len(m.Text))
		candidates[i] = scored{match: m, original: m.Score, composite: composite}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].composite != candidates[j].composite {
			return candidates[i].composite > candidates[j].composite
		}
		if candidates[i].original != candidates[j].original {
			return candidates[i].original > candidates[j].original
		}
		return candidates[i].match.ChunkID < candidates[j].match.ChunkID
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]models.RetrievalMatch, len(candidates))
	for i, c := range candidates {
		c.match.Score = c.composite
		out[i] = c.match
	}
	return out
}

// recencyFactor decays from 1 toward 0 with the chunk's age. Chunks without
// a parseable timestamp get the neutral midpoint so missing metadata neither
// rewards nor penalizes.
func (r *Reranker) recencyFactor(metadata map[string]interface{}) float64 {
	ts, ok := timestampFrom(metadata)
	if !ok {
		return 0.5
	}
	age := r.now().Sub(ts)
	if age < 0 {
		age = 0
	}
	return math.Exp2(-age.Hours() / r.halfLife.Hours())
}

// lengthFactor peaks at the optimal chunk length and falls off linearly,
// hitting zero at 3x the optimum.
func (r *Reranker) lengthFactor(length int) float64 {
	deviation := math.Abs(float64(length-r.optimalLength)) / (2 * float64(r.optimalLength))
	if deviation > 1 {
		return 0
	}
	return 1 - deviation
}

func timestampFrom(metadata map[string]interface{}) (time.Time, bool) {
	if metadata == nil {
		return time.Time{}, false
	}
	raw, ok := metadata["upload_timestamp"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
