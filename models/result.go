package models

// RetrievalStrategy selects one of the three retrieval algorithms.
type RetrievalStrategy string

const (
	StrategySemantic RetrievalStrategy = "semantic"
	StrategyHybrid   RetrievalStrategy = "hybrid"
	StrategyExpanded RetrievalStrategy = "expanded"
)

// QueryIntent is the label the classifier assigns to a query. It is used
// only to pick a default strategy when the caller does not name one.
type QueryIntent string

const (
	IntentFactual     QueryIntent = "factual"
	IntentExploratory QueryIntent = "exploratory"
	IntentCrossModal  QueryIntent = "cross_modal"
)

// RetrievalMatch is one scored candidate in a result set.
type RetrievalMatch struct {
	ChunkID  string                 `json:"chunk_id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RetrievalResult is an ordered result set, strictly non-increasing by score
// and never longer than the requested number of results.
type RetrievalResult struct {
	Query           string            `json:"query"`
	Strategy        RetrievalStrategy `json:"strategy"`
	Matches         []RetrievalMatch  `json:"matches"`
	ExpandedQueries []string          `json:"expanded_queries,omitempty"`
	Reranked        bool              `json:"reranked,omitempty"`

	// Cached marks a result served from the cache. Excluded from
	// serialization so cached and computed payloads stay byte-identical.
	Cached bool `json:"-"`
}

// IngestResult reports the outcome of ingesting one document. Batch
// ingestion returns exactly one of these per input document, in input order.
type IngestResult struct {
	DocumentID    string `json:"document_id"`
	SourceName    string `json:"source_name"`
	Success       bool   `json:"success"`
	ChunksCreated int    `json:"chunks_created"`
	Error         string `json:"error,omitempty"`
}

// StoreStats is the payload of the stats endpoint.
type StoreStats struct {
	DocumentCount int64 `json:"document_count"`
	ChunkCount    int64 `json:"chunk_count"`
}
