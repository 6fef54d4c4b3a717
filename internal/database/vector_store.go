package database

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"multimodal-rag-platform/models"
)

// chunkRecord is the denormalized chunk document stored in the chunks
// collection. Keeping the vector alongside the chunk enables Atlas
// $vectorSearch and $search over one collection.
type chunkRecord struct {
	ChunkID    string                 `bson:"chunk_id"`
	DocumentID string                 `bson:"document_id"`
	SourceName string                 `bson:"source_name"`
	Text       string                 `bson:"text"`
	Modality   string                 `bson:"modality"`
	Order      int                    `bson:"order"`
	StartIndex int                    `bson:"start_index"`
	EndIndex   int                    `bson:"end_index"`
	Page       int                    `bson:"page,omitempty"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty"`
	Vector     []float32              `bson:"vector"`
	Score      float64                `bson:"score,omitempty"`
}

// Options configures the MongoDB store adapter. When the Atlas search
// indexes are not available (local mongod, tests against a plain replica
// set), both searches fall back to collection scans scored in-process.
type Options struct {
	VectorSearchEnabled bool
	TextSearchEnabled   bool
	VectorIndexName     string
	SearchIndexName     string
	NumCandidatesFactor int
}

// MongoVectorStore implements services.VectorStore on a MongoDB collection,
// using Atlas $vectorSearch for similarity and $search for keyword matching
// when enabled.
type MongoVectorStore struct {
	col  *mongo.Collection
	opts Options
}

// NewMongoVectorStore creates the adapter over the given collection.
func NewMongoVectorStore(col *mongo.Collection, opts Options) *MongoVectorStore {
	if opts.VectorIndexName == "" {
		opts.VectorIndexName = "chunks_vector"
	}
	if opts.SearchIndexName == "" {
		opts.SearchIndexName = "chunks_text"
	}
	if opts.NumCandidatesFactor <= 0 {
		opts.NumCandidatesFactor = 10
	}
	return &MongoVectorStore{col: col, opts: opts}
}

// Put stores one chunk with its embedding.
func (s *MongoVectorStore) Put(ctx context.Context, chunk models.Chunk, embedding []float32) (string, error) {
	rec := chunkRecord{
		ChunkID:    chunk.ChunkID,
		DocumentID: chunk.DocumentID,
		SourceName: chunk.SourceName,
		Text:       chunk.Text,
		Modality:   string(chunk.Modality),
		Order:      chunk.Order,
		StartIndex: chunk.StartIndex,
		EndIndex:   chunk.EndIndex,
		Page:       chunk.Page,
		Metadata:   chunk.Metadata,
		Vector:     embedding,
	}
	if _, err := s.col.InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to insert chunk %s: %w", chunk.ChunkID, err)
	}
	return chunk.ChunkID, nil
}

// Query returns up to k chunks ranked by similarity to the embedding.
func (s *MongoVectorStore) Query(ctx context.Context, embedding []float32, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	if s.opts.VectorSearchEnabled {
		return s.vectorSearch(ctx, embedding, k, filter)
	}
	return s.scanSimilarity(ctx, embedding, k, filter)
}

// Keyword returns up to k chunks ranked by lexical match against the query.
func (s *MongoVectorStore) Keyword(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	if s.opts.TextSearchEnabled {
		return s.textSearch(ctx, query, k, filter)
	}
	return s.scanKeyword(ctx, query, k, filter)
}

// Delete removes every chunk belonging to the document.
func (s *MongoVectorStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("failed to delete chunks of document %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *MongoVectorStore) Count(ctx context.Context) (int64, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// DocumentCount returns the number of distinct source documents.
func (s *MongoVectorStore) DocumentCount(ctx context.Context) (int64, error) {
	ids, err := s.col.Distinct(ctx, "document_id", bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int64(len(ids)), nil
}

// vectorSearch runs an Atlas $vectorSearch aggregation. The returned
// vectorSearchScore is already normalized into [0,1] for cosine similarity.
func (s *MongoVectorStore) vectorSearch(ctx context.Context, embedding []float32, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	search := bson.M{
		"index":         s.opts.VectorIndexName,
		"path":          "vector",
		"queryVector":   embedding,
		"numCandidates": k * s.opts.NumCandidatesFactor,
		"limit":         k,
	}
	if f := filterToBSON(filter); len(f) > 0 {
		search["filter"] = f
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: search}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "vectorSearchScore"}}}},
	}
	return s.aggregate(ctx, pipeline)
}

// textSearch runs an Atlas $search text query scored by relevance, then
// normalizes scores so the best match is 1.
func (s *MongoVectorStore) textSearch(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": s.opts.SearchIndexName,
			"text":  bson.M{"query": query, "path": "text"},
		}}},
	}
	if f := filterToBSON(filter); len(f) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: f}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "searchScore"}}}},
		bson.D{{Key: "$limit", Value: k}},
	)

	matches, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	// searchScore is unbounded; scale against the best match.
	var max float64
	for _, m := range matches {
		if m.Score > max {
			max = m.Score
		}
	}
	if max > 0 {
		for i := range matches {
			matches[i].Score /= max
		}
	}
	return matches, nil
}

// scanSimilarity is the non-Atlas fallback: fetch matching chunks and score
// cosine similarity in-process. Adequate for development-sized collections.
func (s *MongoVectorStore) scanSimilarity(ctx context.Context, embedding []float32, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	return s.scan(ctx, k, filter, func(rec *chunkRecord) float64 {
		// Cosine lands in [-1,1]; shift into [0,1] to match Atlas scoring.
		return (cosineSimilarity(embedding, rec.Vector) + 1) / 2
	})
}

// scanKeyword is the non-Atlas fallback: score each chunk by the fraction
// of query terms it contains.
func (s *MongoVectorStore) scanKeyword(ctx context.Context, query string, k int, filter map[string]interface{}) ([]models.RetrievalMatch, error) {
	terms := tokenizeTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	return s.scan(ctx, k, filter, func(rec *chunkRecord) float64 {
		text := strings.ToLower(rec.Text)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		return float64(matched) / float64(len(terms))
	})
}

func (s *MongoVectorStore) scan(ctx context.Context, k int, filter map[string]interface{}, score func(*chunkRecord) float64) ([]models.RetrievalMatch, error) {
	cursor, err := s.col.Find(ctx, filterToBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var matches []models.RetrievalMatch
	for cursor.Next(ctx) {
		var rec chunkRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}
		sc := score(&rec)
		if sc <= 0 {
			continue
		}
		matches = append(matches, toMatch(&rec, sc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("chunk scan failed: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MongoVectorStore) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.RetrievalMatch, error) {
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("search aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var matches []models.RetrievalMatch
	for cursor.Next(ctx) {
		var rec chunkRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode search result: %w", err)
		}
		matches = append(matches, toMatch(&rec, rec.Score))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("search cursor failed: %w", err)
	}
	return matches, nil
}

func toMatch(rec *chunkRecord, score float64) models.RetrievalMatch {
	meta := map[string]interface{}{
		"document_id": rec.DocumentID,
		"source_name": rec.SourceName,
		"modality":    rec.Modality,
		"order":       rec.Order,
	}
	if rec.Page > 0 {
		meta["page"] = rec.Page
	}
	for k, v := range rec.Metadata {
		meta[k] = v
	}
	return models.RetrievalMatch{
		ChunkID:  rec.ChunkID,
		Text:     rec.Text,
		Score:    score,
		Metadata: meta,
	}
}

// filterToBSON maps a caller filter onto record fields. Top-level chunk
// fields filter directly; everything else addresses the metadata document.
func filterToBSON(filter map[string]interface{}) bson.M {
	out := bson.M{}
	for k, v := range filter {
		switch k {
		case "document_id", "source_name", "modality", "page":
			out[k] = v
		default:
			out["metadata."+k] = v
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenizeTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
