package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

var ingestionTracer = otel.Tracer("services.ingestion")

// IngestionPipeline orchestrates normalization, chunking, embedding and
// storage for one or many documents. Documents are transient: once their
// chunks are written, the vector store is the system of record.
type IngestionPipeline struct {
	registry   *NormalizerRegistry
	chunker    *Chunker
	embedder   Embedder
	store      VectorStore
	cache      ResultCache
	maxWorkers int
}

// NewIngestionPipeline wires the pipeline. cache may be nil when no result
// cache is deployed; maxWorkers bounds parallel batch ingestion.
func NewIngestionPipeline(registry *NormalizerRegistry, chunker *Chunker, embedder Embedder, store VectorStore, cache ResultCache, maxWorkers int) *IngestionPipeline {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &IngestionPipeline{
		registry:   registry,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		cache:      cache,
		maxWorkers: maxWorkers,
	}
}

// IngestOne processes a single document. Failures are reported in the
// result, not returned, so callers treat one and many uniformly.
func (p *IngestionPipeline) IngestOne(ctx context.Context, doc *models.Document) models.IngestResult {
	ctx, span := ingestionTracer.Start(ctx, "ingestion.IngestOne",
		trace.WithAttributes(
			attribute.String("document.source", doc.SourceName),
			attribute.String("document.modality", string(doc.Modality)),
		))
	defer span.End()

	result := models.IngestResult{DocumentID: doc.ID, SourceName: doc.SourceName}

	created, err := p.ingestDocument(ctx, doc)
	if err != nil {
		span.RecordError(err)
		logger.Error("document ingestion failed",
			"document", doc.SourceName, "error", err)
		result.Error = err.Error()
		return result
	}

	result.DocumentID = doc.ID
	result.Success = true
	result.ChunksCreated = created
	span.SetAttributes(attribute.Int("ingestion.chunks_created", created))

	// New content can change the best answer to any cached query.
	if p.cache != nil {
		if err := p.cache.Clear(ctx); err != nil {
			logger.Warn("cache invalidation after ingest failed", "error", err)
		}
	}
	return result
}

// IngestMany processes a batch. Exactly one result per input document is
// returned in input order; one document's failure never aborts the rest.
// With parallel set, documents are processed concurrently by a bounded
// worker pool.
func (p *IngestionPipeline) IngestMany(ctx context.Context, docs []*models.Document, parallel bool) []models.IngestResult {
	ctx, span := ingestionTracer.Start(ctx, "ingestion.IngestMany",
		trace.WithAttributes(
			attribute.Int("ingestion.batch_size", len(docs)),
			attribute.Bool("ingestion.parallel", parallel),
		))
	defer span.End()

	results := make([]models.IngestResult, len(docs))

	if !parallel {
		for i, doc := range docs {
			results[i] = p.IngestOne(ctx, doc)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = p.IngestOne(gctx, doc)
			return nil
		})
	}
	g.Wait() // workers never return errors; failures live in the results

	return results
}

// DeleteDocument removes every stored chunk of a document and invalidates
// the result cache.
func (p *IngestionPipeline) DeleteDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return newValidationError("document id must not be empty")
	}
	if err := p.store.Delete(ctx, documentID); err != nil {
		return capabilityError("vector store", err)
	}
	if p.cache != nil {
		if err := p.cache.Clear(ctx); err != nil {
			logger.Warn("cache invalidation after delete failed", "error", err)
		}
	}
	return nil
}

// Stats reports document and chunk counts from the store.
func (p *IngestionPipeline) Stats(ctx context.Context) (*models.StoreStats, error) {
	chunks, err := p.store.Count(ctx)
	if err != nil {
		return nil, capabilityError("vector store", err)
	}
	docs, err := p.store.DocumentCount(ctx)
	if err != nil {
		return nil, capabilityError("vector store", err)
	}
	return &models.StoreStats{DocumentCount: docs, ChunkCount: chunks}, nil
}

// ingestDocument runs normalize → chunk → embed → store for one document.
// A document succeeds only if every chunk is embedded and stored; on any
// failure past the first write, already-written chunks are rolled back so
// the store holds all of the document's chunks or none.
func (p *IngestionPipeline) ingestDocument(ctx context.Context, doc *models.Document) (int, error) {
	if doc == nil {
		return 0, newValidationError("document is nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if len(doc.Raw) == 0 {
		return 0, newValidationError("document %s has no content", doc.SourceName)
	}

	normalizer, err := p.registry.For(doc.Modality)
	if err != nil {
		return 0, err
	}
	units, err := normalizer.Normalize(ctx, doc)
	if err != nil {
		return 0, err
	}

	chunks := p.assemble(doc, units)
	if len(chunks) == 0 {
		return 0, newValidationError("document %s produced no chunks", doc.SourceName)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	// Embedding is idempotent, so a transient provider error may be retried;
	// store writes are not, to avoid duplicate chunks.
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, capabilityError("embedding", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, capabilityError("embedding", newValidationError(
			"expected %d embeddings, got %d", len(chunks), len(embeddings)))
	}

	stored := 0
	for i, ch := range chunks {
		if _, err := p.store.Put(ctx, ch, embeddings[i]); err != nil {
			p.rollback(ctx, doc.ID, stored)
			return 0, capabilityError("vector store", err)
		}
		stored++
	}

	logger.Info("document ingested",
		"document", doc.SourceName, "modality", doc.Modality, "chunks", stored)
	return stored, nil
}

// assemble chunks every normalized unit and attaches identity and metadata.
// The position index runs across units in order, so chunks from a mixed PDF
// reconstruct the original page sequence.
func (p *IngestionPipeline) assemble(doc *models.Document, units []models.NormalizedUnit) []models.Chunk {
	var chunks []models.Chunk
	order := 0
	for _, unit := range units {
		if strings.TrimSpace(unit.Text) == "" {
			continue
		}
		for _, span := range p.chunker.Chunk(unit.Text) {
			meta := map[string]interface{}{
				"upload_timestamp": doc.UploadedAt.Format(time.RFC3339),
			}
			for k, v := range unit.Metadata {
				meta[k] = v
			}
			chunks = append(chunks, models.Chunk{
				ChunkID:    uuid.NewString(),
				DocumentID: doc.ID,
				SourceName: doc.SourceName,
				Text:       span.Text,
				Modality:   unit.Modality,
				Order:      order,
				StartIndex: span.Start,
				EndIndex:   span.End,
				Page:       unit.Page,
				Metadata:   meta,
			})
			order++
		}
	}
	return chunks
}

// rollback deletes the chunks already written for a document after a
// mid-ingestion failure. Best effort: a failed rollback is logged, and the
// document remains reported as failed either way.
func (p *IngestionPipeline) rollback(ctx context.Context, documentID string, written int) {
	if written == 0 {
		return
	}
	if err := p.store.Delete(ctx, documentID); err != nil {
		logger.Error("rollback of partially ingested document failed",
			"document_id", documentID, "written", written, "error", err)
		return
	}
	logger.Warn("rolled back partially ingested document",
		"document_id", documentID, "written", written)
}
