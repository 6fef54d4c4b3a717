package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	DocumentsIngested metric.Int64Counter
	ChunksCreated     metric.Int64Counter
	IngestDuration    metric.Float64Histogram
	QueriesServed     metric.Int64Counter
	CacheHits         metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("multimodal-rag-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"ingestion.documents.total",
		metric.WithDescription("Documents ingested, by modality and outcome"),
	)
	if err != nil {
		return nil, err
	}

	chunksCreated, err := meter.Int64Counter(
		"ingestion.chunks.total",
		metric.WithDescription("Chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Per-document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queriesServed, err := meter.Int64Counter(
		"retrieval.queries.total",
		metric.WithDescription("Retrieval queries served, by strategy"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"retrieval.cache.hits",
		metric.WithDescription("Result cache hits"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		DocumentsIngested: documentsIngested,
		ChunksCreated:     chunksCreated,
		IngestDuration:    ingestDuration,
		QueriesServed:     queriesServed,
		CacheHits:         cacheHits,
	}, nil
}

// RecordRequest records one HTTP request
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// RecordIngest records one document ingestion outcome
func (m *Metrics) RecordIngest(modality string, success bool, chunks int, duration float64) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("modality", modality),
		attribute.Bool("success", success),
	)
	m.DocumentsIngested.Add(ctx, 1, attrs)
	m.ChunksCreated.Add(ctx, int64(chunks), attrs)
	m.IngestDuration.Record(ctx, duration, attrs)
}

// RecordQuery records one retrieval query
func (m *Metrics) RecordQuery(strategy string, cacheHit bool) {
	ctx := context.Background()
	m.QueriesServed.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
	if cacheHit {
		m.CacheHits.Add(ctx, 1)
	}
}
