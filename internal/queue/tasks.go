package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
	"multimodal-rag-platform/services"
)

const TaskIngestDocument = "document:ingest"

// IngestPayload describes one queued document. The upload handler persists
// the raw bytes under Path before enqueueing; the worker reads, ingests and
// removes the file.
type IngestPayload struct {
	DocumentID string `json:"document_id"`
	SourceName string `json:"source_name"`
	Path       string `json:"path"`
	Modality   string `json:"modality"`
	UploadedAt string `json:"uploaded_at"`
}

// NewIngestTask creates an asynq task for one document.
func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// TaskProcessor handles queued ingestion tasks against the pipeline.
type TaskProcessor struct {
	pipeline *services.IngestionPipeline
}

func NewTaskProcessor(pipeline *services.IngestionPipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

// HandleIngest processes one queued document. Malformed payloads and
// validation failures skip retry; capability outages return an error so
// asynq retries with its backoff.
func (p *TaskProcessor) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	raw, err := os.ReadFile(payload.Path)
	if err != nil {
		return fmt.Errorf("failed to read staged upload %s: %v: %w", payload.Path, err, asynq.SkipRetry)
	}

	uploadedAt, _ := time.Parse(time.RFC3339, payload.UploadedAt)
	doc := &models.Document{
		ID:         payload.DocumentID,
		SourceName: payload.SourceName,
		Path:       payload.Path,
		Raw:        raw,
		Modality:   models.Modality(payload.Modality),
		UploadedAt: uploadedAt,
	}

	result := p.pipeline.IngestOne(ctx, doc)
	if !result.Success {
		logger.Error("queued ingestion failed",
			"document", payload.SourceName, "error", result.Error)
		if strings.HasPrefix(result.Error, "validation failed") {
			// Bad input stays bad on retry.
			return fmt.Errorf("ingestion of %s failed: %s: %w", payload.SourceName, result.Error, asynq.SkipRetry)
		}
		return fmt.Errorf("ingestion of %s failed: %s", payload.SourceName, result.Error)
	}

	if err := os.Remove(payload.Path); err != nil {
		logger.Warn("failed to remove staged upload", "path", payload.Path, "error", err)
	}

	logger.Info("queued document ingested",
		"document", payload.SourceName, "chunks", result.ChunksCreated)
	return nil
}
