package routes

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"multimodal-rag-platform/internal/config"
	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/internal/queue"
	"multimodal-rag-platform/internal/telemetry"
	"multimodal-rag-platform/models"
	"multimodal-rag-platform/services"
	"multimodal-rag-platform/utils"
)

// SetupIngestRoutes registers the document ingestion surface. asynqClient
// may be nil, in which case async uploads are rejected; metrics may be nil.
func SetupIngestRoutes(router *gin.Engine, cfg *config.Config, pipeline *services.IngestionPipeline, asynqClient *asynq.Client, metrics *telemetry.Metrics) {
	api := router.Group("/api")

	api.POST("/documents", HandleUploadDocuments(cfg, pipeline, asynqClient, metrics))
	api.DELETE("/documents/:id", HandleDeleteDocument(pipeline))
	api.GET("/stats", HandleStats(pipeline))
}

// HandleUploadDocuments ingests one or many uploaded files. With
// ?parallel=true a batch is processed by the worker pool; with ?async=true
// files are staged to disk and enqueued for the background worker instead.
func HandleUploadDocuments(cfg *config.Config, pipeline *services.IngestionPipeline, asynqClient *asynq.Client, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "expected multipart form upload", err.Error())
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			if single, err := c.FormFile("file"); err == nil {
				files = []*multipart.FileHeader{single}
			}
		}
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "no files uploaded; use form fields 'files' or 'file'", nil)
			return
		}

		docs := make([]*models.Document, 0, len(files))
		for _, fh := range files {
			if fh.Size > cfg.MaxFileSize {
				utils.RespondWithBadRequest(c, "file too large", gin.H{
					"filename": fh.Filename, "max_bytes": cfg.MaxFileSize})
				return
			}
			raw, err := readUpload(fh)
			if err != nil {
				utils.RespondWithBadRequest(c, "failed to read upload", gin.H{
					"filename": fh.Filename, "error": err.Error()})
				return
			}
			docs = append(docs, &models.Document{
				ID:         utils.ContentHash(raw),
				SourceName: fh.Filename,
				Raw:        raw,
				Modality:   modalityForUpload(fh),
				UploadedAt: time.Now().UTC(),
			})
			logger.Debug("received upload",
				"filename", fh.Filename, "bytes", fh.Size, "doc", utils.ShortContentHash(raw))
		}

		if c.Query("async") == "true" {
			enqueueDocuments(c, cfg, asynqClient, docs)
			return
		}

		parallel, _ := strconv.ParseBool(c.Query("parallel"))
		start := time.Now()
		results := pipeline.IngestMany(c.Request.Context(), docs, parallel)

		if metrics != nil {
			perDoc := time.Since(start).Seconds() / float64(len(results))
			for i, r := range results {
				metrics.RecordIngest(string(docs[i].Modality), r.Success, r.ChunksCreated, perDoc)
			}
		}

		status := http.StatusOK
		if err := services.BatchFailure(results); err != nil {
			status = http.StatusMultiStatus
		}
		c.JSON(status, gin.H{"results": results})
	}
}

// enqueueDocuments stages uploads on disk and hands them to the asynq queue.
func enqueueDocuments(c *gin.Context, cfg *config.Config, asynqClient *asynq.Client, docs []*models.Document) {
	if asynqClient == nil {
		utils.RespondWithError(c, http.StatusNotImplemented, "async_disabled",
			"async ingestion is not configured", nil)
		return
	}

	stageDir := filepath.Join(cfg.FileStorageDir, "staged")
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		utils.RespondWithInternalError(c, "failed to create staging directory", err.Error())
		return
	}

	taskIDs := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		path := filepath.Join(stageDir, doc.ID+filepath.Ext(doc.SourceName))
		if err := os.WriteFile(path, doc.Raw, 0o600); err != nil {
			utils.RespondWithInternalError(c, "failed to stage upload", err.Error())
			return
		}

		task, err := queue.NewIngestTask(queue.IngestPayload{
			DocumentID: doc.ID,
			SourceName: doc.SourceName,
			Path:       path,
			Modality:   string(doc.Modality),
			UploadedAt: doc.UploadedAt.Format(time.RFC3339),
		})
		if err != nil {
			utils.RespondWithInternalError(c, "failed to build ingest task", err.Error())
			return
		}
		info, err := asynqClient.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			utils.RespondWithInternalError(c, "failed to enqueue ingest task", err.Error())
			return
		}
		logger.Info("enqueued document for ingestion",
			"document", doc.SourceName, "task_id", info.ID)
		taskIDs = append(taskIDs, gin.H{
			"document_id": doc.ID,
			"source_name": doc.SourceName,
			"task_id":     info.ID,
		})
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": taskIDs})
}

// HandleDeleteDocument removes every chunk of a document.
func HandleDeleteDocument(pipeline *services.IngestionPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pipeline.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	}
}

// HandleStats reports document and chunk counts.
func HandleStats(pipeline *services.IngestionPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := pipeline.Stats(c.Request.Context())
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// modalityForUpload maps an upload to its declared modality. An explicit
// Content-Type wins over the filename extension.
func modalityForUpload(fh *multipart.FileHeader) models.Modality {
	contentType := fh.Header.Get("Content-Type")
	switch {
	case contentType == "application/pdf":
		return models.ModalityPDF
	case strings.HasPrefix(contentType, "image/"):
		return models.ModalityImage
	}

	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".pdf":
		return models.ModalityPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return models.ModalityImage
	case ".xlsx", ".xlsm", ".xls":
		return models.ModalitySpreadsheet
	default:
		return models.ModalityText
	}
}
