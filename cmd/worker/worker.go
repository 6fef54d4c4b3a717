package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"multimodal-rag-platform/internal/ai"
	"multimodal-rag-platform/internal/config"
	"multimodal-rag-platform/internal/database"
	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/internal/queue"
	"multimodal-rag-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// The worker shares the Redis-backed result cache with the API process
	// so its ingestion writes invalidate cached queries everywhere.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()
	cache := services.NewRedisResultCache(rdb, cfg.CacheTTL)

	// Capability providers
	local := ai.NewLocalEmbedder(cfg.VectorDimensions)
	var embedder services.Embedder = local
	var captioner services.Captioner
	if cfg.EmbeddingsProvider != "local" {
		gemini, err := ai.NewGeminiProvider(context.Background(), ai.GeminiOptions{
			APIKey:         cfg.GeminiAPIKey,
			EmbedModel:     cfg.EmbeddingsModel,
			GenerateModel:  cfg.GenerateModel,
			Dimension:      cfg.VectorDimensions,
			RequestsPerMin: cfg.GeminiRequestsPerMin,
			Timeout:        cfg.CapabilityTimeout,
		})
		if err != nil {
			log.Fatal("Failed to initialize Gemini provider:", err)
		}
		defer gemini.Close()
		embedder = ai.NewFallbackEmbedder(gemini, local)
		captioner = gemini
	}

	store := database.NewMongoVectorStore(
		mongoClient.Database(cfg.DBName).Collection(config.ChunksCollection),
		database.Options{
			VectorSearchEnabled: cfg.VectorSearchEnabled,
			TextSearchEnabled:   cfg.TextSearchEnabled,
			VectorIndexName:     cfg.VectorIndexName,
			SearchIndexName:     cfg.SearchIndexName,
		},
	)

	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	registry := services.NewNormalizerRegistry(captioner, cfg.MinPDFTextChars)
	pipeline := services.NewIngestionPipeline(registry, chunker, embedder, store, cache, cfg.IngestWorkers)

	// Redis options for Asynq
	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.IngestWorkers,
			Queues: map[string]int{
				"ingest":  7,
				"default": 3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipeline)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.HandleIngest)

	logger.Info("Starting ingestion worker",
		"concurrency", cfg.IngestWorkers, "redis", cfg.RedisURL)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
