package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"multimodal-rag-platform/internal/ai"
	"multimodal-rag-platform/internal/config"
	"multimodal-rag-platform/internal/database"
	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/internal/telemetry"
	"multimodal-rag-platform/middleware"
	"multimodal-rag-platform/routes"
	"multimodal-rag-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("multimodal-rag-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracing:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Redis backs the result cache, rate limiting and the async queue
	var rdb *redis.Client
	if cfg.CacheBackend == "redis" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer rdb.Close()
	}

	// Capability providers and the core
	embedder, captioner, completer, closeProviders, err := buildProviders(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize AI providers:", err)
	}
	defer closeProviders()

	store := database.NewMongoVectorStore(
		mongoClient.Database(cfg.DBName).Collection(config.ChunksCollection),
		database.Options{
			VectorSearchEnabled: cfg.VectorSearchEnabled,
			TextSearchEnabled:   cfg.TextSearchEnabled,
			VectorIndexName:     cfg.VectorIndexName,
			SearchIndexName:     cfg.SearchIndexName,
		},
	)

	var cache services.ResultCache
	if rdb != nil {
		cache = services.NewRedisResultCache(rdb, cfg.CacheTTL)
	} else {
		memCache := services.NewMemoryResultCache(cfg.CacheTTL)
		stopJanitor := memCache.StartJanitor(cfg.CacheJanitorInterval)
		defer stopJanitor()
		cache = memCache
	}

	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	registry := services.NewNormalizerRegistry(captioner, cfg.MinPDFTextChars)
	pipeline := services.NewIngestionPipeline(registry, chunker, embedder, store, cache, cfg.IngestWorkers)
	engine := services.NewRetrievalEngine(store, embedder, completer, cache, retrievalConfig(cfg))
	answers := services.NewAnswerService(engine, completer)

	// Async ingestion queue
	var asynqClient *asynq.Client
	if rdb != nil {
		connOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Failed to configure task queue:", err)
		}
		asynqClient = asynq.NewClient(connOpt)
		defer asynqClient.Close()
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware(metrics))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupIngestRoutes(router, cfg, pipeline, asynqClient, metrics)
	routes.SetupQueryRoutes(router, engine, answers, metrics)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// buildProviders assembles the embedding, captioning and completion
// capabilities from configuration. With the gemini provider, embedding runs
// behind a circuit breaker that falls back to the local feature-hashing
// embedder during remote outages.
func buildProviders(ctx context.Context, cfg *config.Config) (services.Embedder, services.Captioner, services.Completer, func(), error) {
	local := ai.NewLocalEmbedder(cfg.VectorDimensions)

	if cfg.EmbeddingsProvider == "local" {
		return local, nil, nil, func() {}, nil
	}

	gemini, err := ai.NewGeminiProvider(ctx, ai.GeminiOptions{
		APIKey:         cfg.GeminiAPIKey,
		EmbedModel:     cfg.EmbeddingsModel,
		GenerateModel:  cfg.GenerateModel,
		Dimension:      cfg.VectorDimensions,
		RequestsPerMin: cfg.GeminiRequestsPerMin,
		Timeout:        cfg.CapabilityTimeout,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	embedder := ai.NewFallbackEmbedder(gemini, local)
	return embedder, gemini, gemini, func() { gemini.Close() }, nil
}

// retrievalConfig maps environment configuration onto the engine's policy.
func retrievalConfig(cfg *config.Config) services.RetrievalConfig {
	rc := services.DefaultRetrievalConfig()
	rc.SemanticWeight = cfg.SemanticWeight
	rc.LexicalWeight = cfg.LexicalWeight
	rc.RelevanceWeight = cfg.RelevanceWeight
	rc.RecencyWeight = cfg.RecencyWeight
	rc.LengthWeight = cfg.LengthWeight
	rc.OptimalChunkLength = cfg.OptimalChunkLength
	rc.MaxExpansions = cfg.MaxExpansions
	rc.RetryAttempts = cfg.RetryAttempts
	rc.RetryBaseDelay = cfg.RetryBaseDelay
	rc.DefaultNResults = cfg.DefaultNResults
	return rc
}
