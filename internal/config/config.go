package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Upload handling
	MaxFileSize    int64
	FileStorageDir string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Capability providers
	GeminiAPIKey         string
	EmbeddingsProvider   string // "gemini" (remote with local fallback), "local"
	EmbeddingsModel      string
	GenerateModel        string
	VectorDimensions     int
	GeminiRequestsPerMin int
	CapabilityTimeout    time.Duration

	// MongoDB Atlas Search/Vector Search
	VectorSearchEnabled bool
	TextSearchEnabled   bool
	VectorIndexName     string
	SearchIndexName     string

	// Chunking
	MaxChunkSize    int
	ChunkOverlap    int
	MinPDFTextChars int

	// Ingestion
	IngestWorkers int

	// Result cache
	CacheBackend         string // "memory", "redis"
	CacheTTL             time.Duration
	CacheJanitorInterval time.Duration

	// Retrieval policy
	SemanticWeight     float64
	LexicalWeight      float64
	RelevanceWeight    float64
	RecencyWeight      float64
	LengthWeight       float64
	OptimalChunkLength int
	MaxExpansions      int
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	DefaultNResults    int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/multimodal_rag"),
		DBName:      getEnv("DB_NAME", "multimodal_rag"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		EmbeddingsProvider:   getEnv("EMBEDDINGS_PROVIDER", "gemini"),
		EmbeddingsModel:      getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		GenerateModel:        getEnv("GENERATE_MODEL", "gemini-2.0-flash"),
		VectorDimensions:     getEnvInt("VECTOR_DIM", 768),
		GeminiRequestsPerMin: getEnvInt("GEMINI_REQUESTS_PER_MIN", 60),
		CapabilityTimeout:    getEnvDuration("CAPABILITY_TIMEOUT", 30*time.Second),

		VectorSearchEnabled: getEnvBool("MONGODB_VECTOR_ENABLED", false),
		TextSearchEnabled:   getEnvBool("MONGODB_SEARCH_ENABLED", false),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "chunks_vector"),
		SearchIndexName:     getEnv("MONGODB_SEARCH_INDEX", "chunks_text"),

		MaxChunkSize:    getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 200),
		MinPDFTextChars: getEnvInt("MIN_PDF_TEXT_CHARS", 32),

		IngestWorkers: getEnvInt("INGEST_WORKERS", 4),

		CacheBackend:         getEnv("CACHE_BACKEND", "redis"),
		CacheTTL:             getEnvDuration("CACHE_TTL", time.Hour),
		CacheJanitorInterval: getEnvDuration("CACHE_JANITOR_INTERVAL", 5*time.Minute),

		SemanticWeight:     getEnvFloat64("SEMANTIC_WEIGHT", 0.7),
		LexicalWeight:      getEnvFloat64("LEXICAL_WEIGHT", 0.3),
		RelevanceWeight:    getEnvFloat64("RERANK_RELEVANCE_WEIGHT", 0.7),
		RecencyWeight:      getEnvFloat64("RERANK_RECENCY_WEIGHT", 0.15),
		LengthWeight:       getEnvFloat64("RERANK_LENGTH_WEIGHT", 0.15),
		OptimalChunkLength: getEnvInt("OPTIMAL_CHUNK_LENGTH", 500),
		MaxExpansions:      getEnvInt("MAX_QUERY_EXPANSIONS", 3),
		RetryAttempts:      getEnvInt("CAPABILITY_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:     getEnvDuration("CAPABILITY_RETRY_BASE_DELAY", 100*time.Millisecond),
		DefaultNResults:    getEnvInt("DEFAULT_N_RESULTS", 5),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.EmbeddingsProvider == "gemini" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file or use EMBEDDINGS_PROVIDER=local")
	}
	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.MaxChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
