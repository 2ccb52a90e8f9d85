package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Vector index (Qdrant)
	QdrantURL      string
	QdrantAPIKey   string
	CollectionName string
	VectorDim      int
	SparseDim      int

	// Encoder sidecar
	EncoderServiceURL string
	EncoderTimeout    int // seconds
	EncoderRPM        int // client-side requests-per-minute budget

	// Reranker sidecar
	RerankerServiceURL string
	RerankerEnabled    bool

	// Embeddings configuration
	EmbeddingsProvider    string // "nomic" (sidecar, default), "google"
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"

	// Chunking defaults
	MaxChunkSize int
	ChunkOverlap int

	// Search defaults
	DefaultSearchLimit  int
	DefaultMinScore     float64
	DefaultSparseWeight float64
	DefaultChunksPerDoc int

	// Upload handling
	MaxFileSize         int64
	FileStorageDir      string
	SyncProcessingLimit int64 // uploads above this are queued for the worker

	// Document registry (MongoDB)
	MongoURI        string
	DBName          string
	RegistryEnabled bool

	// Redis (rate limiting, task queue broker)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// Optional bearer auth on mutating routes
	AuthEnabled bool
	JWTSecret   string

	// Filename backfill repair job
	BackfillCron string // empty disables the scheduled run

	// Telemetry
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
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:   getEnv("QDRANT_API_KEY", ""),
		CollectionName: getEnv("COLLECTION_NAME", "jam_embeddings"),
		VectorDim:      getEnvInt("VECTOR_DIM", 768),
		SparseDim:      getEnvInt("SPARSE_DIM", 1024),

		EncoderServiceURL: getEnv("ENCODER_SERVICE_URL", "http://localhost:8001"),
		EncoderTimeout:    getEnvInt("ENCODER_TIMEOUT", 120),
		EncoderRPM:        getEnvInt("ENCODER_RPM", 300),

		RerankerServiceURL: getEnv("RERANKER_SERVICE_URL", ""),
		RerankerEnabled:    getEnvBool("RERANKER_ENABLED", true),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "nomic"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		DefaultSearchLimit:  getEnvInt("DEFAULT_SEARCH_LIMIT", 5),
		DefaultMinScore:     getEnvFloat64("DEFAULT_MIN_SCORE", 0.3),
		DefaultSparseWeight: getEnvFloat64("DEFAULT_SPARSE_WEIGHT", 0.5),
		DefaultChunksPerDoc: getEnvInt("DEFAULT_CHUNKS_PER_DOC", 3),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB

		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/embedding_gateway"),
		DBName:          getEnv("DB_NAME", "embedding_gateway"),
		RegistryEnabled: getEnvBool("REGISTRY_ENABLED", true),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		AuthEnabled: getEnvBool("AUTH_ENABLED", false),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		BackfillCron: getEnv("BACKFILL_CRON", ""),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when EMBEDDINGS_PROVIDER=google - set it in .env file")
	}

	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when AUTH_ENABLED=true - set it in .env file")
	}

	if cfg.VectorDim <= 0 || cfg.SparseDim <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM and SPARSE_DIM must be positive")
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
