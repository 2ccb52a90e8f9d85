package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/encoder"
	"embedding-gateway/internal/logger"
	"embedding-gateway/internal/sparse"
	"embedding-gateway/internal/telemetry"
	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/middleware"
	"embedding-gateway/routes"
	"embedding-gateway/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Telemetry
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("embedding-gateway", cfg.OTLPEndpoint)
		if err != nil {
			log.Printf("Tracing disabled: %v", err)
		} else {
			defer shutdown()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("Metrics disabled: %v", err)
		metrics = nil
	}

	// Document registry (optional)
	var mongoClient *mongo.Client
	if cfg.RegistryEnabled {
		mongoClient, err = config.ConnectMongoDB(cfg)
		if err != nil {
			log.Printf("Document registry disabled, MongoDB unavailable: %v", err)
			mongoClient = nil
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				mongoClient.Disconnect(ctx)
			}()
		}
	}

	// Redis backs rate limiting and the async ingest queue. Both fail
	// open when it is down.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Redis unavailable, rate limiting and async ingest disabled: %v", err)
		rdb = nil
	}

	// Vector index
	storeCfg := vectorstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.CollectionName,
	}
	if metrics != nil {
		storeCfg.OnOperation = metrics.RecordVectorStoreOp
	}
	store := vectorstore.New(storeCfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureCollection(ctx, cfg.VectorDim, cfg.SparseDim); err != nil {
		cancel()
		log.Fatal("Failed to initialize vector collection:", err)
	}
	cancel()

	// Sparse vectorizer, seeded from the previews already indexed. An
	// empty collection leaves it unseeded and hybrid requests degrade to
	// dense until documents arrive and the process restarts.
	sparseVectorizer := sparse.NewVectorizer(cfg.SparseDim)
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 60*time.Second)
	services.SeedSparseVectorizer(seedCtx, store, sparseVectorizer)
	seedCancel()

	encoderService, err := encoder.NewService(cfg, sparseVectorizer)
	if err != nil {
		log.Fatal("Failed to initialize encoder:", err)
	}
	if metrics != nil {
		encoderService.OnBreakerStateChange(metrics.RecordCircuitBreakerState)
	}

	// Services
	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	registry := services.NewRegistryService(mongoClient, cfg.DBName)
	ingestion := services.NewIngestionService(cfg, encoderService, store, chunker, services.NewPDFService(), registry, metrics)
	reranker := services.NewRerankService(cfg)
	retrieval := services.NewRetrievalService(cfg, encoderService, store, reranker, metrics)
	documents := services.NewDocumentService(store, registry)
	backfill := services.NewBackfillService(store)
	export := services.NewExportService(documents)
	webpage := services.NewWebpageService()

	// Scheduled filename backfill
	scheduler := services.NewSchedulerService(backfill)
	if err := scheduler.Start(cfg.BackfillCron); err != nil {
		log.Printf("Backfill scheduler disabled: %v", err)
	}
	defer scheduler.Stop()

	// Async ingest producer
	var asynqClient *asynq.Client
	if rdb != nil {
		asynqClient = asynq.NewClient(config.AsynqRedisOpt(cfg))
		defer asynqClient.Close()
	}

	// Router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	routes.SetupHealthRoutes(router, encoderService, store, reranker)
	routes.SetupIngestRoutes(router, cfg, ingestion, webpage, asynqClient, authMiddleware)
	routes.SetupSearchRoutes(router, cfg, retrieval, documents)
	routes.SetupDocumentRoutes(router, cfg, documents, backfill, export, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
