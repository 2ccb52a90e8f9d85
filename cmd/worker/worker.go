package main

import (
	"context"
	"log"
	"time"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/encoder"
	"embedding-gateway/internal/logger"
	"embedding-gateway/internal/queue"
	"embedding-gateway/internal/sparse"
	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/services"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	var mongoClient *mongo.Client
	if cfg.RegistryEnabled {
		mongoClient, err = config.ConnectMongoDB(cfg)
		if err != nil {
			log.Printf("Document registry disabled, MongoDB unavailable: %v", err)
			mongoClient = nil
		}
	}

	store := vectorstore.New(vectorstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.CollectionName,
	})

	// The worker indexes into the same collection the gateway serves
	// from, so make sure it exists before accepting tasks.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureCollection(ctx, cfg.VectorDim, cfg.SparseDim); err != nil {
		cancel()
		log.Fatal("Failed to initialize vector collection:", err)
	}
	cancel()

	// Tasks written by the worker must carry the same sparse vectors the
	// gateway indexes with, so the worker seeds from the same previews.
	sparseVectorizer := sparse.NewVectorizer(cfg.SparseDim)
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 60*time.Second)
	services.SeedSparseVectorizer(seedCtx, store, sparseVectorizer)
	seedCancel()

	encoderService, err := encoder.NewService(cfg, sparseVectorizer)
	if err != nil {
		log.Fatal("Failed to initialize encoder:", err)
	}

	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	registry := services.NewRegistryService(mongoClient, cfg.DBName)
	ingestion := services.NewIngestionService(cfg, encoderService, store, chunker, services.NewPDFService(), registry, nil)

	processor := queue.NewTaskProcessor(ingestion)

	srv := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 10,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task %s failed: %v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestFile, processor.ProcessIngestFile)

	log.Println("Worker starting...")
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
