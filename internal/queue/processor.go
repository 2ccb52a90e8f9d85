package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"embedding-gateway/services"
)

// TaskProcessor executes queued ingests inside the worker process.
type TaskProcessor struct {
	ingestion *services.IngestionService
}

func NewTaskProcessor(ingestion *services.IngestionService) *TaskProcessor {
	return &TaskProcessor{ingestion: ingestion}
}

// ProcessIngestFile reads the stored upload and runs the regular ingest
// pipeline on it. The stored file is removed after a successful ingest;
// failed attempts keep it for the retry.
func (p *TaskProcessor) ProcessIngestFile(ctx context.Context, t *asynq.Task) error {
	var payload IngestFilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log.Printf("processing queued ingest: document=%s file=%s", payload.DocumentID, payload.Filename)

	data, err := os.ReadFile(payload.FilePath)
	if err != nil {
		return fmt.Errorf("read stored upload %s: %w", payload.FilePath, err)
	}

	_, err = p.ingestion.IngestFileAs(ctx, payload.DocumentID, payload.Filename, payload.ContentType, data, services.IngestOptions{
		Chunked:      payload.Chunked,
		Hybrid:       payload.Hybrid,
		ChunkSize:    payload.ChunkSize,
		ChunkOverlap: payload.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	if err := os.Remove(payload.FilePath); err != nil {
		log.Printf("failed to remove stored upload %s: %v", payload.FilePath, err)
	}

	log.Printf("queued ingest completed: document=%s", payload.DocumentID)
	return nil
}
