// Package queue defines the async ingest tasks and their processor. Large
// uploads are written to disk by the API process, enqueued through Redis,
// and embedded by the worker so the upload request returns immediately.
package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskIngestFile = "ingest:file"
)

// IngestFilePayload carries everything the worker needs to replay the
// ingest away from the original HTTP request.
type IngestFilePayload struct {
	DocumentID   string `json:"document_id"`
	FilePath     string `json:"file_path"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	Chunked      bool   `json:"chunked"`
	Hybrid       bool   `json:"hybrid"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

// NewIngestFileTask builds the asynq task for one saved upload.
func NewIngestFileTask(p IngestFilePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestFile,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}
