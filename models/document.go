package models

import "time"

// DocumentRecord is the registry entry kept in MongoDB for each ingested
// document. The vector index remains the source of truth for points; the
// registry backs listing, delete-by-filename lookups and inventory export.
type DocumentRecord struct {
	DocumentID  string    `bson:"document_id" json:"document_id"`
	Filename    string    `bson:"filename" json:"filename"`
	ContentType string    `bson:"content_type" json:"content_type"`
	Kind        string    `bson:"kind" json:"kind"`
	Chunked     bool      `bson:"chunked" json:"chunked"`
	Hybrid      bool      `bson:"hybrid" json:"hybrid"`
	TotalChunks int       `bson:"total_chunks" json:"total_chunks"`
	VectorIDs   []string  `bson:"vector_ids" json:"vector_ids"`
	SizeBytes   int64     `bson:"size_bytes" json:"size_bytes"`
	UploadedAt  time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// IngestResult is returned by the ingestion pipeline and serialized as the
// ingest response body.
type IngestResult struct {
	DocumentID string   `json:"document_id"`
	VectorIDs  []string `json:"vector_ids"`
	Chunked    bool     `json:"chunked"`
	Hybrid     bool     `json:"hybrid"`
}

// DeleteResult reports what a delete operation removed.
type DeleteResult struct {
	DeletedCount int      `json:"deleted_count"`
	VectorIDs    []string `json:"vector_ids"`
}

// ListEntry is one row of the /list response, mirroring the payload fields
// exposed per point.
type ListEntry struct {
	VectorID    string `json:"vector_id"`
	Kind        string `json:"kind"`
	DocumentID  string `json:"document_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Preview     string `json:"preview,omitempty"`
	IsChunk     bool   `json:"is_chunk,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}
