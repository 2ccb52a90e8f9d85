package models

// Document kinds stored in point payloads.
const (
	KindText  = "text"
	KindImage = "image"
)

// Named vector fields in the index collection.
const (
	VectorDense  = "dense"
	VectorSparse = "sparse"
)

// PointPayload is the metadata stored alongside vectors in the index.
// All chunks of one document share the same DocumentID and TotalChunks;
// ChunkIndex values within a document are contiguous starting at 0.
type PointPayload struct {
	Kind        string `json:"kind"`
	DocumentID  string `json:"document_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Preview     string `json:"preview,omitempty"`
	IsChunk     bool   `json:"is_chunk,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	HasSparse   bool   `json:"has_sparse_embedding,omitempty"`
}

// PreviewLength is how many characters of the source text are kept in the
// payload for display and as reranker input.
const PreviewLength = 100

// MakePreview truncates text to PreviewLength characters.
func MakePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength])
}
