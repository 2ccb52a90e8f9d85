package models

// SearchResult is one scored hit from the retrieval engine. Scores are
// similarities (higher is better); after reranking the score is the
// cross-encoder relevance value and OriginalScore keeps the retrieval
// similarity for comparison. DenseScore and SparseScore are populated in
// hybrid mode only.
type SearchResult struct {
	VectorID      string   `json:"vector_id"`
	Score         float64  `json:"score"`
	OriginalScore *float64 `json:"original_score,omitempty"`
	DenseScore    float64  `json:"dense_score,omitempty"`
	SparseScore   float64  `json:"sparse_score,omitempty"`
	Kind          string   `json:"kind"`
	DocumentID    string   `json:"document_id,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	ContentType   string   `json:"content_type,omitempty"`
	Preview       string   `json:"preview,omitempty"`
	IsChunk       bool     `json:"is_chunk,omitempty"`
	ChunkIndex    int      `json:"chunk_index,omitempty"`
	TotalChunks   int      `json:"total_chunks,omitempty"`
}

// DocumentGroup aggregates results sharing a document_id. Score is the
// maximum score among the document's hits; Chunks keeps up to the
// requested number of representative hits in retrieval order.
type DocumentGroup struct {
	DocumentID string         `json:"document_id"`
	Score      float64        `json:"score"`
	Filename   string         `json:"filename,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	TotalHits  int            `json:"total_hits"`
	Chunks     []SearchResult `json:"chunks"`
}

// SearchResponse is the wire shape of a search call. Exactly one of
// Results or Groups is populated depending on group_by_document.
type SearchResponse struct {
	Grouped bool            `json:"grouped"`
	Results []SearchResult  `json:"results,omitempty"`
	Groups  []DocumentGroup `json:"groups,omitempty"`
}
