package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/encoder"
	"embedding-gateway/internal/telemetry"
	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/models"
)

// RetrievalService runs the read path: query embedding, dense or hybrid
// similarity search, optional cross-encoder reranking and optional
// grouping of chunk hits into documents. The dense index is required; the
// sparse side and the reranker degrade gracefully when unavailable.
type RetrievalService struct {
	cfg      *config.Config
	encoder  *encoder.Service
	store    *vectorstore.Store
	reranker *RerankService
	metrics  *telemetry.Metrics
}

// SearchOptions carry the per-request knobs. Zero values fall back to the
// configured defaults.
type SearchOptions struct {
	Limit            int
	MinScore         *float64
	Hybrid           bool
	SparseWeight     *float64
	GroupByDocument  bool
	ChunksPerDoc     int
	Rerank           bool
	RerankCandidates int
}

func NewRetrievalService(
	cfg *config.Config,
	enc *encoder.Service,
	store *vectorstore.Store,
	reranker *RerankService,
	metrics *telemetry.Metrics,
) *RetrievalService {
	return &RetrievalService{
		cfg:      cfg,
		encoder:  enc,
		store:    store,
		reranker: reranker,
		metrics:  metrics,
	}
}

// Search executes a text query. Results come back sorted by score
// descending, truncated to the limit, either flat or grouped by document.
func (s *RetrievalService) Search(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", models.ErrInvalidInput)
	}
	queryVec, err := s.encoder.EmbedQuery(ctx, query)
	if s.metrics != nil {
		s.metrics.RecordEmbeddingCall("embed_query", err == nil)
	}
	if err != nil {
		return nil, err
	}
	return s.run(ctx, query, queryVec, opts, true)
}

// SearchImage executes a query-by-image. Only the dense space can score an
// image, so a hybrid request falls back to plain search; reranking is
// skipped because the cross-encoder needs query text.
func (s *RetrievalService) SearchImage(ctx context.Context, filename string, data []byte, opts SearchOptions) (*models.SearchResponse, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image query must not be empty", models.ErrInvalidInput)
	}
	queryVec, err := s.encoder.EmbedImage(ctx, filename, data)
	if s.metrics != nil {
		s.metrics.RecordEmbeddingCall("embed_image", err == nil)
	}
	if err != nil {
		return nil, err
	}
	if opts.Hybrid {
		log.Printf("hybrid search unsupported for image queries, running dense only")
	}
	return s.run(ctx, "", queryVec, opts, false)
}

func (s *RetrievalService) run(ctx context.Context, query string, queryVec []float64, opts SearchOptions, hybridAllowed bool) (*models.SearchResponse, error) {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultSearchLimit
	}
	hybrid := opts.Hybrid && hybridAllowed

	// The configured score floor exists to keep noise out of hybrid
	// fusion. Plain dense search filters only when the caller asks.
	var minScore float64
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	} else if hybrid {
		minScore = s.cfg.DefaultMinScore
	}

	// Later stages narrow the candidate set, so retrieval overfetches:
	// grouping needs spare hits from distinct documents, and reranking
	// rescores a candidate pool larger than the final limit. The
	// candidate count bounds both the fetch and what the cross-encoder
	// sees.
	doRerank := opts.Rerank && query != ""
	fetchLimit := limit
	if opts.GroupByDocument {
		fetchLimit = limit * 5
	}
	candidates := 0
	if doRerank {
		candidates = opts.RerankCandidates
		if candidates <= 0 {
			candidates = limit * 3
			if candidates > 20 {
				candidates = 20
			}
		}
		fetchLimit = candidates
	}

	var results []models.SearchResult
	var err error
	degraded := false
	mode := "dense"
	if hybrid {
		mode = "hybrid"
		results, degraded, err = s.hybridSearch(ctx, query, queryVec, fetchLimit, minScore, opts.SparseWeight)
	} else {
		results, err = s.denseSearch(ctx, queryVec, fetchLimit, minScore)
	}
	if err != nil {
		return nil, err
	}

	if doRerank {
		if len(results) > candidates {
			results = results[:candidates]
		}
		results = s.rerank(ctx, query, results)
	}

	resp := &models.SearchResponse{}
	if opts.GroupByDocument {
		chunksPerDoc := opts.ChunksPerDoc
		if chunksPerDoc <= 0 {
			chunksPerDoc = s.cfg.DefaultChunksPerDoc
		}
		resp.Grouped = true
		resp.Groups = groupByDocument(results, limit, chunksPerDoc)
	} else {
		if len(results) > limit {
			results = results[:limit]
		}
		resp.Results = results
	}

	if s.metrics != nil {
		s.metrics.RecordSearch(mode, time.Since(start).Seconds(), degraded)
	}
	return resp, nil
}

func (s *RetrievalService) denseSearch(ctx context.Context, queryVec []float64, limit int, minScore float64) ([]models.SearchResult, error) {
	hits, err := s.store.Search(ctx, models.VectorDense, queryVec, limit, minScore)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, hitToResult(h, h.Score))
	}
	return results, nil
}

// hybridSearch queries both vector spaces and fuses scores linearly. When
// the sparse side cannot contribute, the already-computed dense query
// vector is reused for a plain dense search instead of failing the
// request.
func (s *RetrievalService) hybridSearch(ctx context.Context, query string, queryVec []float64, limit int, minScore float64, sparseWeight *float64) ([]models.SearchResult, bool, error) {
	sw := s.cfg.DefaultSparseWeight
	if sparseWeight != nil {
		sw = *sparseWeight
	}
	if sw < 0 {
		sw = 0
	}
	if sw > 1 {
		sw = 1
	}

	if !s.encoder.SparseReady() {
		log.Printf("hybrid search requested but sparse vectorizer not seeded, running dense only")
		results, err := s.denseSearch(ctx, queryVec, limit, minScore)
		return results, true, err
	}

	sideLimit := limit * 3
	denseHits, err := s.store.Search(ctx, models.VectorDense, queryVec, sideLimit, minScore)
	if err != nil {
		return nil, false, err
	}

	sparseVec := s.encoder.EmbedSparse(query)
	var sparseHits []vectorstore.Hit
	sparseFailed := sparseVec == nil
	if !sparseFailed {
		sparseHits, err = s.store.Search(ctx, models.VectorSparse, sparseVec, sideLimit, minScore)
		if err != nil {
			log.Printf("sparse search failed, degrading to dense results: %v", err)
			sparseFailed = true
		}
	}
	if sparseFailed {
		results := make([]models.SearchResult, 0, len(denseHits))
		for _, h := range denseHits {
			results = append(results, hitToResult(h, h.Score))
		}
		if len(results) > limit {
			results = results[:limit]
		}
		return results, true, nil
	}

	type fused struct {
		hit    vectorstore.Hit
		dense  float64
		sparse float64
	}
	byID := make(map[string]*fused, len(denseHits)+len(sparseHits))
	order := make([]string, 0, len(denseHits)+len(sparseHits))
	for _, h := range denseHits {
		byID[h.ID] = &fused{hit: h, dense: h.Score}
		order = append(order, h.ID)
	}
	for _, h := range sparseHits {
		if f, ok := byID[h.ID]; ok {
			f.sparse = h.Score
		} else {
			byID[h.ID] = &fused{hit: h, sparse: h.Score}
			order = append(order, h.ID)
		}
	}

	results := make([]models.SearchResult, 0, len(order))
	for _, id := range order {
		f := byID[id]
		combined := (1-sw)*f.dense + sw*f.sparse
		r := hitToResult(f.hit, combined)
		r.DenseScore = f.dense
		r.SparseScore = f.sparse
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, false, nil
}

// rerank rescores candidates with the cross-encoder. A missing or failing
// reranker leaves retrieval order untouched.
func (s *RetrievalService) rerank(ctx context.Context, query string, results []models.SearchResult) []models.SearchResult {
	if len(results) == 0 {
		return results
	}
	if s.reranker == nil || !s.reranker.Enabled() {
		log.Printf("rerank requested but reranker unavailable, keeping retrieval order")
		return results
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = rerankText(r)
	}
	scores, err := s.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(results) {
		log.Printf("rerank failed, keeping retrieval order: %v", err)
		return results
	}

	for i := range results {
		orig := results[i].Score
		results[i].OriginalScore = &orig
		results[i].Score = scores[i]
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// rerankText is what the cross-encoder sees for a hit. Images have no text
// to score, so their filename stands in.
func rerankText(r models.SearchResult) string {
	if r.Kind == models.KindImage {
		return r.Filename
	}
	return r.Preview
}

// groupByDocument folds chunk hits into per-document groups. Hits without
// a document_id predate the payload schema and are dropped; the backfill
// job repairs them.
func groupByDocument(results []models.SearchResult, limit, chunksPerDoc int) []models.DocumentGroup {
	groups := make(map[string]*models.DocumentGroup)
	order := make([]string, 0)
	for _, r := range results {
		if r.DocumentID == "" {
			continue
		}
		g, ok := groups[r.DocumentID]
		if !ok {
			g = &models.DocumentGroup{
				DocumentID: r.DocumentID,
				Filename:   r.Filename,
				Kind:       r.Kind,
			}
			groups[r.DocumentID] = g
			order = append(order, r.DocumentID)
		}
		g.TotalHits++
		if r.Score > g.Score {
			g.Score = r.Score
		}
		if len(g.Chunks) < chunksPerDoc {
			g.Chunks = append(g.Chunks, r)
		}
	}

	out := make([]models.DocumentGroup, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func hitToResult(h vectorstore.Hit, score float64) models.SearchResult {
	// Points indexed before the filename field existed display a name
	// synthesized from their preview, the same rule the backfill job uses.
	filename := h.Payload.Filename
	if filename == "" {
		filename = filenameFromPreview(h.Payload, h.ID)
	}
	return models.SearchResult{
		VectorID:    h.ID,
		Score:       score,
		Kind:        h.Payload.Kind,
		DocumentID:  h.Payload.DocumentID,
		Filename:    filename,
		ContentType: h.Payload.ContentType,
		Preview:     h.Payload.Preview,
		IsChunk:     h.Payload.IsChunk,
		ChunkIndex:  h.Payload.ChunkIndex,
		TotalChunks: h.Payload.TotalChunks,
	}
}
