package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"embedding-gateway/models"
)

func seedCorpus(t *testing.T, stack *testStack) {
	t.Helper()
	docs := []string{
		"postgres streaming replication and failover",
		"kubernetes ingress controller routing",
		"baking sourdough bread at home",
	}
	for _, d := range docs {
		if _, err := stack.ingestion.IngestText(context.Background(), d, IngestOptions{}); err != nil {
			t.Fatalf("ingest %q: %v", d, err)
		}
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	stack := newTestStack(t, "")
	_, err := stack.retrieval.Search(context.Background(), "", SearchOptions{})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchReturnsSortedResults(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)

	resp, err := stack.retrieval.Search(context.Background(), "postgres replication", SearchOptions{Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Grouped {
		t.Error("ungrouped search must not set grouped")
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results")
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
	if !strings.Contains(resp.Results[0].Preview, "replication") {
		t.Errorf("top result %q does not match query", resp.Results[0].Preview)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)

	resp, err := stack.retrieval.Search(context.Background(), "postgres", SearchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
}

func TestSearchMinScoreFilters(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)

	high := 0.999
	resp, err := stack.retrieval.Search(context.Background(), "zzzz qqqq", SearchOptions{Limit: 5, MinScore: &high})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected no results above %.3f, got %d", high, len(resp.Results))
	}
}

func TestScoreFloorAppliesToHybridOnly(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)
	stack.cfg.DefaultMinScore = 0.99

	// A barely related query scores low everywhere. Plain search must
	// still surface the best matches because the configured floor guards
	// hybrid fusion, not the default read path.
	plain, err := stack.retrieval.Search(context.Background(), "zzzz qqqq", SearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(plain.Results) == 0 {
		t.Fatal("plain search filtered everything, floor must not apply")
	}

	hybrid, err := stack.retrieval.Search(context.Background(), "zzzz qqqq", SearchOptions{Limit: 5, Hybrid: true})
	if err != nil {
		t.Fatalf("hybrid Search: %v", err)
	}
	if len(hybrid.Results) != 0 {
		t.Fatalf("hybrid search ignored the floor, got %d results", len(hybrid.Results))
	}

	// An explicit floor still binds plain search.
	floor := 0.99
	filtered, err := stack.retrieval.Search(context.Background(), "zzzz qqqq", SearchOptions{Limit: 5, MinScore: &floor})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(filtered.Results) != 0 {
		t.Fatalf("explicit floor ignored, got %d results", len(filtered.Results))
	}
}

func TestHybridSearchDegradesWhenUnseeded(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)

	resp, err := stack.retrieval.Search(context.Background(), "postgres replication", SearchOptions{Limit: 3, Hybrid: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("degraded hybrid search returned nothing")
	}
	for _, r := range resp.Results {
		if r.SparseScore != 0 {
			t.Errorf("degraded search must not carry sparse scores: %+v", r)
		}
	}
}

func TestHybridSearchCombinesScores(t *testing.T) {
	stack := newTestStack(t, "")
	if err := stack.sparse.Seed([]string{
		"postgres streaming replication and failover",
		"kubernetes ingress controller routing",
		"baking sourdough bread at home",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	docs := []string{
		"postgres streaming replication and failover",
		"kubernetes ingress controller routing",
	}
	for _, d := range docs {
		if _, err := stack.ingestion.IngestText(context.Background(), d, IngestOptions{Hybrid: true}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	resp, err := stack.retrieval.Search(context.Background(), "postgres replication failover", SearchOptions{Limit: 2, Hybrid: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results")
	}
	top := resp.Results[0]
	if !strings.Contains(top.Preview, "postgres") {
		t.Errorf("top hybrid result %q", top.Preview)
	}
	if top.DenseScore == 0 && top.SparseScore == 0 {
		t.Error("hybrid result carries neither side score")
	}
}

func TestSparseWeightClamped(t *testing.T) {
	stack := newTestStack(t, "")
	if err := stack.sparse.Seed([]string{"alpha document", "beta document"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := stack.ingestion.IngestText(context.Background(), "alpha document", IngestOptions{Hybrid: true}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	over := 7.5
	resp, err := stack.retrieval.Search(context.Background(), "alpha", SearchOptions{Limit: 1, Hybrid: true, SparseWeight: &over})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range resp.Results {
		// With the weight clamped to 1 the combined score is the sparse
		// score alone, which is itself bounded by 1.
		if r.Score > 1.0001 {
			t.Errorf("score %f exceeds bound, weight not clamped", r.Score)
		}
	}
}

func TestSearchByImage(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)
	if _, err := stack.ingestion.IngestFile(context.Background(), "diagram.png", "image/png", []byte{1, 2, 3}, IngestOptions{}); err != nil {
		t.Fatalf("ingest image: %v", err)
	}

	// Hybrid requested with an image query must fall back to plain dense
	// search instead of erroring.
	resp, err := stack.retrieval.SearchImage(context.Background(), "query.png", []byte{9, 9}, SearchOptions{Limit: 2, Hybrid: true})
	if err != nil {
		t.Fatalf("SearchImage: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results")
	}
	if resp.Results[0].Kind != models.KindImage {
		t.Errorf("top result kind %q, want the indexed image", resp.Results[0].Kind)
	}
	for _, r := range resp.Results {
		if r.SparseScore != 0 {
			t.Errorf("image search must not produce sparse scores: %+v", r)
		}
	}

	if _, err := stack.retrieval.SearchImage(context.Background(), "query.png", nil, SearchOptions{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("empty image query should be ErrInvalidInput, got %v", err)
	}
}

func TestGroupedSearch(t *testing.T) {
	stack := newTestStack(t, "")

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("Postgres replication chapter with failover guidance for operators. ")
	}
	res, err := stack.ingestion.IngestText(context.Background(), b.String(), IngestOptions{Chunked: true})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := stack.ingestion.IngestText(context.Background(), "kubernetes networking overview", IngestOptions{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	resp, err := stack.retrieval.Search(context.Background(), "postgres replication failover", SearchOptions{
		Limit:           2,
		GroupByDocument: true,
		ChunksPerDoc:    2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Grouped || len(resp.Groups) == 0 {
		t.Fatalf("expected groups, got %+v", resp)
	}

	top := resp.Groups[0]
	if top.DocumentID != res.DocumentID {
		t.Errorf("top group %q, want chunked document %q", top.DocumentID, res.DocumentID)
	}
	if len(top.Chunks) > 2 {
		t.Errorf("group carries %d chunks, want at most 2", len(top.Chunks))
	}
	if top.TotalHits < len(top.Chunks) {
		t.Errorf("total hits %d below chunk count %d", top.TotalHits, len(top.Chunks))
	}
	if top.Score < top.Chunks[0].Score {
		t.Errorf("group score %f below first chunk score %f", top.Score, top.Chunks[0].Score)
	}
	for i := 1; i < len(resp.Groups); i++ {
		if resp.Groups[i].Score > resp.Groups[i-1].Score {
			t.Errorf("groups not sorted at %d", i)
		}
	}
}

func TestRerankReordersAndKeepsOriginalScore(t *testing.T) {
	// Reranker that inverts retrieval order by scoring later documents
	// higher.
	rerankSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		scores := make([]float64, len(req.Documents))
		for i := range scores {
			scores[i] = float64(i)
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer rerankSrv.Close()

	stack := newTestStack(t, rerankSrv.URL)
	seedCorpus(t, stack)

	plain, err := stack.retrieval.Search(context.Background(), "postgres replication", SearchOptions{Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(plain.Results) < 2 {
		t.Skip("need at least 2 hits to observe reordering")
	}

	reranked, err := stack.retrieval.Search(context.Background(), "postgres replication", SearchOptions{Limit: 3, Rerank: true})
	if err != nil {
		t.Fatalf("Search with rerank: %v", err)
	}
	if len(reranked.Results) == 0 {
		t.Fatal("no reranked results")
	}

	top := reranked.Results[0]
	if top.OriginalScore == nil {
		t.Fatal("reranked result lost its original score")
	}
	if top.VectorID == plain.Results[0].VectorID {
		t.Error("inverting reranker did not change the top result")
	}
	for i := 1; i < len(reranked.Results); i++ {
		if reranked.Results[i].Score > reranked.Results[i-1].Score {
			t.Errorf("reranked results not sorted at %d", i)
		}
	}
}

func TestRerankCandidateCapBoundsGroupedSearch(t *testing.T) {
	var scored int
	rerankSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		scored = len(req.Documents)
		scores := make([]float64, len(req.Documents))
		for i := range scores {
			scores[i] = 1.0 / float64(i+1)
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer rerankSrv.Close()

	stack := newTestStack(t, rerankSrv.URL)
	seedCorpus(t, stack)

	// Grouping overfetches, but the candidate cap bounds what the
	// cross-encoder scores.
	resp, err := stack.retrieval.Search(context.Background(), "postgres replication", SearchOptions{
		Limit:            2,
		GroupByDocument:  true,
		Rerank:           true,
		RerankCandidates: 2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Grouped || len(resp.Groups) == 0 {
		t.Fatalf("expected groups, got %+v", resp)
	}
	if scored != 2 {
		t.Fatalf("cross-encoder scored %d documents, want 2", scored)
	}
	for _, g := range resp.Groups {
		for _, c := range g.Chunks {
			if c.OriginalScore == nil {
				t.Errorf("grouped chunk %s missing original score after rerank", c.VectorID)
			}
		}
	}
}

func TestRerankUnavailableKeepsRetrievalOrder(t *testing.T) {
	stack := newTestStack(t, "")
	seedCorpus(t, stack)

	resp, err := stack.retrieval.Search(context.Background(), "postgres replication", SearchOptions{Limit: 3, Rerank: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results")
	}
	for _, r := range resp.Results {
		if r.OriginalScore != nil {
			t.Error("results must not carry original scores when reranking was skipped")
		}
	}
}

func TestBackfillFillsMissingFilenames(t *testing.T) {
	stack := newTestStack(t, "")

	// Simulate a legacy point without a filename.
	if _, err := stack.ingestion.IngestText(context.Background(), "legacy content without name", IngestOptions{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	entries, _ := stack.documents.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if err := stack.store.SetPayload(context.Background(), []string{entries[0].VectorID}, map[string]any{"filename": ""}); err != nil {
		t.Fatalf("clear filename: %v", err)
	}

	report, err := stack.backfill.BackfillFilenames(context.Background())
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if report.Updated != 1 {
		t.Fatalf("updated %d, want 1", report.Updated)
	}

	entries, _ = stack.documents.List(context.Background())
	if entries[0].Filename == "" {
		t.Error("filename still empty after backfill")
	}
	if !strings.HasSuffix(entries[0].Filename, ".txt") {
		t.Errorf("backfilled filename = %q", entries[0].Filename)
	}
}
