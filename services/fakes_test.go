package services

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/encoder"
	"embedding-gateway/internal/sparse"
	"embedding-gateway/internal/vectorstore"
)

// fakeEncoder serves the sidecar embedding API with deterministic vectors
// derived from character frequencies, so related texts land close together.
func fakeEncoder(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(map[string]any{"status": "healthy", "model_loaded": true})
		case "/embed/text":
			var req struct {
				Text string `json:"text"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			text := strings.TrimPrefix(req.Text, "search_query: ")
			json.NewEncoder(w).Encode(map[string]any{"embedding": textVector(text)})
		case "/embed/image":
			if _, _, err := r.FormFile("file"); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"embedding": textVector("image")})
		default:
			http.NotFound(w, r)
		}
	}))
}

func textVector(text string) []float64 {
	vec := make([]float64, 16)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[int(r-'a')%16]++
		}
	}
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// fakeQdrant is an in-memory stand-in for the vector index covering the
// REST surface the store uses.
type fakeQdrant struct {
	mu     sync.Mutex
	points map[string]fakePoint
	order  []string
}

type fakePoint struct {
	ID      string
	Vectors map[string][]float64
	Payload map[string]any
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: make(map[string]fakePoint)}
}

func (f *fakeQdrant) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/test", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{}})
	})
	mux.HandleFunc("/collections/test/points", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			f.handleUpsert(w, r)
		case http.MethodPost:
			f.handleRetrieve(w, r)
		}
	})
	mux.HandleFunc("/collections/test/points/search", f.handleSearch)
	mux.HandleFunc("/collections/test/points/scroll", f.handleScroll)
	mux.HandleFunc("/collections/test/points/delete", f.handleDelete)
	mux.HandleFunc("/collections/test/points/payload", f.handleSetPayload)
	return httptest.NewServer(mux)
}

func (f *fakeQdrant) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points []struct {
			ID      string               `json:"id"`
			Vector  map[string][]float64 `json:"vector"`
			Payload map[string]any       `json:"payload"`
		} `json:"points"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range req.Points {
		if _, ok := f.points[p.ID]; !ok {
			f.order = append(f.order, p.ID)
		}
		f.points[p.ID] = fakePoint{ID: p.ID, Vectors: p.Vector, Payload: p.Payload}
	}
	json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
}

func (f *fakeQdrant) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	result := []map[string]any{}
	for _, id := range req.IDs {
		if p, ok := f.points[id]; ok {
			result = append(result, map[string]any{"id": p.ID, "payload": p.Payload})
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func (f *fakeQdrant) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vector struct {
			Name   string    `json:"name"`
			Vector []float64 `json:"vector"`
		} `json:"vector"`
		Limit          int     `json:"limit"`
		ScoreThreshold float64 `json:"score_threshold"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()

	type scored struct {
		p     fakePoint
		score float64
	}
	var hits []scored
	for _, id := range f.order {
		p, ok := f.points[id]
		if !ok {
			continue
		}
		v, ok := p.Vectors[req.Vector.Name]
		if !ok {
			continue
		}
		score := cosine(req.Vector.Vector, v)
		if score < req.ScoreThreshold {
			continue
		}
		hits = append(hits, scored{p: p, score: score})
	}
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].score > hits[i].score {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}

	result := []map[string]any{}
	for _, h := range hits {
		result = append(result, map[string]any{"id": h.p.ID, "score": h.score, "payload": h.p.Payload})
	}
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func (f *fakeQdrant) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter *struct {
			Must []struct {
				Key   string `json:"key"`
				Match struct {
					Value any `json:"value"`
				} `json:"match"`
			} `json:"must"`
		} `json:"filter"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	points := []map[string]any{}
	for _, id := range f.order {
		p, ok := f.points[id]
		if !ok {
			continue
		}
		if req.Filter != nil {
			match := true
			for _, m := range req.Filter.Must {
				if p.Payload[m.Key] != m.Match.Value {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}
		points = append(points, map[string]any{"id": p.ID, "payload": p.Payload})
	}
	json.NewEncoder(w).Encode(map[string]any{
		"result": map[string]any{"points": points, "next_page_offset": nil},
	})
}

func (f *fakeQdrant) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points []string `json:"points"`
		Filter *struct {
			Must []struct {
				Key   string `json:"key"`
				Match struct {
					Value any `json:"value"`
				} `json:"match"`
			} `json:"must"`
		} `json:"filter"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	remove := map[string]bool{}
	for _, id := range req.Points {
		remove[id] = true
	}
	if req.Filter != nil {
		for id, p := range f.points {
			match := true
			for _, m := range req.Filter.Must {
				if p.Payload[m.Key] != m.Match.Value {
					match = false
					break
				}
			}
			if match {
				remove[id] = true
			}
		}
	}
	for id := range remove {
		delete(f.points, id)
	}
	json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
}

func (f *fakeQdrant) handleSetPayload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points  []string       `json:"points"`
		Payload map[string]any `json:"payload"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range req.Points {
		if p, ok := f.points[id]; ok {
			for k, v := range req.Payload {
				p.Payload[k] = v
			}
			f.points[id] = p
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "completed"}})
}

func (f *fakeQdrant) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// testStack wires real services against the fake encoder and index.
type testStack struct {
	cfg       *config.Config
	ingestion *IngestionService
	retrieval *RetrievalService
	documents *DocumentService
	backfill  *BackfillService
	store     *vectorstore.Store
	sparse    *sparse.Vectorizer
	qdrant    *fakeQdrant
}

func newTestStack(t *testing.T, rerankURL string) *testStack {
	t.Helper()

	enc := fakeEncoder(t)
	t.Cleanup(enc.Close)
	qd := newFakeQdrant()
	qdSrv := qd.server(t)
	t.Cleanup(qdSrv.Close)

	cfg := &config.Config{
		EmbeddingsProvider:  "nomic",
		EncoderServiceURL:   enc.URL,
		MaxChunkSize:        500,
		ChunkOverlap:        200,
		DefaultSearchLimit:  5,
		DefaultMinScore:     0.0,
		DefaultSparseWeight: 0.5,
		DefaultChunksPerDoc: 3,
		RerankerServiceURL:  rerankURL,
		RerankerEnabled:     rerankURL != "",
	}

	sp := sparse.NewVectorizer(128)
	encSvc, err := encoder.NewService(cfg, sp)
	if err != nil {
		t.Fatalf("encoder service: %v", err)
	}

	store := vectorstore.New(vectorstore.Config{
		URL:        qdSrv.URL,
		Collection: "test",
		Timeout:    5 * time.Second,
	})

	chunker := NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	ingestion := NewIngestionService(cfg, encSvc, store, chunker, NewPDFService(), nil, nil)
	reranker := NewRerankService(cfg)
	retrieval := NewRetrievalService(cfg, encSvc, store, reranker, nil)
	documents := NewDocumentService(store, nil)
	backfill := NewBackfillService(store)

	return &testStack{
		cfg:       cfg,
		ingestion: ingestion,
		retrieval: retrieval,
		documents: documents,
		backfill:  backfill,
		store:     store,
		sparse:    sp,
		qdrant:    qd,
	}
}
