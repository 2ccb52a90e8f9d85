package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"embedding-gateway/models"
)

func TestEnsureCollectionSendsBothVectorSpaces(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/test" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{URL: srv.URL, Collection: "test"})
	if err := s.EnsureCollection(context.Background(), 768, 1024); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	vectors, ok := got["vectors"].(map[string]any)
	if !ok {
		t.Fatalf("missing vectors config: %v", got)
	}
	for name, dim := range map[string]float64{"dense": 768, "sparse": 1024} {
		spec, ok := vectors[name].(map[string]any)
		if !ok {
			t.Fatalf("missing %s vector space", name)
		}
		if spec["size"].(float64) != dim {
			t.Errorf("%s size = %v, want %v", name, spec["size"], dim)
		}
		if spec["distance"] != "Cosine" {
			t.Errorf("%s distance = %v, want Cosine", name, spec["distance"])
		}
	}
}

func TestEnsureCollectionRejectsBadDimensions(t *testing.T) {
	s := New(Config{URL: "http://localhost:0", Collection: "test"})
	err := s.EnsureCollection(context.Background(), 0, 1024)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchParsesHitsAndThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["score_threshold"].(float64) != 0.3 {
			t.Errorf("score_threshold = %v, want 0.3", req["score_threshold"])
		}
		vec := req["vector"].(map[string]any)
		if vec["name"] != "dense" {
			t.Errorf("vector name = %v, want dense", vec["name"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "abc", "score": 0.91, "payload": map[string]any{"kind": "text", "preview": "hello", "filename": "hello.txt"}},
				{"id": "def", "score": 0.55, "payload": map[string]any{"kind": "image", "filename": "cat.png"}},
			},
		})
	}))
	defer srv.Close()

	s := New(Config{URL: srv.URL, Collection: "test"})
	hits, err := s.Search(context.Background(), models.VectorDense, []float64{0.1, 0.2}, 5, 0.3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "abc" || hits[0].Score != 0.91 {
		t.Errorf("hit[0] = %+v", hits[0])
	}
	if hits[0].Payload.Preview != "hello" {
		t.Errorf("hit[0] preview = %q", hits[0].Payload.Preview)
	}
	if hits[1].Payload.Kind != models.KindImage {
		t.Errorf("hit[1] kind = %q", hits[1].Payload.Kind)
	}
}

func TestSearchUnreachableStoreIsDependencyError(t *testing.T) {
	s := New(Config{URL: "http://127.0.0.1:1", Collection: "test"})
	_, err := s.Search(context.Background(), models.VectorDense, []float64{0.1}, 5, 0)
	if !errors.Is(err, models.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestScrollAllFollowsPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)

		filter, ok := req["filter"].(map[string]any)
		if !ok {
			t.Errorf("missing filter in scroll request")
		} else {
			must := filter["must"].([]any)[0].(map[string]any)
			if must["key"] != "document_id" {
				t.Errorf("filter key = %v", must["key"])
			}
		}

		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points":           []map[string]any{{"id": "p1", "payload": map[string]any{}}, {"id": "p2", "payload": map[string]any{}}},
					"next_page_offset": "p3",
				},
			})
			return
		}
		if off, _ := req["offset"].(string); off != "p3" {
			t.Errorf("second page offset = %v, want p3", req["offset"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points":           []map[string]any{{"id": "p3", "payload": map[string]any{}}},
				"next_page_offset": nil,
			},
		})
	}))
	defer srv.Close()

	s := New(Config{URL: srv.URL, Collection: "test"})
	hits, err := s.ScrollAll(context.Background(), "document_id", "doc-1")
	if err != nil {
		t.Fatalf("ScrollAll: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if calls != 2 {
		t.Fatalf("expected 2 scroll calls, got %d", calls)
	}
}

func TestDeleteByFieldBuildsFilter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test/points/delete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{URL: srv.URL, Collection: "test"})
	if err := s.DeleteByField(context.Background(), "filename", "report.pdf"); err != nil {
		t.Fatalf("DeleteByField: %v", err)
	}
	filter := got["filter"].(map[string]any)
	must := filter["must"].([]any)[0].(map[string]any)
	match := must["match"].(map[string]any)
	if must["key"] != "filename" || match["value"] != "report.pdf" {
		t.Errorf("unexpected filter: %v", filter)
	}
}

func TestOperationHookObservesOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/test/points/search" {
			json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	type op struct {
		name    string
		success bool
	}
	var seen []op
	s := New(Config{
		URL:        srv.URL,
		Collection: "test",
		OnOperation: func(name string, success bool) {
			seen = append(seen, op{name, success})
		},
	})

	if _, err := s.Search(context.Background(), "dense", []float64{0.1}, 5, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := s.DeleteByIDs(context.Background(), []string{"id-1"}); err == nil {
		t.Fatal("expected delete against 404 endpoint to fail")
	}

	want := []op{{"search", true}, {"delete", false}}
	if len(seen) != len(want) {
		t.Fatalf("hook saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("op %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestUpsertNoPointsIsNoop(t *testing.T) {
	s := New(Config{URL: "http://127.0.0.1:1", Collection: "test"})
	if err := s.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert should not hit the network: %v", err)
	}
}
