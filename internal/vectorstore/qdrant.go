// Package vectorstore is a REST client for a Qdrant-compatible vector
// index. The collection carries two named vectors per point, "dense" and
// "sparse", both cosine. Every failure to reach or use the index is wrapped
// as models.ErrDependencyUnavailable so callers can decide whether to fail
// the request or degrade.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"embedding-gateway/models"
)

// Point is a single indexed item: an ID, one or more named vectors and the
// document payload.
type Point struct {
	ID      string
	Vectors map[string][]float64
	Payload models.PointPayload
}

// Hit is one search or scroll result.
type Hit struct {
	ID      string
	Score   float64
	Payload models.PointPayload
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration

	// OnOperation, when set, observes every index operation and whether
	// it succeeded.
	OnOperation func(op string, success bool)
}

// Store talks to one Qdrant collection over HTTP.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	onOp       func(op string, success bool)
}

func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		onOp:       cfg.OnOperation,
	}
}

// Collection returns the collection name the store operates on.
func (s *Store) Collection() string { return s.collection }

// EnsureCollection creates the collection with both named vector spaces if
// it does not exist. Qdrant answers 200 for an existing collection with the
// same schema, so startup is idempotent.
func (s *Store) EnsureCollection(ctx context.Context, denseDim, sparseDim int) error {
	if denseDim <= 0 || sparseDim <= 0 {
		return fmt.Errorf("%w: vector dimensions must be positive", models.ErrInvalidInput)
	}
	body := map[string]any{
		"vectors": map[string]any{
			models.VectorDense: map[string]any{
				"size":     denseDim,
				"distance": "Cosine",
			},
			models.VectorSparse: map[string]any{
				"size":     sparseDim,
				"distance": "Cosine",
			},
		},
	}
	return s.do(ctx, "ensure_collection", http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body, nil)
}

// Upsert writes points and waits for them to be persisted before returning.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	out := make([]map[string]any, len(points))
	for i, p := range points {
		out[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vectors,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": out}
	return s.do(ctx, "upsert", http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body, nil)
}

// Search runs a similarity query against one of the named vector spaces.
// Hits below scoreThreshold are filtered server-side.
func (s *Store) Search(ctx context.Context, vectorName string, vector []float64, limit int, scoreThreshold float64) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	body := map[string]any{
		"vector": map[string]any{
			"name":   vectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}
	var resp struct {
		Result []struct {
			ID      any                 `json:"id"`
			Score   float64             `json:"score"`
			Payload models.PointPayload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, "search", http.MethodPost, fmt.Sprintf("/collections/%s/points/search", s.collection), body, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: idString(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// Retrieve fetches points by ID. Unknown IDs are silently absent from the
// result.
func (s *Store) Retrieve(ctx context.Context, ids []string) ([]Hit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"ids":          ids,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any                 `json:"id"`
			Payload models.PointPayload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, "retrieve", http.MethodPost, fmt.Sprintf("/collections/%s/points", s.collection), body, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: idString(r.ID), Payload: r.Payload})
	}
	return hits, nil
}

// Scroll pages through points, optionally filtered by an exact payload field
// match. It returns one page plus the offset for the next page; a nil next
// offset means the listing is exhausted.
func (s *Store) Scroll(ctx context.Context, filterField, filterValue string, limit int, offset any) ([]Hit, any, error) {
	if limit <= 0 {
		limit = 100
	}
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if offset != nil {
		body["offset"] = offset
	}
	if filterField != "" {
		body["filter"] = fieldFilter(filterField, filterValue)
	}
	var resp struct {
		Result struct {
			Points []struct {
				ID      any                 `json:"id"`
				Payload models.PointPayload `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := s.do(ctx, "scroll", http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", s.collection), body, &resp); err != nil {
		return nil, nil, err
	}
	hits := make([]Hit, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		hits = append(hits, Hit{ID: idString(p.ID), Payload: p.Payload})
	}
	return hits, resp.Result.NextPageOffset, nil
}

// ScrollAll drains every page matching the filter.
func (s *Store) ScrollAll(ctx context.Context, filterField, filterValue string) ([]Hit, error) {
	var all []Hit
	var offset any
	for {
		page, next, err := s.Scroll(ctx, filterField, filterValue, 256, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == nil || len(page) == 0 {
			return all, nil
		}
		offset = next
	}
}

// DeleteByIDs removes the given points, waiting for the deletion to apply.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	return s.do(ctx, "delete", http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection), body, nil)
}

// DeleteByField removes every point whose payload field equals value.
func (s *Store) DeleteByField(ctx context.Context, field, value string) error {
	body := map[string]any{"filter": fieldFilter(field, value)}
	return s.do(ctx, "delete", http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection), body, nil)
}

// SetPayload merges the given payload keys into the listed points without
// touching their vectors.
func (s *Store) SetPayload(ctx context.Context, ids []string, payload map[string]any) error {
	if len(ids) == 0 || len(payload) == 0 {
		return nil
	}
	body := map[string]any{
		"points":  ids,
		"payload": payload,
	}
	return s.do(ctx, "set_payload", http.MethodPost, fmt.Sprintf("/collections/%s/points/payload?wait=true", s.collection), body, nil)
}

// Healthy pings the collection endpoint.
func (s *Store) Healthy(ctx context.Context) bool {
	err := s.do(ctx, "health", http.MethodGet, fmt.Sprintf("/collections/%s", s.collection), nil, nil)
	return err == nil
}

func fieldFilter(field, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   field,
				"match": map[string]any{"value": value},
			},
		},
	}
}

func (s *Store) do(ctx context.Context, op, method, path string, body, out any) error {
	err := s.request(ctx, method, path, body, out)
	if s.onOp != nil {
		s.onOp(op, err == nil)
	}
	return err
}

func (s *Store) request(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: vector store request failed: %v", models.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: vector store %s %s returned %s", models.ErrDependencyUnavailable, method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode vector store response: %v", models.ErrDependencyUnavailable, err)
		}
	}
	return nil
}

func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
