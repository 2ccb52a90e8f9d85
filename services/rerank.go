package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"embedding-gateway/internal/config"
	"embedding-gateway/models"
)

// RerankService scores query/document pairs with a cross-encoder sidecar.
// Reranking is strictly optional: when the sidecar is absent or failing,
// search falls back to retrieval order instead of erroring.
type RerankService struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

func NewRerankService(cfg *config.Config) *RerankService {
	return &RerankService{
		baseURL:    cfg.RerankerServiceURL,
		enabled:    cfg.RerankerEnabled && cfg.RerankerServiceURL != "",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled reports whether the service is configured to rerank at all.
func (s *RerankService) Enabled() bool {
	return s != nil && s.enabled
}

// Score returns one relevance score per document, aligned with the input
// order.
func (s *RerankService) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: reranker request failed: %v", models.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: reranker returned status %d: %s", models.ErrDependencyUnavailable, resp.StatusCode, string(raw))
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("%w: decode reranker response: %v", models.ErrDependencyUnavailable, err)
	}
	if rr.Error != "" {
		return nil, fmt.Errorf("%w: reranker error: %s", models.ErrDependencyUnavailable, rr.Error)
	}
	if len(rr.Scores) != len(documents) {
		return nil, fmt.Errorf("%w: reranker returned %d scores for %d documents", models.ErrDependencyUnavailable, len(rr.Scores), len(documents))
	}
	return rr.Scores, nil
}

// Healthy pings the reranker health endpoint.
func (s *RerankService) Healthy(ctx context.Context) bool {
	if !s.Enabled() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
