// Package encoder produces dense embeddings for documents, queries and
// images, and exposes the sparse vectorizer alongside them behind one
// service facade.
package encoder

import (
	"context"
	"fmt"
	"time"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/sparse"
)

// Queries are prefixed so the embedding model separates the query
// distribution from the document distribution. The prefix is part of the
// model contract and must match what documents were NOT indexed with.
const queryPrefix = "search_query: "

type provider interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	EmbedImage(ctx context.Context, filename string, data []byte) ([]float64, error)
	IsHealthy(ctx context.Context) (bool, error)
}

// Service is the single entry point for all embedding work.
type Service struct {
	provider provider
	sparse   *sparse.Vectorizer
}

// NewService picks the dense provider from configuration and pairs it with
// the sparse vectorizer.
func NewService(cfg *config.Config, sp *sparse.Vectorizer) (*Service, error) {
	var p provider
	switch cfg.EmbeddingsProvider {
	case "nomic", "":
		p = NewClient(cfg.EncoderServiceURL, time.Duration(cfg.EncoderTimeout)*time.Second, cfg.EncoderRPM)
	case "google":
		gp, err := newGoogleProvider(cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
		if err != nil {
			return nil, err
		}
		p = gp
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
	return &Service{provider: p, sparse: sp}, nil
}

// EmbedDocument embeds document text as-is, with no prefix.
func (s *Service) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	return s.provider.EmbedText(ctx, text)
}

// EmbedQuery embeds a search query. The query prefix is applied here, and
// only here, so callers can never index prefixed text by mistake.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return s.provider.EmbedText(ctx, queryPrefix+query)
}

// EmbedImage embeds raw image bytes into the shared dense vector space.
func (s *Service) EmbedImage(ctx context.Context, filename string, data []byte) ([]float64, error) {
	return s.provider.EmbedImage(ctx, filename, data)
}

// EmbedSparse computes the hashed keyword vector for text. Returns nil when
// the vectorizer has not been seeded, which callers treat as "sparse
// indexing off".
func (s *Service) EmbedSparse(text string) []float64 {
	if s.sparse == nil || !s.sparse.Seeded() {
		return nil
	}
	return s.sparse.Vectorize(text)
}

// SparseReady reports whether sparse vectors can be produced.
func (s *Service) SparseReady() bool {
	return s.sparse != nil && s.sparse.Seeded()
}

// OnBreakerStateChange forwards a breaker state hook to the dense provider.
// Providers without a circuit breaker ignore it.
func (s *Service) OnBreakerStateChange(fn func(name, state string)) {
	if c, ok := s.provider.(*Client); ok {
		c.OnBreakerStateChange(fn)
	}
}

// Healthy reports whether the dense provider can serve requests.
func (s *Service) Healthy(ctx context.Context) bool {
	ok, err := s.provider.IsHealthy(ctx)
	return err == nil && ok
}
