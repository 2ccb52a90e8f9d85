package encoder

import (
	"context"
	"fmt"
	"math"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"embedding-gateway/models"
)

// googleProvider embeds text through the Google Generative AI embeddings
// API. It has no image support; deployments that ingest images run the
// encoder sidecar instead.
type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(apiKey, model string) (*googleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key for google embeddings")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &googleProvider{apiKey: apiKey, model: model}, nil
}

func (g *googleProvider) EmbedText(ctx context.Context, text string) ([]float64, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	defer client.Close()

	model := client.EmbeddingModel(g.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", models.ErrDependencyUnavailable)
	}

	vec := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		vec[i] = float64(v)
	}
	return normalize(vec), nil
}

func (g *googleProvider) EmbedImage(ctx context.Context, filename string, data []byte) ([]float64, error) {
	return nil, fmt.Errorf("%w: image embeddings are not available with the google provider", models.ErrUnsupportedMedia)
}

func (g *googleProvider) IsHealthy(ctx context.Context) (bool, error) {
	return g.apiKey != "", nil
}

func normalize(vec []float64) []float64 {
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
