package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"embedding-gateway/models"
)

// Client talks to the embedding sidecar over HTTP. Calls go through a
// circuit breaker and a client-side rate limiter so a struggling sidecar
// sheds load instead of collecting a queue of doomed requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	stateHook  func(name, state string)
}

// rejection marks a 4xx sidecar response. The input was bad, not the
// sidecar, so it passes through the breaker as a success.
type rejection struct {
	status int
	body   string
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewClient builds a sidecar client. rpm caps outbound requests per minute;
// zero disables client-side limiting.
func NewClient(baseURL string, timeout time.Duration, rpm int) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EncoderService",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
			if c.stateHook != nil {
				c.stateHook(name, to.String())
			}
		},
	})

	if rpm > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), max(rpm/10, 1))
	}

	return c
}

// OnBreakerStateChange registers fn to run whenever the circuit breaker
// transitions, in addition to the default log line.
func (c *Client) OnBreakerStateChange(fn func(name, state string)) {
	c.stateHook = fn
}

// IsHealthy checks the sidecar health endpoint.
func (c *Client) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("encoder service unhealthy: status %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health.Status == "healthy" || health.ModelLoaded, nil
}

// EmbedText requests a dense embedding for text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedTextRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/text", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.execute(ctx, req)
}

// EmbedImage requests a dense embedding for raw image bytes. The sidecar
// embeds images into the same vector space as text.
func (c *Client) EmbedImage(ctx context.Context, filename string, data []byte) ([]float64, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.execute(ctx, req)
}

func (c *Client) execute(ctx context.Context, req *http.Request) ([]float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrDependencyUnavailable, err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return rejection{status: resp.StatusCode, body: string(body)}, nil
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("encoder returned status %d: %s", resp.StatusCode, string(body))
		}
		var embedResp embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
			return nil, fmt.Errorf("failed to decode embed response: %w", err)
		}
		if embedResp.Error != "" {
			return nil, fmt.Errorf("encoder error: %s", embedResp.Error)
		}
		if len(embedResp.Embedding) == 0 {
			return nil, fmt.Errorf("encoder returned empty embedding")
		}
		return embedResp.Embedding, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: encoder circuit breaker open", models.ErrDependencyUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, err)
	}
	if rej, ok := result.(rejection); ok {
		return nil, fmt.Errorf("%w: encoder rejected input (status %d): %s", models.ErrUnsupportedMedia, rej.status, rej.body)
	}
	return result.([]float64), nil
}
