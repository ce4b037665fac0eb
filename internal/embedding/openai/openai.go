package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"ragchat/internal/domain"
)

const (
	retryWait    = 200 * time.Millisecond
	retryMaxWait = 5 * time.Second
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	model     string
	http      *resty.Client
	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
// 429 and 5xx responses are retried with exponential backoff, honoring Retry-After.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(t).
		SetAuthToken(key).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		SetRetryAfter(retryAfter).
		AddRetryCondition(retryable)
	return &Client{model: cfg.Model, http: client, dimension: cfg.Dimension}, nil
}

// Name returns the identifier of this embedder implementation, including the model.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
// Unless configured it is learned from the first response.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) (domain.Vector, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds several texts in one request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	type reqBody struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody{Input: texts, Model: c.model}).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status())
	}
	return c.decode(resp.Body(), len(texts))
}

func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

// retryAfter reads a Retry-After header in seconds; zero falls back to backoff.
func retryAfter(_ *resty.Client, r *resty.Response) (time.Duration, error) {
	if r == nil {
		return 0, nil
	}
	secs, err := strconv.Atoi(r.Header().Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0, nil
	}
	return time.Duration(secs) * time.Second, nil
}

func (c *Client) decode(payload []byte, want int) ([]domain.Vector, error) {
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Data) != want {
		return nil, errors.New("no embedding returned")
	}
	vectors := make([]domain.Vector, want)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range out.Data {
		idx := d.Index
		if idx < 0 || idx >= want || vectors[idx] != nil {
			idx = i
		}
		if len(d.Embedding) == 0 {
			return nil, errors.New("no embedding returned")
		}
		if c.dimension == 0 {
			c.dimension = len(d.Embedding)
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: got %d want %d", domain.ErrDimensionMismatch, len(d.Embedding), c.dimension)
		}
		vectors[idx] = d.Embedding
	}
	for _, v := range vectors {
		if v == nil {
			return nil, errors.New("no embedding returned")
		}
	}
	return vectors, nil
}
