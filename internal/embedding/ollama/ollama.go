// Package ollama embeds text with a local Ollama server through langchaingo.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"ragchat/internal/domain"
)

// Config configures the Ollama embedder.
type Config struct {
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
}

// Embedder adapts a langchaingo embedder to domain.Embedder.
type Embedder struct {
	model     string
	impl      embeddings.Embedder
	mu        sync.Mutex
	dimension int
}

// New constructs an Ollama-backed embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: init client: %w", err)
	}
	embOpts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if cfg.BatchSize > 0 {
		embOpts = append(embOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	impl, err := embeddings.NewEmbedder(client, embOpts...)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return Wrap(cfg.Model, cfg.Dimension, impl), nil
}

// Wrap builds an Embedder around an existing langchaingo embedder.
func Wrap(model string, dimension int, impl embeddings.Embedder) *Embedder {
	return &Embedder{model: model, impl: impl, dimension: dimension}
}

func (e *Embedder) Name() string { return "ollama:" + e.model }

// Dimension is learned from the first embedding unless configured.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if err := e.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, errors.New("ollama embedder: embedding count mismatch")
	}
	out := make([]domain.Vector, len(raw))
	for i := range raw {
		if err := e.check(raw[i]); err != nil {
			return nil, err
		}
		out[i] = raw[i]
	}
	return out, nil
}

func (e *Embedder) check(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("ollama embedder: empty embedding")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = len(vec)
	}
	if len(vec) != e.dimension {
		return fmt.Errorf("%w: got %d want %d", domain.ErrDimensionMismatch, len(vec), e.dimension)
	}
	return nil
}
