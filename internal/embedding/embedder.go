package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragchat/internal/domain"
)

// Cached memoizes an Embedder in an LRU cache keyed by the text hash.
// Embeddings are deterministic per model, so a cached vector is always valid.
type Cached struct {
	inner domain.Embedder
	mu    sync.Mutex
	cache *lru.Cache[string, domain.Vector]
}

// NewCached wraps inner with a cache holding up to size vectors.
func NewCached(inner domain.Embedder, size int) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedder %q: cache size must be greater than zero", inner.Name())
	}
	cache, err := lru.New[string, domain.Vector](size)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: init cache: %w", inner.Name(), err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Name() string   { return c.inner.Name() }
func (c *Cached) Dimension() int { return c.inner.Dimension() }

func (c *Cached) Embed(ctx context.Context, text string) (domain.Vector, error) {
	key := cacheKey(text)
	c.mu.Lock()
	v, ok := c.cache.Get(key)
	c.mu.Unlock()
	if ok {
		return clone(v), nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache.Add(key, clone(v))
	c.mu.Unlock()
	return v, nil
}

// EmbedBatch serves cached texts from memory and embeds the rest in one batch.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	var missing []string
	var missingIdx []int
	c.mu.Lock()
	for i, t := range texts {
		if v, ok := c.cache.Get(cacheKey(t)); ok {
			out[i] = clone(v)
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	c.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedder %q: got %d vectors for %d texts", c.inner.Name(), len(vecs), len(missing))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for j, v := range vecs {
		out[missingIdx[j]] = v
		c.cache.Add(cacheKey(missing[j]), clone(v))
	}
	return out, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func clone(src domain.Vector) domain.Vector {
	if src == nil {
		return nil
	}
	dst := make(domain.Vector, len(src))
	copy(dst, src)
	return dst
}
