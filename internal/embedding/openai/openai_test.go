package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "secret")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "TEST_EMBED_KEY", Model: "m", MaxRetries: retries})
	require.NoError(t, err)
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(time.Millisecond)
	return c
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	t.Run("ShouldEmbedBatchInResponseIndexOrder", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			var body struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"a", "b"}, body.Input)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"index": 1, "embedding": []float32{0, 1}},
					{"index": 0, "embedding": []float32{1, 0}},
				},
			})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL, 0)
		vecs, err := c.EmbedBatch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, []domain.Vector{{1, 0}, {0, 1}}, vecs)
		assert.Equal(t, 2, c.Dimension())
		assert.Equal(t, "openai:m", c.Name())
	})

	t.Run("ShouldRetryOnServerError", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{0.5, 0.5}}},
			})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL, 2)
		v, err := c.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, domain.Vector{0.5, 0.5}, v)
		assert.Equal(t, 2, calls)
	})

	t.Run("ShouldRetryRateLimitWithRetryAfter", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
			})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL, 1)
		_, err := c.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("ShouldFailOnClientErrorWithoutRetry", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := newTestClient(t, server.URL, 3)
		_, err := c.Embed(ctx, "hello")
		assert.ErrorContains(t, err, "401")
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("ShouldGiveUpAfterMaxRetries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := newTestClient(t, server.URL, 2)
		_, err := c.Embed(ctx, "hello")
		assert.ErrorContains(t, err, "502")
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("ShouldLearnDimensionUnderConcurrentCalls", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{1, 0, 0}}},
			})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL, 0)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Embed(ctx, "hello")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 3, c.Dimension())
	})

	t.Run("ShouldRequireAPIKey", func(t *testing.T) {
		t.Setenv("EMPTY_EMBED_KEY", "")
		_, err := NewClient(Config{APIKeyEnv: "EMPTY_EMBED_KEY"})
		assert.Error(t, err)
	})
}
