package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"ragchat/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection on first Add.
// Point ids are the insertion sequence numbers; ties in search order are server-defined.
type Storage struct {
	mu         sync.Mutex
	collection string
	client     *resty.Client
	ready      bool
	nextSeq    int64
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	return &Storage{collection: cfg.Collection, client: client}
}

var errNotFound = errors.New("qdrant: not found")

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	if s.ready {
		return nil
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if errors.Is(err, errNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	}
	if err != nil {
		return err
	}
	n, err := s.count(ctx)
	if err != nil {
		return err
	}
	s.nextSeq = int64(n) + 1
	s.ready = true
	return nil
}

func (s *Storage) Add(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureCollection(ctx, len(entries[0].Vector)); err != nil {
		return err
	}
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		points[i] = map[string]any{
			"id":     s.nextSeq + int64(i),
			"vector": e.Vector,
			"payload": map[string]any{
				"document_id": e.Chunk.DocumentID,
				"source":      e.Chunk.Source,
				"index":       e.Chunk.Index,
				"text":        e.Chunk.Text,
				"start":       e.Chunk.Start,
				"end":         e.Chunk.End,
				"hash":        e.Chunk.Hash,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return err
	}
	s.nextSeq += int64(len(entries))
	return nil
}

type point struct {
	ID      int64          `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *Storage) Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			Entry:    domain.Entry{Seq: r.ID, Chunk: payloadChunk(r.Payload)},
			Distance: 1 - r.Score,
		})
	}
	return results, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.count(ctx)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	return n, err
}

func (s *Storage) count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Hashes scrolls through every point payload.
func (s *Storage) Hashes(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	var offset any
	for {
		req := map[string]any{"limit": 256, "with_payload": []string{"hash"}, "with_vector": false}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
		if errors.Is(err, errNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			if h, ok := p.Payload["hash"].(string); ok {
				out[h] = struct{}{}
			}
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Storage) Close() error { return nil }

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, path string, body any, out any) error {
	req := s.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("qdrant %s %s failed: %s", method, path, resp.Status())
	}
	return nil
}

func payloadChunk(p map[string]any) domain.Chunk {
	chunk := domain.Chunk{}
	if v, ok := p["document_id"].(string); ok {
		chunk.DocumentID = v
	}
	if v, ok := p["source"].(string); ok {
		chunk.Source = v
	}
	if v, ok := p["text"].(string); ok {
		chunk.Text = v
	}
	if v, ok := p["hash"].(string); ok {
		chunk.Hash = v
	}
	if v, ok := p["index"].(float64); ok {
		chunk.Index = int(v)
	}
	if v, ok := p["start"].(float64); ok {
		chunk.Start = int(v)
	}
	if v, ok := p["end"].(float64); ok {
		chunk.End = int(v)
	}
	return chunk
}

var _ domain.VectorStore = (*Storage)(nil)
