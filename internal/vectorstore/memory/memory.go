package memory

import (
	"context"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine distance.
type Storage struct {
	mu       sync.RWMutex
	manifest vectorstore.Manifest
	entries  []domain.Entry
	nextSeq  int64
}

func NewStorage() *Storage { return &Storage{nextSeq: 1} }

func (s *Storage) Add(_ context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.manifest
	for _, e := range entries {
		if err := m.CheckDimension(len(e.Vector)); err != nil {
			return err
		}
	}
	s.manifest = m
	for _, e := range entries {
		e = vectorstore.CloneEntry(e)
		e.Seq = s.nextSeq
		s.nextSeq++
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *Storage) Query(_ context.Context, vector domain.Vector, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	m := s.manifest
	if err := m.CheckDimension(len(vector)); err != nil {
		return nil, err
	}
	return vectorstore.Rank(s.entries, vector, topK), nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) Hashes(context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.entries))
	for _, e := range s.entries {
		out[e.Chunk.Hash] = struct{}{}
	}
	return out, nil
}

func (s *Storage) Close() error { return nil }
