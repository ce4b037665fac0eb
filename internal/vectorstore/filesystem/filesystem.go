package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// FileName is the snapshot written inside the store directory.
const FileName = "index.json"

// Storage persists entries to a JSON snapshot that is rewritten on every Add.
type Storage struct {
	mu       sync.RWMutex
	path     string
	manifest vectorstore.Manifest
	entries  []domain.Entry
	nextSeq  int64
}

// Open loads the snapshot in dir, creating the directory if needed. A snapshot
// written by a different embedder is rejected.
func Open(dir, embedder string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filesystem: ensure directory %q: %w", dir, err)
	}
	s := &Storage{
		path:     filepath.Join(filepath.Clean(dir), FileName),
		manifest: vectorstore.Manifest{Embedder: embedder},
		nextSeq:  1,
	}
	if err := s.load(embedder); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Add(_ context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.manifest
	for _, e := range entries {
		if err := m.CheckDimension(len(e.Vector)); err != nil {
			return fmt.Errorf("filesystem: %w", err)
		}
	}
	prevLen, prevSeq, prevManifest := len(s.entries), s.nextSeq, s.manifest
	s.manifest = m
	for _, e := range entries {
		e = vectorstore.CloneEntry(e)
		e.Seq = s.nextSeq
		s.nextSeq++
		s.entries = append(s.entries, e)
	}
	if err := s.persistLocked(); err != nil {
		s.entries, s.nextSeq, s.manifest = s.entries[:prevLen], prevSeq, prevManifest
		return err
	}
	return nil
}

func (s *Storage) Query(_ context.Context, vector domain.Vector, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.manifest.Dimension {
		return nil, fmt.Errorf("filesystem: %w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), s.manifest.Dimension)
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

func (s *Storage) load(embedder string) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("filesystem: read %q: %w", s.path, err)
	}
	var payload snapshot
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("filesystem: decode %q: %w", s.path, err)
	}
	if err := payload.Manifest.Accept(embedder); err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}
	if payload.Manifest.Embedder != "" {
		s.manifest.Embedder = payload.Manifest.Embedder
	}
	s.manifest.Dimension = payload.Manifest.Dimension
	s.entries = make([]domain.Entry, 0, len(payload.Entries))
	for _, rec := range payload.Entries {
		if len(rec.Vector) != s.manifest.Dimension {
			return fmt.Errorf("filesystem: entry %d: %w", rec.Seq, domain.ErrDimensionMismatch)
		}
		s.entries = append(s.entries, domain.Entry{
			Seq: rec.Seq,
			Chunk: domain.Chunk{
				DocumentID: rec.DocumentID,
				Source:     rec.Source,
				Index:      rec.Index,
				Text:       rec.Text,
				Start:      rec.Start,
				End:        rec.End,
				Hash:       rec.Hash,
			},
			Vector: rec.Vector,
		})
		if rec.Seq >= s.nextSeq {
			s.nextSeq = rec.Seq + 1
		}
	}
	return nil
}

func (s *Storage) persistLocked() error {
	payload := snapshot{
		Manifest: s.manifest,
		Entries:  make([]record, 0, len(s.entries)),
	}
	for _, e := range s.entries {
		payload.Entries = append(payload.Entries, record{
			Seq:        e.Seq,
			DocumentID: e.Chunk.DocumentID,
			Source:     e.Chunk.Source,
			Index:      e.Chunk.Index,
			Text:       e.Chunk.Text,
			Start:      e.Chunk.Start,
			End:        e.Chunk.End,
			Hash:       e.Chunk.Hash,
			Vector:     e.Vector,
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("filesystem: encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("filesystem: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("filesystem: commit snapshot: %w", err)
	}
	return nil
}

type snapshot struct {
	Manifest vectorstore.Manifest `json:"manifest"`
	Entries  []record             `json:"entries"`
}

type record struct {
	Seq        int64         `json:"seq"`
	DocumentID string        `json:"document_id"`
	Source     string        `json:"source"`
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Hash       string        `json:"hash"`
	Vector     domain.Vector `json:"vector"`
}
