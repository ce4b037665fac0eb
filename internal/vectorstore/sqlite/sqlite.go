// Package sqlite stores entries in an SQLite database through GORM, using the
// CGO-free glebarez driver. Vectors are kept as little-endian float32 blobs and
// scored by a full scan.
package sqlite

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlitedriver "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// FileName is the database file created inside the store directory.
const FileName = "index.db"

type entryRow struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement"`
	DocumentID  string `gorm:"index"`
	Source      string
	ChunkIndex  int
	Text        string
	StartOffset int
	EndOffset   int
	Hash        string `gorm:"index"`
	Embedding   []byte
}

func (entryRow) TableName() string { return "entries" }

type manifestRow struct {
	ID        uint `gorm:"primaryKey"`
	Embedder  string
	Dimension int
}

func (manifestRow) TableName() string { return "manifest" }

// Storage is a persistent vector store backed by SQLite.
type Storage struct {
	mu       sync.RWMutex
	db       *gorm.DB
	manifest vectorstore.Manifest
}

// Open opens (or creates) dir/index.db and verifies the stored embedder.
func Open(dir, embedder string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("sqlite: ensure directory %q: %w", dir, err)
	}
	db, err := gorm.Open(sqlitedriver.Open(filepath.Join(dir, FileName)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.AutoMigrate(&manifestRow{}, &entryRow{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("sqlite: automigrate: %w", err)
	}
	s := &Storage{db: db}
	if err := s.loadManifest(embedder); err != nil {
		closeDB(db)
		return nil, err
	}
	return s, nil
}

func (s *Storage) loadManifest(embedder string) error {
	var row manifestRow
	err := s.db.First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = manifestRow{ID: 1, Embedder: embedder}
		if err := s.db.Create(&row).Error; err != nil {
			return fmt.Errorf("sqlite: write manifest: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("sqlite: read manifest: %w", err)
	}
	m := vectorstore.Manifest{Embedder: row.Embedder, Dimension: row.Dimension}
	if err := m.Accept(embedder); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	s.manifest = m
	return nil
}

func (s *Storage) Add(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.manifest
	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		if err := m.CheckDimension(len(e.Vector)); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		rows[i] = entryRow{
			DocumentID:  e.Chunk.DocumentID,
			Source:      e.Chunk.Source,
			ChunkIndex:  e.Chunk.Index,
			Text:        e.Chunk.Text,
			StartOffset: e.Chunk.Start,
			EndOffset:   e.Chunk.End,
			Hash:        e.Chunk.Hash,
			Embedding:   FloatsToBytes(e.Vector),
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.Dimension != s.manifest.Dimension {
			if err := tx.Model(&manifestRow{ID: 1}).Update("dimension", m.Dimension).Error; err != nil {
				return err
			}
		}
		return tx.CreateInBatches(&rows, 256).Error
	})
	if err != nil {
		return fmt.Errorf("sqlite: insert entries: %w", err)
	}
	s.manifest = m
	return nil
}

func (s *Storage) Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []entryRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite: load entries: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(vector) != s.manifest.Dimension {
		return nil, fmt.Errorf("sqlite: %w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), s.manifest.Dimension)
	}
	entries := make([]domain.Entry, len(rows))
	for i, r := range rows {
		entries[i] = domain.Entry{
			Seq: r.Seq,
			Chunk: domain.Chunk{
				DocumentID: r.DocumentID,
				Source:     r.Source,
				Index:      r.ChunkIndex,
				Text:       r.Text,
				Start:      r.StartOffset,
				End:        r.EndOffset,
				Hash:       r.Hash,
			},
			Vector: BytesToFloats(r.Embedding),
		}
	}
	return vectorstore.Rank(entries, vector, topK), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&entryRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return int(n), nil
}

func (s *Storage) Hashes(ctx context.Context) (map[string]struct{}, error) {
	var hashes []string
	if err := s.db.WithContext(ctx).Model(&entryRow{}).Pluck("hash", &hashes).Error; err != nil {
		return nil, fmt.Errorf("sqlite: load hashes: %w", err)
	}
	out := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		out[h] = struct{}{}
	}
	return out, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func FloatsToBytes(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func BytesToFloats(b []byte) domain.Vector {
	n := len(b) / 4
	out := make(domain.Vector, n)
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, []float32(out))
	return out
}
