// Package indexer loads text files, chunks and embeds them, and appends the
// resulting entries to a vector store.
package indexer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

const (
	DedupSkip   = "skip"
	DedupAppend = "append"

	DefaultGlob      = "**/*.txt"
	DefaultBatchSize = 32
	DefaultDebounce  = 500 * time.Millisecond
)

type Config struct {
	Glob      string
	BatchSize int
	Dedup     string
	Debounce  time.Duration
}

// Stats summarizes one BuildIndex run.
type Stats struct {
	Documents int
	Chunks    int
	Added     int
	Skipped   int
}

type Indexer struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	cfg      Config
	log      logger.Logger
}

func New(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, cfg Config, log logger.Logger) (*Indexer, error) {
	if cfg.Glob == "" {
		cfg.Glob = DefaultGlob
	}
	if !doublestar.ValidatePattern(cfg.Glob) {
		return nil, fmt.Errorf("invalid glob %q", cfg.Glob)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	switch cfg.Dedup {
	case "":
		cfg.Dedup = DedupSkip
	case DedupSkip, DedupAppend:
	default:
		return nil, fmt.Errorf("unknown dedup policy %q", cfg.Dedup)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Indexer{chunker: chunker, embedder: embedder, store: store, cfg: cfg, log: log.With("component", "indexer")}, nil
}

// Load reads every file under dir matching the configured glob, in path order.
func (ix *Indexer) Load(dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus directory %q is not a directory", dir)
	}
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, ix.cfg.Glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", ix.cfg.Glob, err)
	}
	sort.Strings(matches)
	docs := make([]domain.Document, 0, len(matches))
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m, err)
		}
		docs = append(docs, domain.Document{
			ID:      hashString(m),
			Source:  strings.TrimSuffix(path.Base(m), path.Ext(m)),
			Path:    filepath.Join(dir, filepath.FromSlash(m)),
			Content: string(data),
		})
	}
	return docs, nil
}

// BuildIndex loads, chunks and embeds the corpus in dir and appends it to the store.
func (ix *Indexer) BuildIndex(ctx context.Context, dir string) (Stats, error) {
	var stats Stats
	docs, err := ix.Load(dir)
	if err != nil {
		return stats, err
	}
	stats.Documents = len(docs)

	seen := map[string]struct{}{}
	if ix.cfg.Dedup == DedupSkip {
		if seen, err = ix.store.Hashes(ctx); err != nil {
			return stats, fmt.Errorf("load stored hashes: %w", err)
		}
	}

	var pending []domain.Chunk
	for _, d := range docs {
		chunks, err := ix.chunker.Chunk(d)
		if err != nil {
			return stats, fmt.Errorf("chunk %s: %w", d.Path, err)
		}
		stats.Chunks += len(chunks)
		for _, ch := range chunks {
			if ix.cfg.Dedup == DedupSkip {
				if _, dup := seen[ch.Hash]; dup {
					stats.Skipped++
					continue
				}
				seen[ch.Hash] = struct{}{}
			}
			pending = append(pending, ch)
		}
	}

	for start := 0; start < len(pending); start += ix.cfg.BatchSize {
		end := min(start+ix.cfg.BatchSize, len(pending))
		batch := pending[start:end]
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return stats, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(batch))
		}
		entries := make([]domain.Entry, len(batch))
		for i, ch := range batch {
			entries[i] = domain.Entry{Chunk: ch, Vector: vectors[i]}
		}
		if err := ix.store.Add(ctx, entries); err != nil {
			return stats, fmt.Errorf("store entries: %w", err)
		}
		stats.Added += len(entries)
		ix.log.Debug("stored batch", "size", len(entries), "added", stats.Added, "pending", len(pending))
	}

	ix.log.Info("index built", "dir", dir, "documents", stats.Documents, "chunks", stats.Chunks, "added", stats.Added, "skipped", stats.Skipped)
	return stats, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
