package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"ragchat/internal/domain"
)

const (
	TypeMemory     = "memory"
	TypeFilesystem = "filesystem"
	TypeSQLite     = "sqlite"
	TypeQdrant     = "qdrant"
)

// Manifest records which embedder produced the vectors of a persisted index.
type Manifest struct {
	Embedder  string `json:"embedder"`
	Dimension int    `json:"dimension"`
}

// Accept checks that embedder may read and extend an index described by m.
// An empty manifest accepts any embedder.
func (m Manifest) Accept(embedder string) error {
	if m.Embedder != "" && embedder != "" && m.Embedder != embedder {
		return fmt.Errorf("%w: index uses %q, configured %q", domain.ErrEmbedderMismatch, m.Embedder, embedder)
	}
	return nil
}

// CheckDimension validates vector length against the manifest, fixing the
// dimension on first use.
func (m *Manifest) CheckDimension(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrDimensionMismatch)
	}
	if m.Dimension == 0 {
		m.Dimension = n
		return nil
	}
	if n != m.Dimension {
		return fmt.Errorf("%w: got %d want %d", domain.ErrDimensionMismatch, n, m.Dimension)
	}
	return nil
}

// CosineDistance returns 1 - cosine similarity; a zero vector is at distance 1 from everything.
func CosineDistance(a, b domain.Vector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Rank returns the topK entries nearest to query, ordered by distance then insertion order.
func Rank(entries []domain.Entry, query domain.Vector, topK int) []domain.SearchResult {
	if topK <= 0 || len(entries) == 0 {
		return nil
	}
	results := make([]domain.SearchResult, len(entries))
	for i := range entries {
		results[i] = domain.SearchResult{Entry: entries[i], Distance: CosineDistance(entries[i].Vector, query)}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance == results[j].Distance {
			return results[i].Entry.Seq < results[j].Entry.Seq
		}
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// CloneEntry copies the vector so stored entries cannot be mutated by callers.
func CloneEntry(e domain.Entry) domain.Entry {
	e.Vector = append(domain.Vector(nil), e.Vector...)
	return e
}
