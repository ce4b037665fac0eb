// Package storetest holds behavior checks shared by every local vector store.
package storetest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Entry builds an entry with the given text and vector.
func Entry(text string, vec ...float32) domain.Entry {
	return domain.Entry{
		Chunk:  domain.Chunk{DocumentID: "doc", Source: "src", Text: text, Hash: "h:" + text},
		Vector: vec,
	}
}

// Run exercises the append-only store contract against a fresh store from open.
func Run(t *testing.T, open func(t *testing.T) domain.VectorStore) {
	ctx := context.Background()

	t.Run("ShouldReturnNothingWhenEmpty", func(t *testing.T) {
		s := open(t)
		res, err := s.Query(ctx, domain.Vector{1, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, res)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ShouldOrderByDistanceThenInsertion", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []domain.Entry{
			Entry("far", 0, 1),
			Entry("near-first", 1, 0),
			Entry("near-second", 2, 0),
			Entry("middle", 1, 1),
		}))
		res, err := s.Query(ctx, domain.Vector{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, "near-first", res[0].Entry.Chunk.Text)
		assert.Equal(t, "near-second", res[1].Entry.Chunk.Text)
		assert.Equal(t, "middle", res[2].Entry.Chunk.Text)
		assert.Less(t, res[0].Entry.Seq, res[1].Entry.Seq)
		assert.InDelta(t, 0, res[0].Distance, 1e-6)
	})

	t.Run("ShouldReturnTopKCorrectly", func(t *testing.T) {
		s := open(t)
		rng := rand.New(rand.NewSource(7))
		var entries []domain.Entry
		for i := 0; i < 40; i++ {
			entries = append(entries, Entry(fmt.Sprint(i), rng.Float32()-0.5, rng.Float32()-0.5, rng.Float32()-0.5))
		}
		require.NoError(t, s.Add(ctx, entries))
		query := domain.Vector{0.3, -0.2, 0.9}
		all := make([]float64, len(entries))
		for i, e := range entries {
			all[i] = vectorstore.CosineDistance(e.Vector, query)
		}
		sort.Float64s(all)
		for _, k := range []int{1, 5, 40, 100} {
			res, err := s.Query(ctx, query, k)
			require.NoError(t, err)
			want := k
			if want > len(entries) {
				want = len(entries)
			}
			require.Len(t, res, want)
			worst := res[len(res)-1].Distance
			for i := range res {
				if i > 0 {
					assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
				}
			}
			if want < len(all) {
				assert.LessOrEqual(t, worst, all[want]+1e-9)
			}
		}
	})

	t.Run("ShouldAppendAndReportHashes", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []domain.Entry{Entry("a", 1, 0)}))
		require.NoError(t, s.Add(ctx, []domain.Entry{Entry("a", 1, 0), Entry("b", 0, 1)}))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		hashes, err := s.Hashes(ctx)
		require.NoError(t, err)
		assert.Len(t, hashes, 2)
		assert.Contains(t, hashes, "h:a")
	})

	t.Run("ShouldRejectDimensionMismatch", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []domain.Entry{Entry("a", 1, 0)}))
		err := s.Add(ctx, []domain.Entry{Entry("b", 1, 0, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		_, err = s.Query(ctx, domain.Vector{1, 0, 0}, 1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("ShouldReturnNothingForNonPositiveK", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Add(ctx, []domain.Entry{Entry("a", 1, 0)}))
		res, err := s.Query(ctx, domain.Vector{1, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

// RunPersistence checks that entries and their order survive reopening the same location.
func RunPersistence(t *testing.T, open func(t *testing.T, dir, embedder string) (domain.VectorStore, error)) {
	ctx := context.Background()

	t.Run("ShouldReloadEntriesInOrder", func(t *testing.T) {
		dir := t.TempDir()
		s, err := open(t, dir, "hash")
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, []domain.Entry{Entry("one", 1, 0), Entry("two", 1, 0)}))
		require.NoError(t, s.Close())

		reopened, err := open(t, dir, "hash")
		require.NoError(t, err)
		defer reopened.Close()
		n, err := reopened.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		res, err := reopened.Query(ctx, domain.Vector{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "one", res[0].Entry.Chunk.Text)
		assert.Equal(t, "two", res[1].Entry.Chunk.Text)

		require.NoError(t, reopened.Add(ctx, []domain.Entry{Entry("three", 1, 0)}))
		res, err = reopened.Query(ctx, domain.Vector{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, "three", res[2].Entry.Chunk.Text)
		assert.Greater(t, res[2].Entry.Seq, res[1].Entry.Seq)
	})

	t.Run("ShouldRejectDifferentEmbedder", func(t *testing.T) {
		dir := t.TempDir()
		s, err := open(t, dir, "hash")
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, []domain.Entry{Entry("one", 1, 0)}))
		require.NoError(t, s.Close())

		_, err = open(t, dir, "ollama:all-minilm")
		assert.ErrorIs(t, err, domain.ErrEmbedderMismatch)
	})
}
