package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	t.Run("ShouldBeDeterministicAcrossInstances", func(t *testing.T) {
		text := "What is the interest rate on a savings account?"
		a, err := NewEmbedder(128).Embed(ctx, text)
		require.NoError(t, err)
		b, err := NewEmbedder(128).Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 128)
	})

	t.Run("ShouldReturnUnitVectors", func(t *testing.T) {
		v, err := NewEmbedder(0).Embed(ctx, "Suvidha Fixed Deposit interest rates")
		require.NoError(t, err)
		require.Len(t, v, DefaultDimension)
		norm := 0.0
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-4)
	})

	t.Run("ShouldReturnZeroVectorForStopwordsOnly", func(t *testing.T) {
		v, err := NewEmbedder(16).Embed(ctx, "the and of")
		require.NoError(t, err)
		for _, x := range v {
			assert.Zero(t, x)
		}
	})

	t.Run("ShouldRankRelatedTextHigher", func(t *testing.T) {
		e := NewEmbedder(256)
		q, _ := e.Embed(ctx, "minimum balance savings account")
		related, _ := e.Embed(ctx, "The savings account requires a minimum balance of Rs 10,000")
		unrelated, _ := e.Embed(ctx, "Indian Navy salary account with insurance cover")
		assert.Greater(t, cosine(q, related), cosine(q, unrelated))
	})

	t.Run("ShouldEmbedBatchInOrder", func(t *testing.T) {
		e := NewEmbedder(32)
		texts := []string{"one account", "two deposits"}
		vecs, err := e.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		for i, text := range texts {
			single, _ := e.Embed(ctx, text)
			assert.Equal(t, single, vecs[i])
		}
	})
}
