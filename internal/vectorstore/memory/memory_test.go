package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore { return NewStorage() })

	t.Run("ShouldNotShareVectorWithCaller", func(t *testing.T) {
		s := NewStorage()
		e := storetest.Entry("a", 1, 0)
		require.NoError(t, s.Add(context.Background(), []domain.Entry{e}))
		e.Vector[0] = -1
		res, err := s.Query(context.Background(), domain.Vector{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.InDelta(t, 0, res[0].Distance, 1e-9)
	})
}
