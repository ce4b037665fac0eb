package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/hashing"
	"ragchat/internal/logger"
	"ragchat/internal/vectorstore/memory"
)

type recordingGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

type failingEmbedder struct{ domain.Embedder }

func (failingEmbedder) Embed(context.Context, string) (domain.Vector, error) {
	return nil, errors.New("model not loaded")
}

func seed(t *testing.T, emb domain.Embedder, texts ...string) *memory.Storage {
	t.Helper()
	store := memory.NewStorage()
	vecs, err := emb.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	entries := make([]domain.Entry, len(texts))
	for i := range texts {
		entries[i] = domain.Entry{Chunk: domain.Chunk{Source: "doc", Text: texts[i]}, Vector: vecs[i]}
	}
	require.NoError(t, store.Add(context.Background(), entries))
	return store
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	emb := hashing.NewEmbedder(128)

	t.Run("ShouldGroundAnswerOnNearestPassage", func(t *testing.T) {
		store := seed(t, emb,
			"Savings accounts earn interest credited quarterly.",
			"Fixed deposits lock funds for a chosen tenure.",
		)
		gen := &recordingGenerator{reply: "Quarterly."}
		svc := NewRAGService(emb, store, gen, 1, logger.Nop())

		ans, err := svc.Ask(ctx, "When is savings interest credited?")
		require.NoError(t, err)
		assert.Equal(t, "Quarterly.", ans.Text)
		require.Len(t, ans.Sources, 1)
		assert.Contains(t, ans.Sources[0].Entry.Chunk.Text, "quarterly")
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "Savings accounts earn interest credited quarterly.")
		assert.NotContains(t, gen.prompts[0], "Fixed deposits")
	})

	t.Run("ShouldStillGenerateWithEmptyIndex", func(t *testing.T) {
		gen := &recordingGenerator{reply: "I don't know."}
		svc := NewRAGService(emb, memory.NewStorage(), gen, 1, logger.Nop())
		ans, err := svc.Ask(ctx, "Hello?")
		require.NoError(t, err)
		assert.Equal(t, "I don't know.", ans.Text)
		assert.Empty(t, ans.Sources)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "Question: Hello?")
	})

	t.Run("ShouldTagGenerationFailure", func(t *testing.T) {
		boom := errors.New("connection refused")
		svc := NewRAGService(emb, memory.NewStorage(), &recordingGenerator{err: boom}, 1, logger.Nop())
		_, err := svc.Ask(ctx, "Hello?")
		require.ErrorIs(t, err, boom)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageGenerate, stageErr.Stage)
		assert.Equal(t, "generate answer: connection refused", err.Error())
	})

	t.Run("ShouldTagEmbeddingFailure", func(t *testing.T) {
		gen := &recordingGenerator{}
		svc := NewRAGService(failingEmbedder{emb}, memory.NewStorage(), gen, 1, logger.Nop())
		_, err := svc.Ask(ctx, "Hello?")
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageEmbed, stageErr.Stage)
		assert.Empty(t, gen.prompts)
	})

	t.Run("ShouldTagRetrievalFailure", func(t *testing.T) {
		store := seed(t, hashing.NewEmbedder(16), "short dimension passage")
		svc := NewRAGService(emb, store, &recordingGenerator{}, 1, logger.Nop())
		_, err := svc.Ask(ctx, "passage")
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageRetrieve, stageErr.Stage)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("ShouldRejectBlankQuestion", func(t *testing.T) {
		svc := NewRAGService(emb, memory.NewStorage(), &recordingGenerator{}, 1, logger.Nop())
		_, err := svc.Ask(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})
}
