package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.VectorStore {
		s, err := Open(t.TempDir(), "hash")
		require.NoError(t, err)
		return s
	})
	storetest.RunPersistence(t, func(_ *testing.T, dir, embedder string) (domain.VectorStore, error) {
		return Open(dir, embedder)
	})

	t.Run("ShouldFailOnCorruptSnapshot", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o600))
		_, err := Open(dir, "hash")
		assert.Error(t, err)
	})

	t.Run("ShouldCreateMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "store")
		s, err := Open(dir, "hash")
		require.NoError(t, err)
		require.NoError(t, s.Add(context.Background(), []domain.Entry{storetest.Entry("a", 1, 0)}))
		assert.FileExists(t, filepath.Join(dir, FileName))
	})
}
