package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/config"
	"ragchat/internal/history"
	"ragchat/internal/vectorstore/filesystem"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/sqlite"
)

func TestNewEmbedder(t *testing.T) {
	t.Run("ShouldBuildCachedHashEmbedder", func(t *testing.T) {
		emb, err := newEmbedder(config.EmbedderConfig{Type: "hash", CacheSize: 8, Hash: &config.HashEmbedderConfig{Dimension: 64}})
		require.NoError(t, err)
		assert.Equal(t, "hash", emb.Name())
		assert.Equal(t, 64, emb.Dimension())
	})

	t.Run("ShouldRequireOpenAIKey", func(t *testing.T) {
		t.Setenv("RAGCHAT_TEST_KEY", "")
		_, err := newEmbedder(config.EmbedderConfig{Type: "openai", OpenAI: &config.OpenAIEmbedderConfig{APIKeyEnv: "RAGCHAT_TEST_KEY"}})
		assert.Error(t, err)
	})

	t.Run("ShouldRejectUnknownType", func(t *testing.T) {
		_, err := newEmbedder(config.EmbedderConfig{Type: "word2vec"})
		assert.ErrorContains(t, err, "unknown embedder")
	})
}

func TestNewStore(t *testing.T) {
	t.Run("ShouldSelectByType", func(t *testing.T) {
		s, err := newStore(config.VectorStoreConfig{Type: "memory"}, "hash")
		require.NoError(t, err)
		assert.IsType(t, &memory.Storage{}, s)

		s, err = newStore(config.VectorStoreConfig{Type: "filesystem", Path: t.TempDir()}, "hash")
		require.NoError(t, err)
		assert.IsType(t, &filesystem.Storage{}, s)

		s, err = newStore(config.VectorStoreConfig{Type: "sqlite", Path: t.TempDir()}, "hash")
		require.NoError(t, err)
		assert.IsType(t, &sqlite.Storage{}, s)
		require.NoError(t, s.Close())
	})

	t.Run("ShouldRequireQdrantSection", func(t *testing.T) {
		_, err := newStore(config.VectorStoreConfig{Type: "qdrant"}, "hash")
		assert.Error(t, err)
	})

	t.Run("ShouldRejectUnknownType", func(t *testing.T) {
		_, err := newStore(config.VectorStoreConfig{Type: "milvus"}, "hash")
		assert.ErrorContains(t, err, "unknown vector store")
	})
}

func TestResetStore(t *testing.T) {
	t.Run("ShouldRemoveLocalIndex", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "index")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, resetStore(config.VectorStoreConfig{Type: "filesystem", Path: dir}))
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ShouldRefuseRemoteStore", func(t *testing.T) {
		assert.Error(t, resetStore(config.VectorStoreConfig{Type: "qdrant"}))
	})
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Indexer.Dir = filepath.Join(root, "data")
	cfg.VectorStore.Path = filepath.Join(root, "index")
	cfg.History.Path = filepath.Join(root, "chat_history.json")
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path, root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	t.Run("ShouldIndexCorpusAndSkipOnRerun", func(t *testing.T) {
		cfgPath, root := writeConfig(t)
		data := filepath.Join(root, "data")
		require.NoError(t, os.MkdirAll(data, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(data, "savings.txt"), []byte("Savings accounts pay interest monthly."), 0o644))

		out, err := run(t, "--config", cfgPath, "index")
		require.NoError(t, err)
		assert.Contains(t, out, "indexed 1 documents into 1 chunks: 1 added, 0 skipped")

		out, err = run(t, "--config", cfgPath, "index")
		require.NoError(t, err)
		assert.Contains(t, out, "0 added, 1 skipped")

		out, err = run(t, "--config", cfgPath, "index", "--rebuild")
		require.NoError(t, err)
		assert.Contains(t, out, "1 added, 0 skipped")
	})

	t.Run("ShouldListRenameAndDeleteHistory", func(t *testing.T) {
		cfgPath, root := writeConfig(t)
		store := history.NewFileStore(filepath.Join(root, "chat_history.json"), nil)
		require.NoError(t, store.Save(history.History{
			"Savings": {{Sender: history.SenderUser, Text: "hi"}, {Sender: history.SenderAssistant, Text: "hello"}},
		}))

		out, err := run(t, "--config", cfgPath, "history", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Savings\t2 messages")

		_, err = run(t, "--config", cfgPath, "history", "rename", "Savings", "Deposits")
		require.NoError(t, err)
		assert.True(t, store.Load().Has("Deposits"))

		out, err = run(t, "--config", cfgPath, "history", "rename", "Missing", "Other")
		require.NoError(t, err)
		assert.Contains(t, out, "nothing renamed")
		out, err = run(t, "--config", cfgPath, "history", "rename", "Deposits", "  ")
		require.NoError(t, err)
		assert.Contains(t, out, "nothing renamed")
		assert.Equal(t, []string{"Deposits"}, store.Load().Names())

		_, err = run(t, "--config", cfgPath, "history", "delete", "Deposits")
		require.NoError(t, err)
		out, err = run(t, "--config", cfgPath, "history", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "no saved chats")
	})
}
