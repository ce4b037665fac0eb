package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("ShouldWriteJSONRecords", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true, TimeFormat: "15:04:05"})
		l.With("component", "indexer").Info("index built", "added", 3)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "index built", rec["msg"])
		assert.Equal(t, "indexer", rec["component"])
		assert.EqualValues(t, 3, rec["added"])
	})

	t.Run("ShouldFilterBelowLevel", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		l.Info("hidden")
		assert.Empty(t, buf.String())
		l.Warn("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestLogLevel(t *testing.T) {
	t.Run("ShouldDefaultUnknownToInfo", func(t *testing.T) {
		assert.Equal(t, InfoLevel.ToCharmlogLevel(), LogLevel("verbose").ToCharmlogLevel())
		assert.Equal(t, DebugLevel.ToCharmlogLevel(), LogLevel("DEBUG").ToCharmlogLevel())
	})
}

func TestFromContext(t *testing.T) {
	t.Run("ShouldReturnStoredLogger", func(t *testing.T) {
		l := Nop()
		assert.Equal(t, l, FromContext(ContextWithLogger(context.Background(), l)))
	})
	t.Run("ShouldFallBackToDefault", func(t *testing.T) {
		assert.Equal(t, GetDefault(), FromContext(context.Background()))
	})
}

func TestOpenFile(t *testing.T) {
	t.Run("ShouldCreateParentDirectories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "ragchat.log")
		f, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		assert.FileExists(t, path)
	})
}
