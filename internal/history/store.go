package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ragchat/internal/logger"
)

const DefaultPath = "chat_history.json"

// FileStore reads and rewrites the whole history file.
type FileStore struct {
	Path string
	Log  logger.Logger
}

func NewFileStore(path string, log logger.Logger) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &FileStore{Path: path, Log: log.With("component", "history")}
}

// Load never fails: a missing, unreadable or malformed file yields an empty history.
func (s *FileStore) Load() History {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("read history", err)
		}
		return History{}
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		s.warn("decode history", err)
		return History{}
	}
	if h == nil {
		return History{}
	}
	return h
}

// Save rewrites the file with indented JSON. Keys come out sorted and
// non-ASCII text is written as is.
func (s *FileStore) Save(h History) error {
	if h == nil {
		h = History{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

func (s *FileStore) warn(msg string, err error) {
	if s.Log != nil {
		s.Log.Warn(msg, "path", s.Path, "err", err)
	}
}
