package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LogConfig controls the structured logger. File is used by the chat UI,
// which cannot share the terminal with log output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// CollectorConfig configures the product page scraper.
type CollectorConfig struct {
	BaseURL     string `yaml:"base_url"`
	OutputDir   string `yaml:"output_dir"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	DelayMillis int    `yaml:"delay_ms"`
	UserAgent   string `yaml:"user_agent"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	Size              int    `yaml:"size"`
	Overlap           int    `yaml:"overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// HashEmbedderConfig configures the local feature-hashing embedder.
type HashEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OllamaEmbedderConfig holds configuration for embeddings served by Ollama.
type OllamaEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	CacheSize int                   `yaml:"cache_size"`
	Hash      *HashEmbedderConfig   `yaml:"hash,omitempty"`
	Ollama    *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
// Path is the persistence location of the local stores.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Path   string        `yaml:"path"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexerConfig configures corpus loading and the duplicate policy.
type IndexerConfig struct {
	Dir            string `yaml:"dir"`
	Glob           string `yaml:"glob"`
	BatchSize      int    `yaml:"batch_size"`
	Dedup          string `yaml:"dedup"`
	DebounceMillis int    `yaml:"debounce_ms"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// GeneratorConfig selects the language model used to answer.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Collector   CollectorConfig   `yaml:"collector"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator"`
	History     HistoryConfig     `yaml:"history"`
}

// LoadEnv reads .env from the working directory when present. Secrets are
// referenced from YAML by variable name only.
func LoadEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Keys missing from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		Log: LogConfig{Level: "info", File: "ragchat.log"},
		Collector: CollectorConfig{
			BaseURL:     "https://www.idbi.bank.in/personal-banking/",
			OutputDir:   "data",
			TimeoutSecs: 10,
			DelayMillis: 1000,
		},
		Chunker:     ChunkerConfig{Type: "window", Size: 500, Overlap: 50, SentencesPerChunk: 5, OverlapSentences: 1},
		Embedder:    EmbedderConfig{Type: "hash", CacheSize: 1024, Hash: &HashEmbedderConfig{Dimension: 384}},
		VectorStore: VectorStoreConfig{Type: "filesystem", Path: filepath.Join("data", "index")},
		Indexer:     IndexerConfig{Dir: "data", Glob: "**/*.txt", BatchSize: 32, Dedup: "skip", DebounceMillis: 500},
		Retrieval:   RetrievalConfig{TopK: 1},
		Generator:   GeneratorConfig{Provider: "ollama", Model: "gpt-oss:latest", Temperature: 0.1},
		History:     HistoryConfig{Path: "chat_history.json"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 1
	}
	if cfg.Embedder.Type == "hash" && cfg.Embedder.Hash == nil {
		cfg.Embedder.Hash = &HashEmbedderConfig{Dimension: 384}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "all-minilm"
		}
		if cfg.Embedder.Ollama.BatchSize == 0 {
			cfg.Embedder.Ollama.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 3
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragchat"
		}
	}
	if cfg.Generator.Provider == "openai" && cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
	}
}
