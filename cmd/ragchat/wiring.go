package main

import (
	"fmt"
	"os"
	"time"

	"ragchat/internal/chunker"
	"ragchat/internal/collector"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/embedding/hashing"
	"ragchat/internal/embedding/ollama"
	"ragchat/internal/embedding/openai"
	"ragchat/internal/generator"
	"ragchat/internal/indexer"
	"ragchat/internal/logger"
	"ragchat/internal/service"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/filesystem"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
	"ragchat/internal/vectorstore/sqlite"
)

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	return chunker.New(chunker.Settings{
		Type:              cfg.Type,
		Size:              cfg.Size,
		Overlap:           cfg.Overlap,
		SentencesPerChunk: cfg.SentencesPerChunk,
		OverlapSentences:  cfg.OverlapSentences,
	})
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "hash", "":
		dim := 0
		if cfg.Hash != nil {
			dim = cfg.Hash.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	case "ollama":
		oc := cfg.Ollama
		if oc == nil {
			oc = &config.OllamaEmbedderConfig{}
		}
		e, err := ollama.New(ollama.Config{
			BaseURL:   oc.BaseURL,
			Model:     oc.Model,
			Dimension: oc.Dimension,
			BatchSize: oc.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		emb = e
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimension:  cfg.OpenAI.Dimension,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if cfg.CacheSize > 0 {
		return embedding.NewCached(emb, cfg.CacheSize)
	}
	return emb, nil
}

func newStore(cfg config.VectorStoreConfig, embedderName string) (domain.VectorStore, error) {
	switch cfg.Type {
	case vectorstore.TypeFilesystem, "":
		return filesystem.Open(cfg.Path, embedderName)
	case vectorstore.TypeSQLite:
		return sqlite.Open(cfg.Path, embedderName)
	case vectorstore.TypeMemory:
		return memory.NewStorage(), nil
	case vectorstore.TypeQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		apiKey := ""
		if cfg.Qdrant.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     apiKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// resetStore deletes the persistence location of a local store.
func resetStore(cfg config.VectorStoreConfig) error {
	switch cfg.Type {
	case vectorstore.TypeFilesystem, vectorstore.TypeSQLite, "":
		if cfg.Path == "" {
			return fmt.Errorf("vector_store.path is empty")
		}
		if err := os.RemoveAll(cfg.Path); err != nil {
			return fmt.Errorf("remove %s: %w", cfg.Path, err)
		}
		return nil
	case vectorstore.TypeMemory:
		return nil
	default:
		return fmt.Errorf("rebuild is not supported for the %s store; drop the collection instead", cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	return generator.New(generator.Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		APIKeyEnv:   cfg.APIKeyEnv,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
}

func newCollector(cfg config.CollectorConfig, log logger.Logger) *collector.Collector {
	return collector.New(collector.Config{
		BaseURL:   cfg.BaseURL,
		OutputDir: cfg.OutputDir,
		Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		Delay:     time.Duration(cfg.DelayMillis) * time.Millisecond,
		UserAgent: cfg.UserAgent,
	}, log)
}

// pipeline is the embedder and store shared by indexing and answering.
type pipeline struct {
	embedder domain.Embedder
	store    domain.VectorStore
}

func (a *app) openPipeline() (*pipeline, error) {
	emb, err := newEmbedder(a.cfg.Embedder)
	if err != nil {
		return nil, err
	}
	store, err := newStore(a.cfg.VectorStore, emb.Name())
	if err != nil {
		return nil, err
	}
	return &pipeline{embedder: emb, store: store}, nil
}

func (p *pipeline) Close() error { return p.store.Close() }

func (a *app) newIndexer(p *pipeline) (*indexer.Indexer, error) {
	ch, err := newChunker(a.cfg.Chunker)
	if err != nil {
		return nil, err
	}
	return indexer.New(ch, p.embedder, p.store, indexer.Config{
		Glob:      a.cfg.Indexer.Glob,
		BatchSize: a.cfg.Indexer.BatchSize,
		Dedup:     a.cfg.Indexer.Dedup,
		Debounce:  time.Duration(a.cfg.Indexer.DebounceMillis) * time.Millisecond,
	}, a.log)
}

func (a *app) newService(p *pipeline) (*service.RAGService, error) {
	gen, err := newGenerator(a.cfg.Generator)
	if err != nil {
		return nil, err
	}
	return service.NewRAGService(p.embedder, p.store, gen, a.cfg.Retrieval.TopK, a.log), nil
}
