// Package service answers questions by retrieving indexed context and asking a generator.
package service

import (
	"context"
	"errors"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/generator"
	"ragchat/internal/logger"
)

const (
	StageEmbed    = "embed question"
	StageRetrieve = "retrieve context"
	StageGenerate = "generate answer"

	DefaultTopK = 1
)

var ErrEmptyQuestion = errors.New("question is empty")

// StageError records which step of Ask failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Answer is the generated text plus the passages it was grounded on.
type Answer struct {
	Text    string
	Sources []domain.SearchResult
}

type RAGService struct {
	embedder  domain.Embedder
	retriever domain.Retriever
	generator domain.Generator
	topK      int
	log       logger.Logger
}

func NewRAGService(embedder domain.Embedder, retriever domain.Retriever, gen domain.Generator, topK int, log logger.Logger) *RAGService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RAGService{embedder: embedder, retriever: retriever, generator: gen, topK: topK, log: log.With("component", "service")}
}

// Ask embeds the question with the indexing embedder, retrieves the nearest
// passages and returns the generator's answer verbatim. An empty index still
// produces an answer, generated without context.
func (s *RAGService) Ask(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, s.fail(StageEmbed, err)
	}
	results, err := s.retriever.Query(ctx, vec, s.topK)
	if err != nil {
		return Answer{}, s.fail(StageRetrieve, err)
	}
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Entry.Chunk.Text
	}
	s.log.Debug("retrieved context", "results", len(results), "top_k", s.topK)
	text, err := s.generator.Generate(ctx, generator.BuildPrompt(passages, question))
	if err != nil {
		return Answer{}, s.fail(StageGenerate, err)
	}
	return Answer{Text: text, Sources: results}, nil
}

func (s *RAGService) fail(stage string, err error) error {
	s.log.Error("ask failed", "stage", stage, "err", err)
	return &StageError{Stage: stage, Err: err}
}
