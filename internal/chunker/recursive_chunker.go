package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"ragchat/internal/domain"
)

// RecursiveChunker splits on paragraph, line and word separators in turn until
// every piece fits the configured size.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}, nil
}

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	segments, err := c.splitter.SplitText(document.Content)
	if err != nil {
		return nil, fmt.Errorf("split document %s: %w", document.ID, err)
	}
	loc := &locator{content: document.Content}
	chunks := make([]domain.Chunk, 0, len(segments))
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		start, end := loc.find(segment)
		chunks = append(chunks, newChunk(document, len(chunks), segment, start, end))
	}
	return chunks, nil
}
