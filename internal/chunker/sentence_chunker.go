package chunker

import (
	"regexp"
	"strings"

	"ragchat/internal/domain"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	content := document.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	// Spans keep unterminated trailing text as a final sentence.
	spans := c.splitter.FindAllStringIndex(content, -1)
	last := 0
	if len(spans) > 0 {
		last = spans[len(spans)-1][1]
	}
	if strings.TrimSpace(content[last:]) != "" {
		spans = append(spans, []int{last, len(content)})
	}
	loc := &locator{content: content}
	var chunks []domain.Chunk
	i := 0
	for i < len(spans) {
		end := i + c.sentencesPerChunk
		if end > len(spans) {
			end = len(spans)
		}
		text := strings.TrimSpace(content[spans[i][0]:spans[end-1][1]])
		start, stop := loc.find(text)
		chunks = append(chunks, newChunk(document, len(chunks), text, start, stop))
		if end == len(spans) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks, nil
}
