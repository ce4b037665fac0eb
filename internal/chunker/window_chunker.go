package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"ragchat/internal/domain"
)

// WindowChunker splits text into fixed-size rune windows that overlap by a fixed amount.
// A window is shortened to end after the last whitespace it contains, as long as
// that keeps it longer than the overlap.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	runes := []rune(document.Content)
	n := len(runes)
	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := start + c.size
		if end > n {
			end = n
		}
		if end < n {
			for i := end; i > start+c.overlap; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}
		chunks = append(chunks, newChunk(document, idx, string(runes[start:end]), start, end))
		if end == n {
			break
		}
		start = end - c.overlap
	}
	return chunks, nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be greater than zero", domain.ErrInvalidChunkConfig)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative", domain.ErrInvalidChunkConfig)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", domain.ErrInvalidChunkConfig, overlap, size)
	}
	return nil
}
