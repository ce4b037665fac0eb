package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

const (
	TypeWindow    = "window"
	TypeRecursive = "recursive"
	TypeSentence  = "sentence"
)

// Settings selects and configures a chunking strategy.
type Settings struct {
	Type              string
	Size              int
	Overlap           int
	SentencesPerChunk int
	OverlapSentences  int
}

// New builds the chunker named by settings.Type; an empty type selects the window chunker.
func New(settings Settings) (domain.Chunker, error) {
	switch settings.Type {
	case TypeWindow, "":
		return NewWindowChunker(settings.Size, settings.Overlap)
	case TypeRecursive:
		return NewRecursiveChunker(settings.Size, settings.Overlap)
	case TypeSentence:
		return NewSentenceChunker(settings.SentencesPerChunk, settings.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", settings.Type)
	}
}

// HashText returns the content hash used to detect duplicate chunks.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

func newChunk(doc domain.Document, idx int, text string, start, end int) domain.Chunk {
	return domain.Chunk{
		DocumentID: doc.ID,
		Source:     doc.Source,
		Index:      idx,
		Text:       text,
		Start:      start,
		End:        end,
		Hash:       HashText(text),
	}
}

// locator finds successive segments inside a document and reports their rune offsets.
// Segments that cannot be found get offsets of -1.
type locator struct {
	content    string
	byteCursor int
}

func (l *locator) find(segment string) (int, int) {
	pos := strings.Index(l.content[l.byteCursor:], segment)
	if pos < 0 {
		return -1, -1
	}
	bytePos := l.byteCursor + pos
	start := utf8.RuneCountInString(l.content[:bytePos])
	end := start + utf8.RuneCountInString(segment)
	if len(segment) > 0 {
		_, size := utf8.DecodeRuneInString(l.content[bytePos:])
		l.byteCursor = bytePos + size
	}
	return start, end
}
