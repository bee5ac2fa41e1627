// Package chunking splits extracted document text into bounded, overlapping
// chunks for embedding.
package chunking

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/studyplanner/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// Separators are tried in order: paragraph, line, sentence, word, then a
// hard cut between characters.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

// ErrInvalidSize indicates an unusable chunk size or overlap.
var ErrInvalidSize = errors.New("invalid chunk size")

// Splitter performs recursive character splitting.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
	size     int
	overlap  int
}

// New creates a Splitter producing chunks of at most size characters that
// share up to overlap characters with their predecessor.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d with size %d", ErrInvalidSize, overlap, size)
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
		size:    size,
		overlap: overlap,
	}, nil
}

// Size returns the maximum chunk length in characters.
func (s *Splitter) Size() int {
	return s.size
}

// Split cuts text into chunks tagged with meta. Chunk indexes start at zero
// and are contiguous. Blank text yields no chunks.
func (s *Splitter) Split(text string, meta core.ChunkMetadata) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]core.Chunk, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := meta
		m.ChunkIndex = len(chunks)
		chunks = append(chunks, core.Chunk{Text: part, Index: m.ChunkIndex, Metadata: m})
	}
	return chunks, nil
}
