package rag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 2048
	DefaultChunkOverlap = 200
)

// NewSplitter returns a recursive character splitter: it tries paragraph,
// line, word and finally character boundaries until pieces fit in size
// characters, keeping overlap characters between neighbours.
func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
}

// ChunkPages splits every page on its own, the way a per-page PDF loader
// feeds a splitter. Whitespace-only pieces are dropped.
func ChunkPages(splitter Splitter, source string, pages []Page) ([]Chunk, error) {
	var chunks []Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		pieces, err := splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", p.Number, err)
		}
		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:      source + "-" + strconv.Itoa(len(chunks)+1),
				Content: piece,
				Source:  source,
				Page:    p.Number,
			})
		}
	}
	return chunks, nil
}
