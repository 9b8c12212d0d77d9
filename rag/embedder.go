package rag

import (
	"context"
	"unicode"
)

// SimpleEmbedder is a deterministic offline embedder based on rune classes.
// It needs no network access, which makes it handy for local runs
// (provider "simple") and tests. Its vectors carry no semantics.
type SimpleEmbedder struct{}

func NewSimpleEmbedder() *SimpleEmbedder {
	return &SimpleEmbedder{}
}

// Embed returns length, vowels, consonants, spaces, digits and punctuation.
func (e *SimpleEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	var length, vowels, consonants, spaces, digits, punct float32
	for _, r := range text {
		length++
		switch {
		case r == 'a' || r == 'e' || r == 'i' || r == 'o' || r == 'u' ||
			r == 'A' || r == 'E' || r == 'I' || r == 'O' || r == 'U':
			vowels++
		case unicode.IsSpace(r):
			spaces++
		case unicode.IsDigit(r):
			digits++
		case unicode.IsPunct(r):
			punct++
		default:
			consonants++
		}
	}
	// keep empty text off the zero vector so cosine stays defined
	return []float32{length + 1, vowels, consonants, spaces, digits, punct}, nil
}

func (e *SimpleEmbedder) Dimensions() int { return 6 }
