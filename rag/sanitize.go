package rag

import (
	"fmt"
	"math"
	"strings"
)

var textCleaner = strings.NewReplacer("\n", " ", "\x00", "")

// CleanText collapses newlines to spaces and strips NUL bytes.
// Postgres text columns reject NUL, and the embedding API treats newlines as noise.
func CleanText(s string) string {
	return textCleaner.Replace(s)
}

// CleanQuery collapses newlines to spaces.
func CleanQuery(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// CleanEmbedding checks a provider vector before it is stored: it must be
// non-empty, finite and, when dims > 0, exactly dims long. Mixing
// dimensionalities in one table breaks similarity search.
func CleanEmbedding(v []float32, dims int) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	if dims > 0 && len(v) != dims {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(v), dims)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("embedding value %d is not finite", i)
		}
	}
	return v, nil
}
