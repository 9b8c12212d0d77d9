package rag

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
)

// InMemoryStore keeps rows in process memory. Used by tests and by the
// "memory" backend; nothing survives a restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows []storedRow
	next int
}

type storedRow struct {
	id string
	Row
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.rows = append(s.rows, storedRow{id: strconv.Itoa(s.next), Row: row})
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 when undefined.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (s *InMemoryStore) Search(_ context.Context, embedding []float32, params SearchParams) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Match, 0, len(s.rows))
	for _, r := range s.rows {
		score := Cosine(embedding, r.Embedding)
		if score <= params.Threshold {
			continue
		}
		results = append(results, Match{ID: r.id, Content: r.Content, Similarity: score})
	}
	return TopMatches(results, params.Limit), nil
}

// TopMatches sorts by descending similarity and keeps at most limit entries.
// limit <= 0 keeps everything.
func TopMatches(matches []Match, limit int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Rows returns a copy of everything stored, in insertion order.
func (s *InMemoryStore) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Row
	}
	return out
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
}
