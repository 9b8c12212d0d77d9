package rag

import (
	"context"
	"errors"
	"sync"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	dims   int
	inputs []string
	err    error
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("embedding service unavailable")
	}
	v := make([]float32, f.Dimensions())
	for i := range v {
		v[i] = 1
	}
	return v, nil
}

func (f *fakeEmbedder) Dimensions() int {
	if f.dims == 0 {
		return 3
	}
	return f.dims
}

func (f *fakeEmbedder) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

// failingStore wraps an InMemoryStore and rejects rows whose content matches failOn.
type failingStore struct {
	*InMemoryStore
	mu      sync.Mutex
	calls   int
	failOn  string
	results []Match
	err     error
}

func (s *failingStore) Insert(ctx context.Context, row Row) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failOn != "" && row.Content == s.failOn {
		return errors.New("duplicate key value violates constraint")
	}
	return s.InMemoryStore.Insert(ctx, row)
}

func (s *failingStore) Search(ctx context.Context, v []float32, p SearchParams) ([]Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.results != nil {
		return append([]Match(nil), s.results...), nil
	}
	return s.InMemoryStore.Search(ctx, v, p)
}

func (s *failingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeCompleter struct {
	mu       sync.Mutex
	messages []Message
	calls    int
	reply    string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeSource struct {
	pages map[string][]Page
	err   error
}

func (f *fakeSource) Load(_ context.Context, id string) ([]Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pages[id]
	if !ok {
		return nil, errors.New("no such document: " + id)
	}
	return p, nil
}

// lineSplitter yields one chunk per non-empty line.
type lineSplitter struct{}

func (lineSplitter) SplitText(text string) ([]string, error) {
	var out []string
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '|' {
			out = append(out, text[start:i])
			start = i + 1
		}
	}
	return out, nil
}
