package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func newTestIngester(src DocumentSource, e Embedder, s Store, opts IngestOptions) *Ingester {
	return NewIngester(src, lineSplitter{}, e, s, opts, nil)
}

func TestIngest_InsertsEveryChunk(t *testing.T) {
	src := &fakeSource{pages: map[string][]Page{
		"doc.pdf": {{Number: 1, Text: "alpha\nbeta|gamma\x00"}, {Number: 2, Text: "delta"}},
	}}
	emb := &fakeEmbedder{dims: 4}
	store := &failingStore{InMemoryStore: NewInMemoryStore()}

	report, err := newTestIngester(src, emb, store, IngestOptions{Workers: 2}).Ingest(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Chunks != 3 || report.Inserted != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.Calls() != 3 {
		t.Fatalf("expected 3 insert calls, got %d", store.Calls())
	}
	for _, row := range store.Rows() {
		if row.Content == "" {
			t.Fatalf("stored empty content")
		}
		if len(row.Embedding) != 4 {
			t.Fatalf("expected 4 dims, got %d", len(row.Embedding))
		}
	}
	for _, in := range emb.Inputs() {
		if strings.ContainsAny(in, "\n\x00") {
			t.Fatalf("embedding input not sanitized: %q", in)
		}
	}
}

func TestIngest_OneFailureFailsTheCall(t *testing.T) {
	src := &fakeSource{pages: map[string][]Page{
		"doc.pdf": {{Number: 1, Text: "one|two|three|four"}},
	}}
	store := &failingStore{InMemoryStore: NewInMemoryStore(), failOn: "three"}

	report, err := newTestIngester(src, &fakeEmbedder{}, store, IngestOptions{Workers: 4}).Ingest(context.Background(), "doc.pdf")
	if err == nil {
		t.Fatalf("expected an error when one insert fails")
	}
	var ie *IngestError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *IngestError, got %T", err)
	}
	if report.Failed != 1 || report.Inserted != 3 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	failures := report.Failures()
	if len(failures) != 1 || failures[0].Index != 2 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if KindOf(err) != KindStore {
		t.Fatalf("expected store kind, got %s", KindOf(err))
	}
	// partial writes stay
	if store.Count() != 3 {
		t.Fatalf("expected 3 committed rows, got %d", store.Count())
	}
}

func TestIngest_EmbedFailureIsReported(t *testing.T) {
	src := &fakeSource{pages: map[string][]Page{"d": {{Number: 1, Text: "ok|bad"}}}}
	emb := &fakeEmbedder{failOn: "bad"}

	report, err := newTestIngester(src, emb, NewInMemoryStore(), IngestOptions{}).Ingest(context.Background(), "d")
	if err == nil || KindOf(err) != KindEmbed {
		t.Fatalf("expected embed error, got %v", err)
	}
	if report.Inserted != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIngest_FailFastStopsScheduling(t *testing.T) {
	parts := make([]string, 50)
	for i := range parts {
		parts[i] = "chunk"
	}
	parts[0] = "bad"
	src := &fakeSource{pages: map[string][]Page{"d": {{Number: 1, Text: strings.Join(parts, "|")}}}}
	emb := &fakeEmbedder{failOn: "bad"}

	var mu sync.Mutex
	seen := 0
	in := newTestIngester(src, emb, NewInMemoryStore(), IngestOptions{Workers: 1, FailFast: true}).
		WithProgress(func(ChunkOutcome) {
			mu.Lock()
			seen++
			mu.Unlock()
		})

	report, err := in.Ingest(context.Background(), "d")
	if err == nil {
		t.Fatalf("expected error")
	}
	if report.Inserted != 0 || report.Failed != 50 {
		t.Fatalf("expected everything after the first failure to be skipped, got %+v", report)
	}
	if seen != 50 {
		t.Fatalf("expected a progress call per chunk, got %d", seen)
	}
	if got := len(emb.Inputs()); got != 1 {
		t.Fatalf("expected a single embed call, got %d", got)
	}
}

func TestIngest_PlannedBeforeProgress(t *testing.T) {
	src := &fakeSource{pages: map[string][]Page{"d": {{Number: 1, Text: "a|b|c"}}}}

	var mu sync.Mutex
	planned, done := -1, 0
	in := newTestIngester(src, &fakeEmbedder{}, NewInMemoryStore(), IngestOptions{Workers: 2}).
		WithPlanned(func(chunks int) {
			mu.Lock()
			defer mu.Unlock()
			if done != 0 {
				t.Errorf("planned after %d chunks finished", done)
			}
			planned = chunks
		}).
		WithProgress(func(ChunkOutcome) {
			mu.Lock()
			done++
			mu.Unlock()
		})

	report, err := in.Ingest(context.Background(), "d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if planned != report.Chunks || planned != 3 || done != 3 {
		t.Fatalf("planned %d, done %d, report %+v", planned, done, report)
	}
}

// stallingEmbedder fails on failOn and blocks every other call until the
// context is cancelled.
type stallingEmbedder struct {
	failOn string
}

func (e stallingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == e.failOn {
		return nil, errors.New("provider exploded")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallingEmbedder) Dimensions() int { return 3 }

func TestIngest_FailFastReportsTheRealCause(t *testing.T) {
	src := &fakeSource{pages: map[string][]Page{"d": {{Number: 1, Text: "one|two|bad|four"}}}}
	in := newTestIngester(src, stallingEmbedder{failOn: "bad"}, NewInMemoryStore(), IngestOptions{Workers: 4, FailFast: true})

	report, err := in.Ingest(context.Background(), "d")
	if err == nil {
		t.Fatalf("expected error")
	}
	if report.Failed != 4 {
		t.Fatalf("expected every chunk to fail, got %+v", report)
	}
	if !strings.Contains(err.Error(), "provider exploded") {
		t.Fatalf("expected the embed failure in the message, got %q", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("cause should not be the cancellation: %v", err)
	}
	if KindOf(err) != KindEmbed {
		t.Fatalf("expected embed kind, got %s", KindOf(err))
	}
	if report.Cause == nil || !strings.Contains(report.Cause.Error(), "d-3") {
		t.Fatalf("expected the third chunk as cause, got %v", report.Cause)
	}
}

func TestIngest_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"unreadable", &fakeSource{err: errors.New("open bydprojects.pdf: no such file")}},
		{"empty", &fakeSource{pages: map[string][]Page{"d": {{Number: 1, Text: "  "}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestIngester(tt.src, &fakeEmbedder{}, NewInMemoryStore(), IngestOptions{}).Ingest(context.Background(), "d")
			if err == nil {
				t.Fatalf("expected error")
			}
			if KindOf(err) != KindLoad {
				t.Fatalf("expected load kind, got %s", KindOf(err))
			}
			if report != nil {
				t.Fatalf("expected no report, got %+v", report)
			}
		})
	}
}
