package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultIngestWorkers = 8

// IngestOptions tunes an Ingester.
type IngestOptions struct {
	// Workers caps concurrent embed+insert calls.
	Workers int
	// FailFast stops scheduling chunks after the first failure.
	FailFast bool
	// Progress, when set, is called once per finished chunk, possibly from
	// several goroutines at once.
	Progress func(done ChunkOutcome)
	// Planned, when set, is called once with the chunk count before any
	// chunk is scheduled.
	Planned func(chunks int)
}

// Ingester loads a document, chunks it, embeds each chunk and stores it.
type Ingester struct {
	source   DocumentSource
	splitter Splitter
	embedder Embedder
	store    Store
	opts     IngestOptions
	logger   *zap.Logger
}

func NewIngester(source DocumentSource, splitter Splitter, embedder Embedder, store Store, opts IngestOptions, logger *zap.Logger) *Ingester {
	if opts.Workers <= 0 {
		opts.Workers = DefaultIngestWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		source:   source,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger,
	}
}

// WithProgress returns a copy of the ingester reporting to fn.
func (in *Ingester) WithProgress(fn func(ChunkOutcome)) *Ingester {
	cp := *in
	cp.opts.Progress = fn
	return &cp
}

// WithPlanned returns a copy of the ingester announcing the chunk count to fn.
func (in *Ingester) WithPlanned(fn func(chunks int)) *Ingester {
	cp := *in
	cp.opts.Planned = fn
	return &cp
}

// Chunks loads and splits a document without embedding it.
func (in *Ingester) Chunks(ctx context.Context, documentID string) ([]Chunk, error) {
	pages, err := in.source.Load(ctx, documentID)
	if err != nil {
		return nil, Wrap(KindLoad, "load "+documentID, err)
	}
	var text strings.Builder
	for _, p := range pages {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, Errorf(KindLoad, "load "+documentID, "document has no extractable text")
	}
	chunks, err := ChunkPages(in.splitter, documentID, pages)
	if err != nil {
		return nil, Wrap(KindLoad, "chunk "+documentID, err)
	}
	return chunks, nil
}

// Ingest stores every chunk of the document. It returns the report and a
// nil error only when all chunks were inserted; otherwise the error is an
// *IngestError holding the same report. Rows inserted before a failure stay.
func (in *Ingester) Ingest(ctx context.Context, documentID string) (*IngestReport, error) {
	chunks, err := in.Chunks(ctx, documentID)
	if err != nil {
		in.logger.Error("failed to load document", zap.String("document", documentID), zap.Error(err))
		return nil, err
	}

	report := &IngestReport{
		Document: documentID,
		Chunks:   len(chunks),
		Outcomes: make([]ChunkOutcome, len(chunks)),
	}
	in.logger.Info("ingesting document",
		zap.String("document", documentID),
		zap.Int("chunks", len(chunks)),
		zap.Int("workers", in.opts.Workers))
	if in.opts.Planned != nil {
		in.opts.Planned(len(chunks))
	}

	var g *errgroup.Group
	runCtx := ctx
	if in.opts.FailFast {
		g, runCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(in.opts.Workers)

	var causeMu sync.Mutex
	for i, ch := range chunks {
		g.Go(func() error {
			// each worker owns report.Outcomes[i]
			err := in.ingestChunk(runCtx, ch)
			outcome := ChunkOutcome{Index: i, ChunkID: ch.ID, Inserted: err == nil, Err: err}
			report.Outcomes[i] = outcome
			if err != nil {
				causeMu.Lock()
				if report.Cause == nil && !errors.Is(err, context.Canceled) {
					report.Cause = err
				}
				causeMu.Unlock()
				in.logger.Error("failed to ingest chunk",
					zap.String("chunk_id", ch.ID),
					zap.Int("page", ch.Page),
					zap.Stringer("kind", KindOf(err)),
					zap.Error(err))
			}
			if in.opts.Progress != nil {
				in.opts.Progress(outcome)
			}
			if in.opts.FailFast {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range report.Outcomes {
		if o.Inserted {
			report.Inserted++
		} else {
			report.Failed++
		}
	}
	if report.Failed > 0 {
		return report, &IngestError{Report: report}
	}
	in.logger.Info("document ingested", zap.String("document", documentID), zap.Int("inserted", report.Inserted))
	return report, nil
}

func (in *Ingester) ingestChunk(ctx context.Context, ch Chunk) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "skip " + ch.ID, Err: fmt.Errorf("not started: %w", err), Transient: true}
	}
	content := CleanText(ch.Content)
	if strings.TrimSpace(content) == "" {
		return Errorf(KindInvalid, "chunk "+ch.ID, "empty content")
	}

	vec, err := in.embedder.Embed(ctx, content)
	if err != nil {
		return Wrap(KindEmbed, "embed "+ch.ID, err)
	}
	vec, err = CleanEmbedding(vec, in.embedder.Dimensions())
	if err != nil {
		return Wrap(KindEmbed, "embed "+ch.ID, err)
	}

	if err := in.store.Insert(ctx, Row{Content: content, Embedding: vec}); err != nil {
		return Wrap(KindStore, "insert "+ch.ID, err)
	}
	return nil
}
