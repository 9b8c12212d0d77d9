package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// QueryOptions tunes a Querier.
type QueryOptions struct {
	Search SearchParams
	// SystemPrompt overrides the default persona when non-empty.
	SystemPrompt string
	// SkipEmptyContext answers with NoContextAnswer instead of calling the
	// model when nothing was retrieved.
	SkipEmptyContext bool
	NoContextAnswer  string
}

// Querier answers questions from the stored chunks.
type Querier struct {
	embedder  Embedder
	store     Store
	completer Completer
	opts      QueryOptions
	logger    *zap.Logger
}

func NewQuerier(embedder Embedder, store Store, completer Completer, opts QueryOptions, logger *zap.Logger) *Querier {
	if opts.Search.Limit <= 0 {
		opts.Search.Limit = DefaultSearchParams.Limit
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Querier{
		embedder:  embedder,
		store:     store,
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Retrieve embeds the query and returns the matching chunks, best first.
func (q *Querier) Retrieve(ctx context.Context, query string) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, Errorf(KindInvalid, "query", "query is required")
	}
	vec, err := q.embedder.Embed(ctx, CleanQuery(query))
	if err != nil {
		return nil, Wrap(KindEmbed, "embed query", err)
	}
	matches, err := q.store.Search(ctx, vec, q.opts.Search)
	if err != nil {
		return nil, Wrap(KindStore, "match documents", err)
	}

	// hold every backend to the same contract
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= q.opts.Search.Threshold {
			kept = append(kept, m)
		}
	}
	return TopMatches(kept, q.opts.Search.Limit), nil
}

// Answer runs retrieval and asks the completion model.
func (q *Querier) Answer(ctx context.Context, query string) (*Answer, error) {
	matches, err := q.Retrieve(ctx, query)
	if err != nil {
		q.logger.Error("retrieval failed", zap.Stringer("kind", KindOf(err)), zap.Error(err))
		return nil, err
	}

	contextText := BuildContext(matches)
	messages := BuildMessages(q.opts.SystemPrompt, contextText, query)
	answer := &Answer{Context: matches, Prompt: messages}

	if len(matches) == 0 && q.opts.SkipEmptyContext {
		q.logger.Info("no context retrieved, skipping completion")
		answer.Text = q.opts.NoContextAnswer
		return answer, nil
	}

	text, err := q.completer.Complete(ctx, messages)
	if err != nil {
		err = Wrap(KindComplete, "complete", err)
		q.logger.Error("completion failed", zap.Error(err))
		return nil, err
	}
	answer.Text = text
	q.logger.Info("query answered", zap.Int("context_rows", len(matches)))
	return answer, nil
}
