// Package store opens the configured vector store backend.
package store

import (
	"context"
	"fmt"

	"byd-rag/config"
	"byd-rag/rag"
	"byd-rag/store/chromemdb"
	"byd-rag/store/postgres"
	"byd-rag/store/sqlite"
	"byd-rag/store/supabase"
)

// Backend is a rag.Store that holds resources.
type Backend interface {
	rag.Store
	Close() error
}

type nopCloser struct{ rag.Store }

func (nopCloser) Close() error { return nil }

// Open creates the backend named by cfg.Backend. dims is the embedding
// size of the configured provider, used when a schema has to be created.
func Open(ctx context.Context, cfg *config.StoreConfig, dims int) (Backend, error) {
	switch cfg.Backend {
	case "supabase":
		s, err := supabase.New(supabase.Config{
			URL:      cfg.SupabaseURL,
			Key:      cfg.SupabaseKey,
			Table:    cfg.Table,
			Function: cfg.Function,
		})
		if err != nil {
			return nil, err
		}
		return nopCloser{s}, nil
	case "pgvector":
		s, err := postgres.Open(ctx, postgres.Config{
			DatabaseURL:  cfg.DatabaseURL,
			Table:        cfg.Table,
			Function:     cfg.Function,
			Dimensions:   dims,
			EnsureSchema: cfg.EnsureSchema,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "chromem":
		s, err := chromemdb.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return nopCloser{s}, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return nopCloser{rag.NewInMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
