package store

import (
	"context"
	"path/filepath"
	"testing"

	"byd-rag/config"
	"byd-rag/rag"
)

func TestOpen_LocalBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Backend: "memory"}},
		{"sqlite", config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "docs.db")}},
		{"chromem", config.StoreConfig{Backend: "chromem", Path: filepath.Join(dir, "chromem")}},
		{"supabase", config.StoreConfig{Backend: "supabase", SupabaseURL: "http://127.0.0.1:1", SupabaseKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(context.Background(), &tt.cfg, 2)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer b.Close()
			if tt.name == "supabase" {
				return
			}

			ctx := context.Background()
			if err := b.Insert(ctx, rag.Row{Content: "The sky is blue.", Embedding: []float32{1, 0}}); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			matches, err := b.Search(ctx, []float32{1, 0}, rag.DefaultSearchParams)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(matches) != 1 || matches[0].Content != "The sky is blue." {
				t.Fatalf("unexpected matches %+v", matches)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), &config.StoreConfig{Backend: "redis"}, 2); err == nil {
		t.Fatalf("expected error")
	}
}
