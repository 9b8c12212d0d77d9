package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bydrag.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("BYDRAG_PORT", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":3035" {
		t.Errorf("Addr = %q, want :3035", cfg.Server.Addr)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Temperature != 0.8 {
		t.Errorf("unexpected provider defaults: %+v", cfg.Provider)
	}
	if cfg.Store.Backend != "memory" || cfg.Store.Function != "match_documents" || cfg.Store.Table != "documents" {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Ingest.ChunkSize != 2048 || cfg.Ingest.ChunkOverlap != 200 || cfg.Ingest.DefaultDocument != "bydprojects.pdf" {
		t.Errorf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Query.Threshold != 0.5 || cfg.Query.Limit != 10 || !cfg.Query.AllowEmptyContext {
		t.Errorf("unexpected query defaults: %+v", cfg.Query)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  request_timeout: 45s
provider:
  name: openai
  openai_api_key: from-file
store:
  backend: supabase
  supabase_url: https://file.supabase.co
  supabase_key: anon
ingest:
  workers: 3
  fail_fast: true
query:
  allow_empty_context: false
`)
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("BYDRAG_PORT", "8088")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.OpenAIAPIKey != "from-env" {
		t.Errorf("env should override file, got %q", cfg.Provider.OpenAIAPIKey)
	}
	if cfg.Store.SupabaseURL != "https://env.supabase.co" || cfg.Store.SupabaseKey != "anon" {
		t.Errorf("unexpected store: %+v", cfg.Store)
	}
	if cfg.Server.Addr != ":8088" {
		t.Errorf("Addr = %q, want :8088", cfg.Server.Addr)
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Ingest.Workers != 3 || !cfg.Ingest.FailFast {
		t.Errorf("unexpected ingest: %+v", cfg.Ingest)
	}
	if cfg.Query.AllowEmptyContext {
		t.Errorf("allow_empty_context should be false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing openai key", func(c *Config) { c.Provider.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"openai model on gemini", func(c *Config) { c.Provider.Name = "gemini"; c.Provider.GeminiAPIKey = "g" }, "does not belong"},
		{"unknown provider", func(c *Config) { c.Provider.Name = "cohere" }, "unsupported provider"},
		{"supabase without key", func(c *Config) { c.Store.Backend = "supabase"; c.Store.SupabaseURL = "https://x" }, "SUPABASE_ANON_KEY"},
		{"pgvector without url", func(c *Config) { c.Store.Backend = "pgvector" }, "DATABASE_URL"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "unsupported store backend"},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = 4096 }, "chunk_overlap"},
		{"too many workers", func(c *Config) { c.Ingest.Workers = 1000 }, "workers"},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }, "workers"},
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }, "chunk_size"},
		{"zero limit", func(c *Config) { c.Query.Limit = 0 }, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Provider.OpenAIAPIKey = "k"
			cfg.applyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_BadPort(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("BYDRAG_PORT", "http")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non-numeric port")
	}
}

func TestLoad_KeepsExplicitZeros(t *testing.T) {
	path := writeConfig(t, `
provider:
  temperature: 0
  max_retries: 0
ingest:
  chunk_overlap: 0
query:
  threshold: 0
`)
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("BYDRAG_PORT", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Temperature != 0 || cfg.Provider.MaxRetries != 0 {
		t.Errorf("provider zeros replaced: %+v", cfg.Provider)
	}
	if cfg.Ingest.ChunkOverlap != 0 || cfg.Ingest.ChunkSize != 2048 {
		t.Errorf("ingest zeros replaced: %+v", cfg.Ingest)
	}
	if cfg.Query.Threshold != 0 || cfg.Query.Limit != 10 {
		t.Errorf("query zeros replaced: %+v", cfg.Query)
	}
}

func TestLoad_ModelDefaultsFollowProvider(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: gemini
`)
	t.Setenv("GEMINI_API_KEY", "g")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("BYDRAG_PORT", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.EmbeddingModel != "text-embedding-004" || cfg.Provider.ChatModel != "gemini-1.5-flash" {
		t.Errorf("unexpected gemini models: %+v", cfg.Provider)
	}
}
