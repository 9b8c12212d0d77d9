package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Query    QueryConfig    `yaml:"query"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // 0 disables the per-request deadline
}

// ProviderConfig selects the embedding/completion provider
type ProviderConfig struct {
	Name string `yaml:"name"` // "openai" | "gemini" | "simple"

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty"`
	GeminiAPIKey  string `yaml:"gemini_api_key,omitempty"`

	EmbeddingModel string        `yaml:"embedding_model"`
	Dimensions     int           `yaml:"dimensions"`
	ChatModel      string        `yaml:"chat_model"`
	Temperature    float64       `yaml:"temperature"`
	MaxRetries     int           `yaml:"max_retries"`
	Timeout        time.Duration `yaml:"timeout"`
}

// StoreConfig selects the vector store backend
type StoreConfig struct {
	Backend string `yaml:"backend"` // "supabase" | "pgvector" | "chromem" | "sqlite" | "memory"

	// Supabase REST
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key"`
	Table       string `yaml:"table"`
	Function    string `yaml:"function"`

	// Postgres with pgvector
	DatabaseURL  string `yaml:"database_url,omitempty"`
	EnsureSchema bool   `yaml:"ensure_schema,omitempty"`

	// chromem and sqlite
	Path string `yaml:"path,omitempty"`
}

// IngestConfig holds the ingest pipeline settings
type IngestConfig struct {
	DocumentDir     string `yaml:"document_dir"`
	DefaultDocument string `yaml:"default_document"`
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	Workers         int    `yaml:"workers"`
	FailFast        bool   `yaml:"fail_fast"`
}

// QueryConfig holds retrieval and prompt settings
type QueryConfig struct {
	Threshold         float64 `yaml:"threshold"`
	Limit             int     `yaml:"limit"`
	AllowEmptyContext bool    `yaml:"allow_empty_context"`
	NoContextAnswer   string  `yaml:"no_context_answer"`
	SystemPrompt      string  `yaml:"system_prompt,omitempty"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

// Default returns the configuration used when nothing overrides it. The YAML
// file is decoded on top of it, so an explicit zero in the file is kept.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":3035",
			ReadTimeout: 30 * time.Second,
			// ingesting a large document takes a while
			WriteTimeout: 10 * time.Minute,
		},
		Provider: ProviderConfig{
			Name:        "openai",
			Temperature: 0.8,
			MaxRetries:  2,
			Timeout:     60 * time.Second,
		},
		Store: StoreConfig{
			Table:    "documents",
			Function: "match_documents",
		},
		Ingest: IngestConfig{
			DocumentDir:     ".",
			DefaultDocument: "bydprojects.pdf",
			ChunkSize:       2048,
			ChunkOverlap:    200,
			Workers:         8,
		},
		Query: QueryConfig{
			Threshold:         0.5,
			Limit:             10,
			AllowEmptyContext: true,
			NoContextAnswer:   "I could not find anything about that in the SAP Business ByDesign documents.",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the .env file (if any), the YAML file at path (if non-empty)
// and the environment, then applies defaults and validates.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnv lets the environment override the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPENAI_API_KEY", &c.Provider.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &c.Provider.OpenAIBaseURL)
	str("GEMINI_API_KEY", &c.Provider.GeminiAPIKey)
	str("BYDRAG_PROVIDER", &c.Provider.Name)
	str("SUPABASE_URL", &c.Store.SupabaseURL)
	str("SUPABASE_ANON_KEY", &c.Store.SupabaseKey)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("BYDRAG_STORE", &c.Store.Backend)
	str("BYDRAG_DOCUMENT_DIR", &c.Ingest.DocumentDir)
	str("BYDRAG_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("BYDRAG_PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("BYDRAG_PORT must be a number, got %q", v)
		}
		c.Server.Addr = ":" + v
	}
	return nil
}

// applyDefaults fills settings that depend on other fields and strings
// left blank. Numeric settings are never touched: their defaults come from
// Default and a zero is taken as meant.
func (c *Config) applyDefaults() {
	d := Default()
	str := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	str(&c.Server.Addr, d.Server.Addr)
	str(&c.Provider.Name, d.Provider.Name)
	str(&c.Store.Table, d.Store.Table)
	str(&c.Store.Function, d.Store.Function)
	str(&c.Ingest.DocumentDir, d.Ingest.DocumentDir)
	str(&c.Ingest.DefaultDocument, d.Ingest.DefaultDocument)
	str(&c.Query.NoContextAnswer, d.Query.NoContextAnswer)
	str(&c.Log.Level, d.Log.Level)
	str(&c.Log.Format, d.Log.Format)

	// model names are provider specific
	switch c.Provider.Name {
	case "openai":
		str(&c.Provider.EmbeddingModel, "text-embedding-3-small")
		str(&c.Provider.ChatModel, "gpt-4")
	case "gemini":
		str(&c.Provider.EmbeddingModel, "text-embedding-004")
		str(&c.Provider.ChatModel, "gemini-1.5-flash")
	}

	if c.Store.Backend == "" {
		if c.Store.SupabaseURL != "" {
			c.Store.Backend = "supabase"
		} else {
			c.Store.Backend = "memory"
		}
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case "chromem":
			c.Store.Path = "./data/chromem"
		case "sqlite":
			c.Store.Path = "./data/documents.db"
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "openai":
		if c.Provider.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
	case "gemini":
		if c.Provider.GeminiAPIKey == "" {
			return fmt.Errorf("gemini provider requires GEMINI_API_KEY")
		}
	case "simple":
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider.Name)
	}
	if err := c.Provider.checkModels(); err != nil {
		return err
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got: %v", c.Provider.Temperature)
	}

	switch c.Store.Backend {
	case "supabase":
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			return fmt.Errorf("supabase backend requires SUPABASE_URL and SUPABASE_ANON_KEY")
		}
	case "pgvector":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("pgvector backend requires DATABASE_URL")
		}
	case "chromem", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got: %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be between 0 and chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.Workers < 1 || c.Ingest.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got: %d", c.Ingest.Workers)
	}
	if c.Query.Threshold < -1 || c.Query.Threshold > 1 {
		return fmt.Errorf("threshold must be between -1 and 1, got: %v", c.Query.Threshold)
	}
	if c.Query.Limit < 1 {
		return fmt.Errorf("limit must be positive, got: %d", c.Query.Limit)
	}
	return nil
}

// checkModels catches a model name left over from another provider.
func (p *ProviderConfig) checkModels() error {
	var foreign []string
	switch p.Name {
	case "openai":
		foreign = []string{"gemini-", "models/", "text-embedding-004", "embedding-001"}
	case "gemini":
		foreign = []string{"gpt-", "text-embedding-3", "text-embedding-ada"}
	}
	for _, model := range []string{p.EmbeddingModel, p.ChatModel} {
		for _, prefix := range foreign {
			if strings.HasPrefix(model, prefix) {
				return fmt.Errorf("model %q does not belong to provider %s", model, p.Name)
			}
		}
	}
	return nil
}
