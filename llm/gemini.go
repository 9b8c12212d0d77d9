package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"byd-rag/rag"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	DefaultGeminiChatModel      = "gemini-1.5-flash"
)

// GeminiConfig configures the Gemini client pair.
type GeminiConfig struct {
	APIKey         string
	EmbeddingModel string
	Dimensions     int // 0 keeps the model's native size
	ChatModel      string
	Temperature    float64
}

// Gemini implements rag.Embedder and rag.Completer over the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultGeminiEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultGeminiChatModel
	}
	native := geminiNativeDimensions(cfg.EmbeddingModel)
	if cfg.Dimensions == 0 {
		cfg.Dimensions = native
	}
	if cfg.Dimensions < 0 || cfg.Dimensions > native {
		return nil, fmt.Errorf("%s returns at most %d dimensions, got %d", cfg.EmbeddingModel, native, cfg.Dimensions)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

func geminiNativeDimensions(model string) int {
	switch strings.TrimPrefix(model, "models/") {
	case "gemini-embedding-001", "gemini-embedding-exp-03-07":
		return 3072
	default:
		// text-embedding-004 and embedding-001
		return 768
	}
}

func (g *Gemini) Dimensions() int { return g.cfg.Dimensions }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.EmbeddingModel(g.cfg.EmbeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classifyGoogle(rag.KindEmbed, "gemini embed", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, rag.Errorf(rag.KindEmbed, "gemini embed", "empty embedding response")
	}
	return truncate(resp.Embedding.Values, g.cfg.Dimensions), nil
}

// truncate keeps the leading dims values. Gemini embeddings are trained so
// that a prefix is still a usable embedding, and cosine ignores the norm.
func truncate(values []float32, dims int) []float32 {
	if dims <= 0 || len(values) <= dims {
		return values
	}
	return values[:dims]
}

// Complete sends the system message as system instruction and the rest as
// the user turn.
func (g *Gemini) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	model := g.client.GenerativeModel(g.cfg.ChatModel)
	model.SetTemperature(float32(g.cfg.Temperature))

	var parts []genai.Part
	for _, m := range messages {
		if m.Role == rag.RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGoogle(rag.KindComplete, "gemini generate", err)
	}

	var answer []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				answer = append(answer, string(text))
			}
		}
		// first candidate only
		break
	}
	if len(answer) == 0 {
		return "", rag.Errorf(rag.KindComplete, "gemini generate", "no candidates returned")
	}
	return strings.Join(answer, "\n"), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func classifyGoogle(kind rag.ErrorKind, op string, err error) error {
	e := &rag.Error{Kind: kind, Op: op, Err: err}
	var apiErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr):
		e.Transient = apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		e.Transient = true
	}
	return e
}
