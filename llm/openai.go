package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"byd-rag/rag"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOpenAIChatModel      = "gpt-4"
	DefaultTemperature          = 0.8
)

// OpenAIConfig configures the OpenAI client pair.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // empty for api.openai.com
	EmbeddingModel string
	Dimensions     int // 0 keeps the model's native size
	ChatModel      string
	Temperature    float64
	MaxRetries     int
	Timeout        time.Duration
}

// OpenAI implements rag.Embedder and rag.Completer on one client.
type OpenAI struct {
	client openai.Client
	cfg    OpenAIConfig
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultOpenAIEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultOpenAIChatModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = nativeDimensions(cfg.EmbeddingModel)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func nativeDimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		// text-embedding-3-small and text-embedding-ada-002
		return 1536
	}
}

func (o *OpenAI) Dimensions() int { return o.cfg.Dimensions }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(o.cfg.EmbeddingModel),
	}
	if o.cfg.Dimensions != nativeDimensions(o.cfg.EmbeddingModel) {
		params.Dimensions = openai.Int(int64(o.cfg.Dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classify(rag.KindEmbed, "openai embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, rag.Errorf(rag.KindEmbed, "openai embeddings", "no embedding returned")
	}

	values := resp.Data[0].Embedding
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out, nil
}

func (o *OpenAI) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:       openai.ChatModel(o.cfg.ChatModel),
		Temperature: openai.Float(o.cfg.Temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case rag.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case rag.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(rag.KindComplete, "openai chat completion", err)
	}
	if len(completion.Choices) == 0 {
		return "", rag.Errorf(rag.KindComplete, "openai chat completion", "no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// classify marks rate limits, server errors and timeouts as transient.
func classify(kind rag.ErrorKind, op string, err error) error {
	e := &rag.Error{Kind: kind, Op: op, Err: err}
	var apiErr *openai.Error
	switch {
	case errors.As(err, &apiErr):
		e.Transient = apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		e.Transient = true
	}
	return e
}
