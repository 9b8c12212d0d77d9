// Package llm wires the embedding and chat-completion providers.
package llm

import (
	"context"
	"fmt"
	"strings"

	"byd-rag/config"
	"byd-rag/rag"
)

// Client is a provider able to both embed text and complete chats.
type Client interface {
	rag.Embedder
	rag.Completer
	Close() error
}

// New creates the provider selected by cfg.Name.
func New(ctx context.Context, cfg *config.ProviderConfig) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Name {
	case "openai":
		client, err = NewOpenAI(OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.Dimensions,
			ChatModel:      cfg.ChatModel,
			Temperature:    cfg.Temperature,
			MaxRetries:     cfg.MaxRetries,
			Timeout:        cfg.Timeout,
		})
	case "gemini":
		client, err = NewGemini(ctx, GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.Dimensions,
			ChatModel:      cfg.ChatModel,
			Temperature:    cfg.Temperature,
		})
	case "simple":
		client = NewOffline()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Name)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (o *OpenAI) Close() error { return nil }

// Offline needs no API key: it embeds with rag.SimpleEmbedder and answers
// with the retrieved context itself.
type Offline struct {
	*rag.SimpleEmbedder
}

func NewOffline() *Offline {
	return &Offline{SimpleEmbedder: rag.NewSimpleEmbedder()}
}

func (o *Offline) Complete(_ context.Context, messages []rag.Message) (string, error) {
	for _, m := range messages {
		if m.Role != rag.RoleUser {
			continue
		}
		const open, closing = `Context sections: "`, `" Question: "`
		start := strings.Index(m.Content, open)
		end := strings.LastIndex(m.Content, closing)
		if start < 0 || end < start+len(open) {
			break
		}
		if text := strings.TrimSpace(m.Content[start+len(open) : end]); text != "" {
			return text, nil
		}
	}
	return "No matching context found.", nil
}

func (o *Offline) Close() error { return nil }
