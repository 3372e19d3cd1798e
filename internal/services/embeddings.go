package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/village-mystery/internal/config"
	"github.com/jwebster45206/village-mystery/pkg/memory"
)

// NewEmbedder builds the embedder named by EMBEDDING_PROVIDER.
func NewEmbedder(cfg *config.Config, logger *slog.Logger) (memory.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "hash":
		return memory.NewHashEmbedder(), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// OpenAIEmbedder asks the embeddings API for vectors shortened to
// memory.Dimensions.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

var _ memory.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}
}

func (e *OpenAIEmbedder) Dimensions() int { return memory.Dimensions }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: memory.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	vec := resp.Data[0].Embedding
	if err := memory.CheckDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// OllamaEmbedder uses a local embedding model. The model must produce
// memory.Dimensions values, as all-minilm does.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

var _ memory.Embedder = (*OllamaEmbedder)(nil)

func NewOllamaEmbedder(baseURL, model string) (*OllamaEmbedder, error) {
	client, err := newOllamaClient(baseURL, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

func (e *OllamaEmbedder) Dimensions() int { return memory.Dimensions }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	vec := resp.Embeddings[0]
	if err := memory.CheckDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}
