package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

// OllamaService implements the LLMService interface for Ollama API
type OllamaService struct {
	client     *api.Client
	modelName  string
	logger     *slog.Logger
	retries    int
	retryDelay time.Duration
}

// NewOllamaService creates a new Ollama service instance
func NewOllamaService(baseURL string, modelName string, logger *slog.Logger) (*OllamaService, error) {
	client, err := newOllamaClient(baseURL, 120*time.Second)
	if err != nil {
		return nil, err
	}
	return &OllamaService{
		client:     client,
		modelName:  modelName,
		logger:     logger,
		retries:    5,
		retryDelay: 2 * time.Second,
	}, nil
}

func newOllamaClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return api.NewClient(u, &http.Client{Timeout: timeout}), nil
}

// InitModel waits for Ollama and pulls the model when it is missing.
func (s *OllamaService) InitModel(ctx context.Context) error {
	s.logger.Info("Initializing LLM model", "model", s.modelName)

	if err := s.waitForOllamaReady(ctx); err != nil {
		return fmt.Errorf("ollama service is not ready: %w", err)
	}

	ready, err := s.isModelReady(ctx)
	if err != nil {
		return fmt.Errorf("failed to check model readiness: %w", err)
	}
	if ready {
		s.logger.Info("Model already available", "model", s.modelName)
		return nil
	}

	s.logger.Info("Model not found, pulling it", "model", s.modelName)
	err = s.client.Pull(ctx, &api.PullRequest{Model: s.modelName}, func(p api.ProgressResponse) error {
		s.logger.Debug("Pulling model", "status", p.Status, "completed", p.Completed, "total", p.Total)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	s.logger.Info("Model pulled successfully", "model", s.modelName)
	return nil
}

// Chat generates a chat response using the Ollama API (non-streaming)
func (s *OllamaService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.Completion, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    s.modelName,
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{"temperature": DefaultOpenAITemperature},
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, api.Message{Role: msg.Role, Content: msg.Content})
	}

	var resp api.ChatResponse
	err := s.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	s.logger.Debug("Ollama completion",
		"model", resp.Model,
		"prompt_tokens", resp.PromptEvalCount,
		"completion_tokens", resp.EvalCount)

	return &chat.Completion{
		Message:          resp.Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

func (s *OllamaService) isModelReady(ctx context.Context) (bool, error) {
	list, err := s.client.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range list.Models {
		if m.Name == s.modelName || m.Model == s.modelName {
			return true, nil
		}
	}
	return false, nil
}

// waitForOllamaReady waits for Ollama service to be ready with retries
func (s *OllamaService) waitForOllamaReady(ctx context.Context) error {
	for i := 0; i < s.retries; i++ {
		err := s.client.Heartbeat(ctx)
		if err == nil {
			s.logger.Info("Ollama service is ready")
			return nil
		}
		s.logger.Debug("Ollama not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return fmt.Errorf("ollama service did not become ready after %d attempts", s.retries)
}
