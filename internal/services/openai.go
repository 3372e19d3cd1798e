package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

const DefaultOpenAITemperature = 0.2

// OpenAIService implements LLMService for OpenAI and any server speaking the
// same chat completions API (set baseURL).
type OpenAIService struct {
	client    *openai.Client
	modelName string
	logger    *slog.Logger
}

func NewOpenAIService(apiKey, baseURL, modelName string, logger *slog.Logger) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return &OpenAIService{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
		logger:    logger,
	}
}

// InitModel checks that the model is listed by the server.
func (s *OpenAIService) InitModel(ctx context.Context) error {
	if _, err := s.client.GetModel(ctx, s.modelName); err != nil {
		return fmt.Errorf("model %q is not available: %w", s.modelName, err)
	}
	s.logger.Info("Model available", "model", s.modelName)
	return nil
}

func (s *OpenAIService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.modelName,
		Temperature: DefaultOpenAITemperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			s.logger.Error("OpenAI API returned error",
				"status_code", apiErr.HTTPStatusCode,
				"error", apiErr.Message)
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	s.logger.Debug("OpenAI completion",
		"model", resp.Model,
		"duration", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &chat.Completion{
		Message:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
