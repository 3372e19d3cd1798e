package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/village-mystery/internal/config"
	"github.com/jwebster45206/village-mystery/pkg/chat"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
)

// LLMService is a chat completion backend the oracle can reason with.
type LLMService interface {
	oracle.LLM

	// InitModel makes sure the model can serve requests.
	InitModel(ctx context.Context) error
}

// NewLLMService builds the backend named by LLM_PROVIDER.
func NewLLMService(cfg *config.Config, logger *slog.Logger) (LLMService, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, logger), nil
	case "openai":
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ModelName, logger), nil
	case "ollama":
		return NewOllamaService(cfg.OllamaURL, cfg.ModelName, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// splitChatMessages extracts and combines all system messages into a single
// system prompt and returns the remaining non-system messages.
func splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var system string
	var rest []chat.ChatMessage
	for _, msg := range messages {
		if msg.Role != chat.ChatRoleSystem {
			rest = append(rest, msg)
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += msg.Content
	}
	return system, rest
}
