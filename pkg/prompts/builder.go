package prompts

import (
	"fmt"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

// TokenCounter estimates how many tokens a text costs.
type TokenCounter interface {
	Count(text string) int
}

// Builder constructs chat messages for one oracle call using a fluent interface.
type Builder struct {
	task         string
	data         any
	history      []chat.ChatMessage
	historyLimit int
	tokenBudget  int
	counter      TokenCounter
	userMessage  string
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: 20, // messages, not exchanges
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithTask selects the template and the data it renders.
func (b *Builder) WithTask(task string, data any) *Builder {
	b.task = task
	b.data = data
	return b
}

// WithHistory sets prior conversation messages, oldest first.
func (b *Builder) WithHistory(history []chat.ChatMessage) *Builder {
	b.history = history
	return b
}

// WithHistoryLimit sets the chat history window size in messages.
// Zero or less disables the window.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithTokenBudget drops the oldest history until the history fits in budget.
func (b *Builder) WithTokenBudget(budget int, counter TokenCounter) *Builder {
	b.tokenBudget = budget
	b.counter = counter
	return b
}

// WithUserMessage sets the player's message.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// Build renders the system prompt and returns the final message array.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.task == "" {
		return nil, fmt.Errorf("task is required")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.history)+2)

	system, err := Render(b.task, b.data)
	if err != nil {
		return nil, fmt.Errorf("error building system prompt: %w", err)
	}
	b.messages = append(b.messages, chat.ChatMessage{Role: chat.ChatRoleSystem, Content: system})

	b.messages = append(b.messages, b.windowHistory()...)

	if b.userMessage != "" {
		b.messages = append(b.messages, chat.ChatMessage{Role: chat.ChatRoleUser, Content: b.userMessage})
	}
	return b.messages, nil
}

// windowHistory applies the message window, then the token budget.
func (b *Builder) windowHistory() []chat.ChatMessage {
	h := b.history
	if b.historyLimit > 0 && len(h) > b.historyLimit {
		h = h[len(h)-b.historyLimit:]
	}
	start := 0
	if b.tokenBudget > 0 && b.counter != nil {
		total := 0
		start = len(h)
		for i := len(h) - 1; i >= 0; i-- {
			cost := b.counter.Count(h[i].Content)
			if total+cost > b.tokenBudget {
				break
			}
			total += cost
			start = i
		}
	}
	// Keep user/assistant pairs together.
	if start < len(h) && h[start].Role == chat.ChatRoleAgent {
		start++
	}
	return h[start:]
}
