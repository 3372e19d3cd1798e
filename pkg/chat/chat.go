package chat

import (
	"fmt"
	"strings"
)

// DefaultSessionID is used when a request does not name a session.
const DefaultSessionID = "default"

// ChatRequest is a player turn sent to the /chat endpoint.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserInput string `json:"user_input"`
}

// TalkExchange describes one line said to an NPC and the NPC's answer.
type TalkExchange struct {
	NPCName     string `json:"npc_name"`
	LLMToNPC    string `json:"llm_to_npc"`
	NPCResponse string `json:"npc_response"`
}

// ChatResponse is returned by the /chat endpoint after every turn.
type ChatResponse struct {
	SessionID string        `json:"session_id,omitempty"`
	Message   string        `json:"message"`
	Location  string        `json:"location"`
	Win       string        `json:"win"`
	Talk      *TalkExchange `json:"talk,omitempty"`
}

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Narrator or NPC
	ChatRoleSystem = "system"    // Instructions
)

// ChatMessage represents a single chat message in the conversation
// sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Completion is the raw text an LLM returned for one request.
type Completion struct {
	Message          string `json:"message"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// Validate checks the request and fills in the default session.
func (cr *ChatRequest) Validate() error {
	if strings.TrimSpace(cr.UserInput) == "" {
		return fmt.Errorf("user_input cannot be empty")
	}
	if cr.SessionID == "" {
		cr.SessionID = DefaultSessionID
	}
	return nil
}

// FormatWithSpeaker prefixes a line with the speaker's name unless it
// already carries a speaker prefix.
func FormatWithSpeaker(message, speaker string) string {
	if idx := strings.Index(message, ":"); idx > 0 && idx <= 30 {
		prefix := message[:idx]
		if !strings.ContainsAny(prefix, ".!?,") && len(strings.Fields(prefix)) <= 3 {
			return message
		}
	}
	return speaker + ": " + message
}
