package state

import "github.com/jwebster45206/village-mystery/pkg/chat"

// Exchange is one player line and the reply it got.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// History is the conversation with one speaker. When Limit is positive only
// the most recent Limit exchanges are kept.
type History struct {
	Speaker   string     `json:"speaker"`
	Limit     int        `json:"limit,omitempty"`
	Exchanges []Exchange `json:"exchanges"`
}

func NewHistory(speaker string, limit int) *History {
	return &History{Speaker: speaker, Limit: limit, Exchanges: make([]Exchange, 0)}
}

// Append adds an exchange, dropping the oldest beyond the limit.
func (h *History) Append(user, assistant string) {
	h.Exchanges = append(h.Exchanges, Exchange{User: user, Assistant: assistant})
	if h.Limit > 0 && len(h.Exchanges) > h.Limit {
		h.Exchanges = append([]Exchange(nil), h.Exchanges[len(h.Exchanges)-h.Limit:]...)
	}
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Exchanges)
}

// Messages flattens the history into alternating user and assistant messages.
func (h *History) Messages() []chat.ChatMessage {
	if h == nil {
		return nil
	}
	msgs := make([]chat.ChatMessage, 0, 2*len(h.Exchanges))
	for _, ex := range h.Exchanges {
		msgs = append(msgs,
			chat.ChatMessage{Role: chat.ChatRoleUser, Content: ex.User},
			chat.ChatMessage{Role: chat.ChatRoleAgent, Content: ex.Assistant},
		)
	}
	return msgs
}

func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	c := *h
	c.Exchanges = append(make([]Exchange, 0, len(h.Exchanges)), h.Exchanges...)
	return &c
}
