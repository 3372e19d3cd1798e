// Package oracletest provides a scripted LLM for tests.
package oracletest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

// ChatCall records one request made to the mock.
type ChatCall struct {
	Task     string
	Messages []chat.ChatMessage
}

// MockLLM answers chat requests from per-task reply queues. The task is read
// from the "Task: <name>" line every system prompt starts with. When a queue
// has one reply left it is repeated.
type MockLLM struct {
	ChatFunc func(ctx context.Context, messages []chat.ChatMessage) (*chat.Completion, error)

	replies map[string][]reply
	calls   []ChatCall

	mu sync.Mutex
}

type reply struct {
	text string
	err  error
}

// NewMockLLM creates an empty mock.
func NewMockLLM() *MockLLM {
	return &MockLLM{replies: make(map[string][]reply)}
}

// On queues raw replies for a task.
func (m *MockLLM) On(task string, replies ...string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range replies {
		m.replies[task] = append(m.replies[task], reply{text: r})
	}
	return m
}

// OnError queues an error for a task.
func (m *MockLLM) OnError(task string, err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[task] = append(m.replies[task], reply{err: err})
	return m
}

// Chat implements oracle.LLM.
func (m *MockLLM) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.Completion, error) {
	m.mu.Lock()
	task := TaskOf(messages)
	m.calls = append(m.calls, ChatCall{Task: task, Messages: messages})
	fn := m.ChatFunc
	queue := m.replies[task]
	var next reply
	found := len(queue) > 0
	if found {
		next = queue[0]
		if len(queue) > 1 {
			m.replies[task] = queue[1:]
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no scripted reply for task %q", task)
	}
	if next.err != nil {
		return nil, next.err
	}
	return &chat.Completion{Message: next.text, Model: "mock"}, nil
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor counts calls for one task.
func (m *MockLLM) CallsFor(task string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Task == task {
			n++
		}
	}
	return n
}

// TaskOf extracts the task name from the first system message.
func TaskOf(messages []chat.ChatMessage) string {
	for _, msg := range messages {
		if msg.Role != chat.ChatRoleSystem {
			continue
		}
		line, _, _ := strings.Cut(msg.Content, "\n")
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "Task:"); ok {
			return strings.TrimSpace(name)
		}
		return ""
	}
	return ""
}

// Reply builds an oracle reply: reasoning strings followed by the final
// answer, all in one JSON array.
func Reply(final any, reasoning ...string) string {
	items := make([]any, 0, len(reasoning)+1)
	for _, r := range reasoning {
		items = append(items, r)
	}
	items = append(items, final)
	data, err := json.Marshal(items)
	if err != nil {
		panic(err)
	}
	return string(data)
}
