// Package dialogue voices the narrator and the NPCs, keeping one conversation
// history per speaker.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jwebster45206/village-mystery/pkg/chat"
	"github.com/jwebster45206/village-mystery/pkg/intent"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/state"
	"github.com/jwebster45206/village-mystery/pkg/textfilter"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

// DefaultTokenBudget caps narrator history in prompts.
const DefaultTokenBudget = 2000

// ErrUnknownNPC is returned when talking to someone without a persona.
var ErrUnknownNPC = errors.New("unknown npc")

// Recorder receives finished exchanges for long-term memory.
type Recorder interface {
	Record(ctx context.Context, conversation string) error
}

// Manager produces narrator and NPC replies.
type Manager struct {
	oracle      oracle.Asker
	cast        *Cast
	m           *world.Map
	recorder    Recorder
	counter     prompts.TokenCounter
	tokenBudget int
	sanitizer   *textfilter.Sanitizer
	logger      *slog.Logger

	pending []string
}

// Option configures a Manager.
type Option func(*Manager)

func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithTokenBudget bounds the narrator history sent with each prompt.
func WithTokenBudget(budget int, counter prompts.TokenCounter) Option {
	return func(m *Manager) {
		if budget > 0 {
			m.tokenBudget = budget
		}
		if counter != nil {
			m.counter = counter
		}
	}
}

func WithSanitizer(s *textfilter.Sanitizer) Option {
	return func(m *Manager) {
		if s != nil {
			m.sanitizer = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a dialogue manager for a cast on a map.
func NewManager(asker oracle.Asker, cast *Cast, m *world.Map, opts ...Option) *Manager {
	mgr := &Manager{
		oracle:      asker,
		cast:        cast,
		m:           m,
		counter:     wordCounter{},
		tokenBudget: DefaultTokenBudget,
		sanitizer:   textfilter.New(false),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Request is everything the narrator needs for one reply.
type Request struct {
	Input       string
	Kind        intent.Kind
	World       world.WorldState
	Observation string
	Memory      string
	Note        string
}

type reply struct {
	Response string `json:"response"`
}

func (r *reply) Validate() error {
	if strings.TrimSpace(r.Response) == "" {
		return errors.New("response is required")
	}
	return nil
}

// Narrate has the narrator answer the player and appends the exchange to
// the narrator history. Every kind except action is also queued for memory
// until Flush.
func (m *Manager) Narrate(ctx context.Context, gs *state.GameState, req Request) (string, error) {
	msgs, err := prompts.New().
		WithTask(prompts.TaskNarrate, prompts.NarrateData{
			Persona:     m.cast.Narrator.view(m.m),
			World:       req.World,
			Observation: req.Observation,
			Kind:        string(req.Kind),
			Memory:      req.Memory,
			Note:        req.Note,
		}).
		WithHistory(gs.Narrator.Messages()).
		WithHistoryLimit(0).
		WithTokenBudget(m.tokenBudget, m.counter).
		WithUserMessage(req.Input).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build narration prompt: %w", err)
	}

	var out reply
	if err := m.oracle.Ask(ctx, prompts.TaskNarrate, msgs, &out); err != nil {
		return "", fmt.Errorf("failed to narrate: %w", err)
	}
	text := m.sanitizer.Clean(out.Response)

	gs.Narrator.Append(req.Input, text)
	if req.Kind != intent.KindAction {
		m.record(ctx, fmt.Sprintf("Player: %s\n%s: %s", req.Input, m.cast.Narrator.DisplayName, text))
	}
	return text, nil
}

// Confirm stores a line the narrator says without asking the oracle, such as
// an action confirmation or a refusal. Nothing is recorded to memory.
func (m *Manager) Confirm(gs *state.GameState, input, message string) {
	gs.Narrator.Append(input, message)
}

// Talk delivers a line to an NPC and returns the exchange. The NPC must be
// in the player's room; otherwise a refusal is returned with no exchange.
func (m *Manager) Talk(ctx context.Context, gs *state.GameState, npc, line string, ws world.WorldState, memory string) (string, *chat.TalkExchange, error) {
	persona, ok := m.cast.NPC(npc)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownNPC, npc)
	}
	if room, ok := m.m.Room(persona.Room); ok && room.Name != ws.Location {
		return fmt.Sprintf("The %s isn't here. You might find them at the %s.", npc, room.Name), nil, nil
	}

	history := gs.NPC(npc)
	msgs, err := prompts.New().
		WithTask(prompts.TaskNPC, prompts.NPCData{
			Persona: persona.view(m.m),
			World:   ws,
			Memory:  memory,
		}).
		WithHistory(history.Messages()).
		WithHistoryLimit(2 * history.Limit).
		WithUserMessage(line).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build npc prompt: %w", err)
	}

	var out reply
	if err := m.oracle.Ask(ctx, prompts.TaskNPC, msgs, &out); err != nil {
		return "", nil, fmt.Errorf("failed to get %s reply: %w", npc, err)
	}
	text := m.sanitizer.Clean(out.Response)
	history.Append(line, text)

	m.record(ctx, fmt.Sprintf("Player to %s: %s\n%s", persona.DisplayName, line, chat.FormatWithSpeaker(text, persona.DisplayName)))
	return chat.FormatWithSpeaker(text, persona.DisplayName), &chat.TalkExchange{
		NPCName:     npc,
		LLMToNPC:    line,
		NPCResponse: text,
	}, nil
}

// record queues an exchange for memory.
func (m *Manager) record(_ context.Context, conversation string) {
	if m.recorder == nil {
		return
	}
	m.pending = append(m.pending, conversation)
}

// Pending returns the exchanges queued for memory.
func (m *Manager) Pending() []string {
	return append([]string(nil), m.pending...)
}

// Flush hands the queued exchanges to memory, in order, and clears the
// queue. Failures are logged and skipped.
func (m *Manager) Flush(ctx context.Context) {
	pending := m.pending
	m.pending = nil
	for _, conversation := range pending {
		if err := m.recorder.Record(ctx, conversation); err != nil {
			m.logger.Warn("Failed to record memory", "error", err)
		}
	}
}

// wordCounter approximates tokens when no tokenizer is configured.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text)) * 4 / 3
}
