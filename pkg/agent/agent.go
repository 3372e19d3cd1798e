// Package agent runs one player turn end to end: classify the input, route
// it to the planner, the narrator or an NPC, and persist the session.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/village-mystery/pkg/chat"
	"github.com/jwebster45206/village-mystery/pkg/classifier"
	"github.com/jwebster45206/village-mystery/pkg/dialogue"
	"github.com/jwebster45206/village-mystery/pkg/intent"
	"github.com/jwebster45206/village-mystery/pkg/memory"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/planner"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/state"
	"github.com/jwebster45206/village-mystery/pkg/storage"
	"github.com/jwebster45206/village-mystery/pkg/textfilter"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

// Fixed replies that never go through the oracle.
const (
	NotUnderstood  = "I didn't understand that. Could you say it another way?"
	ConfusedPrompt = "I'm not sure what you want to do. Try one clear action, like \"go north\" or \"take money\"."
	offTopicNote   = "The player strayed from the story. Answer briefly and steer them back to the mystery."
)

var ErrEmptyInput = errors.New("input cannot be empty")

// Options wires an Agent. Oracle and Storage are required.
type Options struct {
	Oracle    oracle.Asker
	Storage   storage.Storage
	Memories  memory.Namespacer
	Embedder  memory.Embedder
	Locker    Locker
	Publisher Publisher
	Map       *world.Map
	Cast      *dialogue.Cast
	Counter   prompts.TokenCounter
	Sanitizer *textfilter.Sanitizer
	Hooks     Hooks
	Logger    *slog.Logger

	NarratorTokenBudget int
	DuplicateThreshold  float64
	StoreTimeout        time.Duration
}

// Agent is the orchestrator. It is safe for concurrent use across sessions;
// turns within one session are serialized by the Locker.
type Agent struct {
	oracle     oracle.Asker
	storage    storage.Storage
	memories   memory.Namespacer
	embedder   memory.Embedder
	locker     Locker
	publisher  Publisher
	m          *world.Map
	cast       *dialogue.Cast
	counter    prompts.TokenCounter
	sanitizer  *textfilter.Sanitizer
	hooks      Hooks
	logger     *slog.Logger
	classifier *classifier.Classifier
	planner    *planner.Planner

	tokenBudget        int
	duplicateThreshold float64
	storeTimeout       time.Duration
}

// New builds an Agent, filling in in-memory defaults for anything optional.
func New(opts Options) (*Agent, error) {
	if opts.Oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("storage is required")
	}
	a := &Agent{
		oracle:             opts.Oracle,
		storage:            opts.Storage,
		memories:           opts.Memories,
		embedder:           opts.Embedder,
		locker:             opts.Locker,
		publisher:          opts.Publisher,
		m:                  opts.Map,
		cast:               opts.Cast,
		counter:            opts.Counter,
		sanitizer:          opts.Sanitizer,
		hooks:              opts.Hooks,
		logger:             opts.Logger,
		tokenBudget:        opts.NarratorTokenBudget,
		duplicateThreshold: opts.DuplicateThreshold,
		storeTimeout:       opts.StoreTimeout,
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.memories == nil {
		a.memories = memory.NewMemNamespaces()
	}
	if a.embedder == nil {
		a.embedder = memory.NewHashEmbedder()
	}
	if a.locker == nil {
		a.locker = NewLocalLocker()
	}
	if a.m == nil {
		a.m = world.Village()
	}
	if a.cast == nil {
		a.cast = dialogue.DefaultCast()
	}
	if a.sanitizer == nil {
		a.sanitizer = textfilter.New(false)
	}
	if err := a.cast.Validate(a.m); err != nil {
		return nil, fmt.Errorf("invalid cast: %w", err)
	}
	if a.embedder.Dimensions() != memory.Dimensions {
		return nil, fmt.Errorf("%w: embedder has %d dimensions", memory.ErrDimensionMismatch, a.embedder.Dimensions())
	}
	a.classifier = classifier.New(a.oracle, a.logger)
	a.planner = planner.New(a.oracle, a.m, a.logger)
	return a, nil
}

// TurnResult is what one turn produced.
type TurnResult struct {
	SessionID string
	Message   string
	Location  string
	Win       world.WinState
	Talk      *chat.TalkExchange
	Kind      intent.Kind
	Plan      *planner.Result
	Done      bool
}

// Response converts the result to its wire form.
func (r *TurnResult) Response() *chat.ChatResponse {
	return &chat.ChatResponse{
		SessionID: r.SessionID,
		Message:   r.Message,
		Location:  r.Location,
		Win:       string(r.Win),
		Talk:      r.Talk,
	}
}

// Snapshot is a read-only view of a session's world.
type Snapshot struct {
	SessionID   string
	Location    string
	Inventory   []string
	Observation string
	Contents    map[string][]string
	Win         world.WinState
	Done        bool
	Turn        int
}

// session carries the per-turn collaborators bound to one session.
type session struct {
	gs       *state.GameState
	adapter  *world.Adapter
	engine   *world.Engine
	memory   *memory.Manager
	dialogue *dialogue.Manager
}

// ProcessTurn handles one player utterance. A malformed oracle answer yields
// the NotUnderstood message and leaves the session untouched; an unavailable
// oracle or store is returned as an error.
func (a *Agent) ProcessTurn(ctx context.Context, sessionID, input string) (*TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}

	release, err := a.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	log := a.logger.With("session_id", sessionID)
	a.publish(ctx, sessionID, EventTurnStarted, map[string]any{"input": input})

	gs, err := a.load(ctx, sessionID)
	if err != nil {
		a.fail(ctx, sessionID, "", start, err)
		return nil, err
	}

	s := a.open(gs.Clone())
	res, err := a.dispatch(ctx, s, input)
	if errors.Is(err, oracle.ErrMalformedResponse) {
		log.Warn("Oracle answer unusable, turn discarded", "error", err)
		res = a.notUnderstood(sessionID, gs)
		a.observeTurn(string(res.Kind), OutcomeNotUnderstood, start)
		a.publish(ctx, sessionID, EventTurnCompleted, map[string]any{"message": res.Message})
		return res, nil
	}
	if err != nil {
		a.fail(ctx, sessionID, "", start, err)
		return nil, err
	}

	s.gs.World = s.engine.Snapshot()
	s.gs.Turn++
	s.gs.UpdatedAt = time.Now()
	if err := a.storage.SaveGameState(ctx, sessionID, s.gs); err != nil {
		err = fmt.Errorf("failed to save game state: %w", err)
		a.fail(ctx, sessionID, string(res.Kind), start, err)
		return nil, err
	}

	// Memories of this turn are written only once the turn itself is saved.
	s.dialogue.Flush(ctx)

	res.SessionID = sessionID
	res.Location = s.adapter.Location()
	res.Win = world.ComputeWin(s.adapter.ContainerContents())
	res.Done = s.gs.World.Done

	log.Info("Turn complete",
		"turn", s.gs.Turn,
		"kind", res.Kind,
		"location", res.Location,
		"win", res.Win)
	a.observeTurn(string(res.Kind), OutcomeOK, start)
	a.publish(ctx, sessionID, EventTurnCompleted, map[string]any{
		"kind":     string(res.Kind),
		"message":  res.Message,
		"location": res.Location,
		"win":      string(res.Win),
	})
	if res.Done && !gs.World.Done {
		a.publish(ctx, sessionID, EventGameEnded, map[string]any{"win": string(res.Win)})
	}
	return res, nil
}

func (a *Agent) dispatch(ctx context.Context, s *session, input string) (*TurnResult, error) {
	in, err := a.classifier.Classify(ctx, input, s.adapter.State())
	if err != nil {
		return nil, err
	}
	res := &TurnResult{Kind: in.Kind()}

	switch v := in.(type) {
	case intent.Action:
		plan, err := a.planner.Plan(ctx, v.Text, s.adapter)
		if err != nil {
			return nil, err
		}
		if a.hooks.OnPlan != nil {
			a.hooks.OnPlan(string(plan.Status), len(plan.Commands))
		}
		res.Plan = &plan
		switch plan.Status {
		case planner.StatusApproved:
			out, err := planner.Execute(ctx, s.adapter, plan.Commands)
			if err != nil {
				return nil, err
			}
			res.Message = out.Message()
		case planner.StatusRejected:
			res.Message = plan.Reason
		default:
			res.Message = ConfusedPrompt
		}
		s.dialogue.Confirm(s.gs, input, res.Message)

	case intent.Query:
		memo, rerr := a.recall(ctx, s, input, v.MemoryNeeded, v.MemoryQuery)
		if rerr != nil {
			return nil, rerr
		}
		res.Message, err = s.dialogue.Narrate(ctx, s.gs, dialogue.Request{
			Input:       input,
			Kind:        intent.KindQuery,
			World:       s.adapter.State(),
			Observation: s.adapter.Observation(),
			Memory:      memo,
		})

	case intent.Talk:
		line := v.DialogText
		if strings.TrimSpace(line) == "" {
			line = input
		}
		memo, rerr := a.recall(ctx, s, input, v.MemoryNeeded, v.MemoryQuery)
		if rerr != nil {
			return nil, rerr
		}
		res.Message, res.Talk, err = s.dialogue.Talk(ctx, s.gs, v.NPC, line, s.adapter.State(), memo)

	case intent.Chat:
		res.Message, err = s.dialogue.Narrate(ctx, s.gs, dialogue.Request{
			Input:       input,
			Kind:        intent.KindChat,
			World:       s.adapter.State(),
			Observation: s.adapter.Observation(),
		})

	case intent.Other:
		res.Message, err = s.dialogue.Narrate(ctx, s.gs, dialogue.Request{
			Input: input,
			Kind:  intent.KindOther,
			World: s.adapter.State(),
			Note:  strings.TrimSpace(v.Reason + ". " + offTopicNote),
		})

	default:
		return nil, fmt.Errorf("unhandled intent %T", in)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// recall looks a memory up when the classifier asked for one. A malformed
// oracle answer fails the turn; anything else degrades to NotFound.
func (a *Agent) recall(ctx context.Context, s *session, original string, needed bool, query string) (string, error) {
	if !needed {
		return "", nil
	}
	memo, err := s.memory.Retrieve(ctx, original, query)
	if errors.Is(err, oracle.ErrMalformedResponse) {
		return "", err
	}
	if err != nil {
		a.logger.Warn("Memory retrieval failed", "session_id", s.gs.ID, "error", err)
		return memory.NotFound, nil
	}
	return memo, nil
}

// open binds the per-session collaborators to a working copy of the state.
func (a *Agent) open(gs *state.GameState) *session {
	eng := world.NewEngine(a.m).Restore(gs.World)
	log := a.logger.With("session_id", gs.ID)

	memOpts := []memory.Option{memory.WithLogger(log)}
	if a.duplicateThreshold > 0 {
		memOpts = append(memOpts, memory.WithDuplicateThreshold(a.duplicateThreshold))
	}
	if a.storeTimeout > 0 {
		memOpts = append(memOpts, memory.WithStoreTimeout(a.storeTimeout))
	}
	mem := memory.NewManager(a.oracle, a.memories.Namespace(gs.ID), a.embedder, memOpts...)

	dlg := dialogue.NewManager(a.oracle, a.cast, a.m,
		dialogue.WithRecorder(mem),
		dialogue.WithTokenBudget(a.tokenBudget, a.counter),
		dialogue.WithSanitizer(a.sanitizer),
		dialogue.WithLogger(log))

	return &session{
		gs:       gs,
		engine:   eng,
		adapter:  world.NewAdapter(eng),
		memory:   mem,
		dialogue: dlg,
	}
}

// load returns the saved session or a fresh one at the start of the story.
func (a *Agent) load(ctx context.Context, sessionID string) (*state.GameState, error) {
	gs, err := a.storage.LoadGameState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game state: %w", err)
	}
	if gs == nil {
		gs = state.NewGameState(sessionID, world.NewEngine(a.m).Snapshot(), a.cast.HistoryLimit)
	}
	return gs, nil
}

func (a *Agent) notUnderstood(sessionID string, gs *state.GameState) *TurnResult {
	adapter := world.NewAdapter(world.NewEngine(a.m).Restore(gs.World))
	return &TurnResult{
		SessionID: sessionID,
		Message:   NotUnderstood,
		Location:  adapter.Location(),
		Win:       world.ComputeWin(adapter.ContainerContents()),
		Done:      gs.World.Done,
	}
}

func (a *Agent) fail(ctx context.Context, sessionID, kind string, start time.Time, err error) {
	a.logger.Error("Turn failed", "session_id", sessionID, "error", err)
	a.observeTurn(kind, OutcomeError, start)
	a.publish(ctx, sessionID, EventTurnFailed, map[string]any{"error": err.Error()})
}

// Observe reports a session's world without changing it. Unknown sessions
// are shown at the start of the story.
func (a *Agent) Observe(ctx context.Context, sessionID string) (*Snapshot, error) {
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}
	gs, err := a.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return a.snapshot(sessionID, gs), nil
}

// Reset starts a session over and forgets everything it remembered.
func (a *Agent) Reset(ctx context.Context, sessionID string) (*Snapshot, error) {
	if sessionID == "" {
		sessionID = chat.DefaultSessionID
	}
	release, err := a.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := a.memories.Drop(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to drop memories: %w", err)
	}
	gs := state.NewGameState(sessionID, world.NewEngine(a.m).Snapshot(), a.cast.HistoryLimit)
	if err := a.storage.SaveGameState(ctx, sessionID, gs); err != nil {
		return nil, fmt.Errorf("failed to save game state: %w", err)
	}
	a.logger.Info("Session reset", "session_id", sessionID)
	a.publish(ctx, sessionID, EventSessionReset, nil)
	return a.snapshot(sessionID, gs), nil
}

func (a *Agent) snapshot(sessionID string, gs *state.GameState) *Snapshot {
	adapter := world.NewAdapter(world.NewEngine(a.m).Restore(gs.World))
	contents := adapter.ContainerContents()
	return &Snapshot{
		SessionID:   sessionID,
		Location:    adapter.Location(),
		Inventory:   adapter.Inventory(),
		Observation: adapter.Observation(),
		Contents:    contents,
		Win:         world.ComputeWin(contents),
		Done:        gs.World.Done,
		Turn:        gs.Turn,
	}
}

// Map returns the map the agent plays on.
func (a *Agent) Map() *world.Map {
	return a.m
}

// Ping checks the session store.
func (a *Agent) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
