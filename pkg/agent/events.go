package agent

import (
	"context"
	"time"
)

// Turn lifecycle events.
const (
	EventTurnStarted   = "turn.started"
	EventTurnCompleted = "turn.completed"
	EventTurnFailed    = "turn.failed"
	EventGameEnded     = "game.ended"
	EventSessionReset  = "session.reset"
)

// Publisher fans turn events out to listeners, such as an SSE stream.
type Publisher interface {
	Publish(ctx context.Context, sessionID, eventType string, data map[string]any) error
}

// Hooks are optional callbacks for metrics.
type Hooks struct {
	OnTurn func(kind, outcome string, elapsed time.Duration)
	OnPlan func(status string, commands int)
}

// Turn outcomes passed to Hooks.OnTurn.
const (
	OutcomeOK            = "ok"
	OutcomeNotUnderstood = "not_understood"
	OutcomeError         = "error"
)

func (a *Agent) publish(ctx context.Context, sessionID, eventType string, data map[string]any) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, sessionID, eventType, data); err != nil {
		a.logger.Warn("Failed to publish event",
			"session_id", sessionID,
			"event_type", eventType,
			"error", err)
	}
}

func (a *Agent) observeTurn(kind, outcome string, start time.Time) {
	if a.hooks.OnTurn != nil {
		a.hooks.OnTurn(kind, outcome, time.Since(start))
	}
}
