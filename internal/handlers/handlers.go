package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/village-mystery/pkg/agent"
	"github.com/jwebster45206/village-mystery/pkg/chat"
	"github.com/jwebster45206/village-mystery/pkg/memory"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Game is the part of the agent the HTTP layer drives.
type Game interface {
	ProcessTurn(ctx context.Context, sessionID, input string) (*agent.TurnResult, error)
	Observe(ctx context.Context, sessionID string) (*agent.Snapshot, error)
	Reset(ctx context.Context, sessionID string) (*agent.Snapshot, error)
	Ping(ctx context.Context) error
}

var _ Game = (*agent.Agent)(nil)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// statusFor maps agent errors onto HTTP statuses and client-facing messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrEmptyInput):
		return http.StatusBadRequest, "user_input cannot be empty."
	case errors.Is(err, agent.ErrTurnInProgress):
		return http.StatusConflict, "A turn is already in progress for this session."
	case errors.Is(err, oracle.ErrUnavailable), errors.Is(err, memory.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "The narrator is unavailable. Please try again."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The turn took too long. Please try again."
	default:
		return http.StatusInternalServerError, "Failed to process request."
	}
}

func sessionParam(r *http.Request) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	return chat.DefaultSessionID
}
