package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/village-mystery/pkg/agent"
	"github.com/jwebster45206/village-mystery/pkg/chat"
)

type InventoryResponse struct {
	Inventory []string `json:"inventory"`
}

type LocationResponse struct {
	Location string `json:"location"`
}

type ObservationResponse struct {
	Obs string `json:"obs"`
}

type ResetRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type ResetResponse struct {
	SessionID string `json:"session_id"`
	Location  string `json:"location"`
	Obs       string `json:"obs"`
}

// SessionHandler serves the read-only views of a session and resets it.
type SessionHandler struct {
	game   Game
	logger *slog.Logger
}

func NewSessionHandler(game Game, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		game:   game,
		logger: logger,
	}
}

// Inventory handles GET /check_inventory.
func (h *SessionHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	h.observe(w, r, func(s *agent.Snapshot) any {
		inv := s.Inventory
		if inv == nil {
			inv = []string{}
		}
		return InventoryResponse{Inventory: inv}
	})
}

// Location handles GET /check_location.
func (h *SessionHandler) Location(w http.ResponseWriter, r *http.Request) {
	h.observe(w, r, func(s *agent.Snapshot) any {
		return LocationResponse{Location: s.Location}
	})
}

// Observation handles GET /check_obs.
func (h *SessionHandler) Observation(w http.ResponseWriter, r *http.Request) {
	h.observe(w, r, func(s *agent.Snapshot) any {
		return ObservationResponse{Obs: s.Observation}
	})
}

func (h *SessionHandler) observe(w http.ResponseWriter, r *http.Request, view func(*agent.Snapshot) any) {
	sessionID := sessionParam(r)
	snap, err := h.game.Observe(r.Context(), sessionID)
	if err != nil {
		status, msg := statusFor(err)
		h.logger.Error("Error observing session", "session_id", sessionID, "error", err)
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, view(snap))
}

// Reset handles POST /reset. The body is optional.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid reset body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.SessionID == "" {
		req.SessionID = chat.DefaultSessionID
	}

	snap, err := h.game.Reset(r.Context(), req.SessionID)
	if err != nil {
		status, msg := statusFor(err)
		h.logger.Error("Error resetting session", "session_id", req.SessionID, "error", err)
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ResetResponse{
		SessionID: snap.SessionID,
		Location:  snap.Location,
		Obs:       snap.Observation,
	})
}
