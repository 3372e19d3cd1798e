package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jwebster45206/village-mystery/internal/logger"
	"github.com/jwebster45206/village-mystery/pkg/chat"
)

// maxChatBody caps a single turn request.
const maxChatBody = 64 << 10

// ChatHandler runs one player turn per request.
type ChatHandler struct {
	game   Game
	logger *slog.Logger
}

func NewChatHandler(game Game, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		game:   game,
		logger: logger,
	}
}

// ServeHTTP handles POST /chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for chat endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var request chat.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'user_input' field.")
		return
	}
	if err := request.Validate(); err != nil {
		h.logger.Warn("Invalid chat request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "user_input cannot be empty.")
		return
	}

	log := logger.WithSession(logger.WithRequestID(h.logger, middleware.GetReqID(r.Context())), request.SessionID)
	log.Info("Chat turn received", "remote_addr", r.RemoteAddr, "input_length", len(request.UserInput))

	result, err := h.game.ProcessTurn(r.Context(), request.SessionID, request.UserInput)
	if err != nil {
		status, msg := statusFor(err)
		logger.WithError(log, err).Error("Error processing turn", "status", status)
		writeError(w, h.logger, status, msg)
		return
	}

	log.Info("Chat turn completed", "location", result.Location, "win", result.Win)
	writeJSON(w, h.logger, http.StatusOK, result.Response())
}
