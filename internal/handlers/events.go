package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/village-mystery/internal/services/events"
)

const keepaliveInterval = 30 * time.Second

// Subscriber streams the lifecycle events of one session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error)
}

// EventsHandler serves a session's events as Server-Sent Events.
type EventsHandler struct {
	subscriber Subscriber
	logger     *slog.Logger
	keepalive  time.Duration
}

func NewEventsHandler(subscriber Subscriber, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		logger:     logger,
		keepalive:  keepaliveInterval,
	}
}

// ServeHTTP handles GET /events/{session_id}.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Missing session ID.")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "Streaming unsupported.")
		return
	}

	ctx := r.Context()
	stream, err := h.subscriber.Subscribe(ctx, sessionID)
	if err != nil {
		h.logger.Error("Failed to subscribe to session events", "session_id", sessionID, "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event stream unavailable.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.logger.Info("SSE connection established", "session_id", sessionID, "remote_addr", r.RemoteAddr)
	if err := h.send(w, "connected", map[string]any{"session_id": sessionID}); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", "session_id", sessionID)
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if err := h.send(w, ev.Type, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) send(w http.ResponseWriter, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		h.logger.Error("Failed to write SSE event", "error", err)
		return err
	}
	return nil
}
