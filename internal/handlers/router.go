package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jwebster45206/village-mystery/internal/logger"
	"github.com/jwebster45206/village-mystery/internal/metrics"
)

// RouterConfig collects what the HTTP API is built from. Everything but
// Game is optional.
type RouterConfig struct {
	Game         Game
	Subscriber   Subscriber
	Metrics      *metrics.Metrics
	HealthChecks map[string]Checker
	Logger       *slog.Logger
}

// NewRouter wires every endpoint of the API.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, log, http.StatusNotFound, "Not found.")
	})

	sessions := NewSessionHandler(cfg.Game, log)
	r.Handle("/chat", NewChatHandler(cfg.Game, log))
	r.Get("/check_inventory", sessions.Inventory)
	r.Get("/check_location", sessions.Location)
	r.Get("/check_obs", sessions.Observation)
	r.Post("/reset", sessions.Reset)
	r.Method(http.MethodGet, "/health", NewHealthHandler(cfg.Game, cfg.HealthChecks, log))
	if cfg.Subscriber != nil {
		r.Method(http.MethodGet, "/events/{session_id}", NewEventsHandler(cfg.Subscriber, log))
	}
	return r
}

// requestLogger logs each request with its chi request ID.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.WithRequestID(log, middleware.GetReqID(r.Context())).Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}
