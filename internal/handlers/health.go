package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

const healthTimeout = 2 * time.Second

// Checker reports whether one dependency is reachable.
type Checker func(ctx context.Context) error

type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Service    string                     `json:"service"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthHandler runs every check concurrently. Any failure degrades the
// service and answers 503.
type HealthHandler struct {
	checks map[string]Checker
	logger *slog.Logger
}

// NewHealthHandler always checks the game's session storage under "storage";
// extra checks are added by name.
func NewHealthHandler(game Game, extra map[string]Checker, logger *slog.Logger) *HealthHandler {
	checks := map[string]Checker{"storage": game.Ping}
	for name, c := range extra {
		checks[name] = c
	}
	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := h.checks[name](ctx)
			results[i] = ComponentHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				results[i].Status = "unhealthy"
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()

	components := make(map[string]ComponentHealth, len(names))
	overallStatus := "healthy"
	for i, name := range names {
		components[name] = results[i]
		if results[i].Status != "healthy" {
			h.logger.Warn("Health check failed", "component", name, "error", results[i].Error)
			overallStatus = "degraded"
		}
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "village-mystery",
		Components: components,
	})
}
