package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jwebster45206/village-mystery/internal/config"
)

const redacted = "[REDACTED]"

// Setup builds the process logger from config and installs it as the slog
// default. LOG_FORMAT wins over the environment-based choice.
func Setup(cfg *config.Config) *slog.Logger {
	return setup(cfg, os.Stdout)
}

func setup(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: redactSecrets,
	}

	format := strings.ToLower(cfg.LogFormat)
	if format == "" {
		format = "text"
		if cfg.Environment == "production" {
			format = "json"
		}
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler).With("service", "village-mystery")
	slog.SetDefault(l)
	return l
}

// redactSecrets hides values of keys that look like credentials.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "password") || key == "authorization" {
		return slog.String(a.Key, redacted)
	}
	return a
}

// Component tags a logger with the subsystem it belongs to.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

// WithRequestID adds request ID to logger context
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithSession adds the session ID to logger context
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}
