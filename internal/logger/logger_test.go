package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/village-mystery/internal/config"
)

func TestSetup_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)
	WithError(WithSession(WithRequestID(Component(l, "agent"), "r1"), "s1"), errors.New("boom")).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "village-mystery", line["service"])
	assert.Equal(t, "agent", line["component"])
	assert.Equal(t, "r1", line["request_id"])
	assert.Equal(t, "s1", line["session_id"])
	assert.Equal(t, "boom", line["error"])
}

func TestSetup_FormatOverride(t *testing.T) {
	var buf bytes.Buffer
	l := setup(&config.Config{Environment: "production", LogFormat: "text", LogLevel: slog.LevelInfo}, &buf)
	l.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)
	l.Info("quiet")
	assert.Empty(t, buf.String())
	l.Warn("loud")
	assert.Contains(t, buf.String(), "msg=loud")
}

func TestSetup_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)
	l.Info("config", "openai_api_key", "sk-123", "model", "gpt")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, redacted, line["openai_api_key"])
	assert.Equal(t, "gpt", line["model"])
}
