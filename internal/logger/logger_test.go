package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/afkfleet/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestJSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.Logging{Level: "info", Format: "json", Service: "afkfleet"}, &buf)

	log.Debug("hidden")
	log.Info("voice ready", "bot", "Bot 1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "afkfleet", rec["service"])
	assert.Equal(t, "Bot 1", rec["bot"])
	assert.Equal(t, "voice ready", rec["msg"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.Logging{Level: "debug", Format: "text", Service: "x"}, &buf)
	log.Debug("phase", "phase", "ready")
	assert.Contains(t, buf.String(), "phase=ready")
	assert.Contains(t, buf.String(), "service=x")
}
