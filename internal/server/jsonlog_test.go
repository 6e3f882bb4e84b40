package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelWarn, false)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", map[string]any{"k": "v"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[warn]")
	assert.Contains(t, out, "shown k=v")
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelDebug, true)

	l.Error("failed", map[string]any{"attempt": 2}, errors.New("boom"))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LogLevelError, entry.Level)
	assert.Equal(t, "failed", entry.Message)
	assert.Equal(t, "boom", entry.Error)
	assert.EqualValues(t, 2, entry.Fields["attempt"])
	assert.NotEmpty(t, entry.Caller)
}

func TestLogger_TextFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelInfo, false)

	l.Info("msg", map[string]any{"b": 2, "a": 1, "c": 3})
	assert.Contains(t, buf.String(), "msg a=1 b=2 c=3")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"warn":    LogLevelWarn,
		"error":   LogLevelError,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	l := NewLoggerFromConfig(LogConfig{Level: "error", Format: "JSON"})
	assert.True(t, l.enableJSON)
	assert.Equal(t, LogLevelError, l.minLevel)
}
