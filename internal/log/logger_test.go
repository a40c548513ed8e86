package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("debug wins", func(t *testing.T) {
		t.Setenv("CIRCINSPECT_DEBUG", "1")
		t.Setenv("CIRCINSPECT_LOG_LEVEL", "error")
		cfg := FromEnv()
		assert.Equal(t, "debug", cfg.Level)
		assert.True(t, cfg.AddSource)
	})

	t.Run("specific level over generic", func(t *testing.T) {
		t.Setenv("CIRCINSPECT_DEBUG", "")
		t.Setenv("CIRCINSPECT_LOG_LEVEL", "ERROR")
		t.Setenv("LOG_LEVEL", "info")
		t.Setenv("LOG_FORMAT", "JSON")
		cfg := FromEnv()
		assert.Equal(t, "error", cfg.Level)
		assert.Equal(t, FormatJSON, cfg.Format)
	})
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})
	WithComponent(WithRequestID(logger, "req-1"), "engine").Info("built", CommandsKey, 5)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "built", rec["msg"])
	assert.Equal(t, "req-1", rec[RequestIDKey])
	assert.Equal(t, "engine", rec[ComponentKey])
	assert.EqualValues(t, 5, rec[CommandsKey])
}

func TestOr(t *testing.T) {
	assert.NotNil(t, Or(nil))
	l := New(nil)
	assert.Same(t, l, Or(l))
}
