package logging

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
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "stage", "embed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "embed", record["stage"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "text", &buf)
	require.NoError(t, err)

	logger.Debug("hello", "query", "bank rate")
	assert.Contains(t, buf.String(), `query="bank rate"`)
}

func TestNewLoggerInvalid(t *testing.T) {
	_, err := NewLogger("info", "xml", nil)
	assert.Error(t, err)

	_, err = NewLogger("loud", "text", nil)
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	require.NoError(t, Setup("info", "text", &buf))
	WithComponent("searcher").Info("ready")
	assert.Contains(t, buf.String(), "component=searcher")

	assert.Error(t, Setup("nope", "text", &buf))
}
