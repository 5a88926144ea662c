package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn := newWithStdout(&buf, "info", "json", "")
	defer func() { require.NoError(t, closeFn()) }()

	log.Debug("hidden")
	log.With("component", "scraper").Info("term done", "products", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "term done", entry["msg"])
	assert.Equal(t, "scraper", entry["component"])
	assert.EqualValues(t, 3, entry["products"])
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log, _ := newWithStdout(&buf, "debug", "text", "")

	log.Debug("page loaded", "url", "https://shopee.sg")
	assert.Contains(t, buf.String(), "msg=\"page loaded\"")
	assert.Contains(t, buf.String(), "url=https://shopee.sg")
}

func TestNewTeesIntoFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "shopee.log")

	log, closeFn := newWithStdout(&buf, "info", "json", path)
	log.Info("session opened")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session opened")
	assert.Contains(t, buf.String(), "session opened")
}
