package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"Trace", LevelTrace},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{" debug ", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"info", "debug", "trace", "WARN", "error"} {
		assert.True(t, ValidLevel(s), "ValidLevel(%q)", s)
	}
	assert.False(t, ValidLevel("loud"))
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantTrace bool
		wantDebug bool
		wantInfo  bool
	}{
		{"info", false, false, true},
		{"debug", false, true, true},
		{"trace", true, true, true},
		{"error", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Log(context.Background(), LevelTrace, "step detail")
			logger.Debug("job detail")
			logger.Info("job done")

			out := buf.String()
			assert.Equal(t, tt.wantTrace, strings.Contains(out, "step detail"), "trace visible in %q", out)
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "job detail"), "debug visible in %q", out)
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "job done"), "info visible in %q", out)
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("trace", &buf).Log(context.Background(), LevelTrace, "timestep", "t", 3)
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}

func TestNewDiagnosticLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDiagnosticLogger(dir, "info")
	assert.Nil(t, dl, "expected nil DiagnosticLogger at info level")
	dl.Log(map[string]any{"event": "divergence"})

	assert.NoFileExists(t, filepath.Join(dir, DiagnosticsFile))
}

func TestDiagnosticLogger_WritesEvents(t *testing.T) {
	for _, level := range []string{"debug", "trace"} {
		t.Run(level, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out", "run")
			dl := NewDiagnosticLogger(dir, level)
			require.NotNil(t, dl)

			event := map[string]any{"event": "divergence", "job_id": 7, "timestep": 12}
			dl.Log(event)
			dl.Log(map[string]any{"event": "job_complete"})
			dl.Close()
			dl.Log(map[string]any{"event": "after_close"})

			assert.NotContains(t, event, "time", "Log() mutated the caller's map")

			data, err := os.ReadFile(filepath.Join(dir, DiagnosticsFile))
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, lines, 2, "%q", data)

			var first map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
			assert.Equal(t, "divergence", first["event"])
			assert.Equal(t, float64(12), first["timestep"])
			assert.Contains(t, first, "time")
		})
	}
}

func TestDiagnosticLogger_NilSafety(t *testing.T) {
	var dl *DiagnosticLogger
	dl.Log(map[string]any{"event": "ignored"})
	dl.Close()
}
