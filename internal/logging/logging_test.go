package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.name); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestJSONConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(Config{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("step failed", zap.String("step", "login"))
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"step failed"`)
	assert.Contains(t, out, `"step":"login"`)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowcheck.log")
	log, err := New(Config{Level: "debug", Output: "file", File: path})
	require.NoError(t, err)

	log.Debug("visit", zap.String("url", "http://practice.local/login"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visit")
	assert.NotContains(t, string(data), "\x1b[", "file output carries no color codes")
}

func TestFileOutputNeedsPath(t *testing.T) {
	_, err := New(Config{Output: "file"})
	assert.Error(t, err)
}
