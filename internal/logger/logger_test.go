package logger

import (
	"bytes"
	"context"
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
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"none", LevelNone},
		{"off", LevelNone},
		{" info ", LevelInfo},
		{"invalid", LevelInfo}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "NONE", LevelNone.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestNewLoggerFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "test.log")

	l, err := New(LevelInfo, logPath, "test")
	require.NoError(t, err)

	l.Info("test message")
	l.Debug("should not appear")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "test message")
	assert.Contains(t, text, "[test]")
	assert.NotContains(t, text, "should not appear")
}

func TestWithPrefixSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(LevelInfo, &buf, "world")
	child := root.WithPrefix("tick")

	child.Debug("hidden")
	root.SetLevel(LevelDebug)
	child.Debug("visible")

	text := buf.String()
	assert.NotContains(t, text, "hidden")
	assert.Contains(t, text, "[world:tick] visible")
	assert.Equal(t, LevelDebug, child.GetLevel())
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(LevelNone, &buf, "test")

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.Zero(t, buf.Len())
}

func TestGlobalLogger(t *testing.T) {
	// Global logger should always work even if not initialized
	require.NotNil(t, Global())

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(LevelInfo, &buf, "")

	slog.New(NewSlogHandler(l)).With("session", "abc").Info("accepted")
	slog.New(NewSlogHandler(l)).WithGroup("net").Info("dialed", "remote", "127.0.0.1")
	slog.New(NewSlogHandler(l)).Info("peer", slog.Group("addr", "ip", "::1", "port", 9))
	slog.New(NewSlogHandler(l)).Debug("dropped")

	text := buf.String()
	assert.Contains(t, text, "[INFO] accepted session=abc")
	assert.Contains(t, text, "[INFO] [net] dialed remote=127.0.0.1")
	assert.Contains(t, text, "[INFO] peer addr.ip=::1 addr.port=9")
	assert.NotContains(t, text, "dropped")

	std := StdLog(l, slog.LevelError)
	std.Print("tls handshake error")
	assert.True(t, strings.Contains(buf.String(), "[ERROR] tls handshake error"))
}

func TestSlogHandlerFollowsRootLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(LevelWarn, &buf, "")
	h := NewSlogHandler(root.WithPrefix("websocket")).WithGroup("tls")
	ctx := context.Background()

	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
	root.SetLevel(LevelDebug)
	assert.True(t, h.Enabled(ctx, slog.LevelDebug))

	slog.New(h).Info("handshake")
	assert.Contains(t, buf.String(), "[websocket:tls] handshake")

	root.SetLevel(LevelNone)
	assert.False(t, h.Enabled(ctx, slog.LevelError))
}
