// rsx_log_test.go - Tests for the structured logger

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	initLoggerWithWriter(&buf, level, format)
	t.Cleanup(func() { initLoggerWithWriter(os.Stderr, "INFO", "text") })
	return &buf
}

func TestLogger_JSONCarriesComponent(t *testing.T) {
	buf := captureLogs(t, "INFO", "json")

	logInfo("offload status", "enqueued", 12)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "offload status", entry["msg"])
	assert.Equal(t, "rsx", entry["component"])
	assert.Equal(t, float64(12), entry["enqueued"])
}

func TestLogger_LevelFilters(t *testing.T) {
	buf := captureLogs(t, "WARN", "text")

	logDebug("hidden")
	logInfo("hidden")
	logWarn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLogger_InvalidSettingsIgnored(t *testing.T) {
	buf := captureLogs(t, "DEBUG", "text")

	setLogLevel("verbose")
	setLogFormat("xml")
	reconfigureLogger()

	logDebug("still debug")
	assert.Contains(t, buf.String(), "msg=\"still debug\"")
}

func TestInitLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsx.log")
	t.Cleanup(func() { initLoggerWithWriter(os.Stderr, "INFO", "text") })

	require.NoError(t, initLogger(LogConfig{Level: "ERROR", Format: "json", Output: path}))
	logWarn("dropped")
	logError("kept", "error", "boom")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
}

func TestInitLogger_BadPath(t *testing.T) {
	err := initLogger(LogConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "rsx.log")})
	assert.Error(t, err)
}

func TestLogger_ColourTextHandler(t *testing.T) {
	buf := captureLogs(t, "DEBUG", "text")

	logMu.Lock()
	logColor = true
	logMu.Unlock()
	reconfigureLogger()

	logError("red", "cpus", 2)
	currentLogger().WithGroup("dma").Info("grouped", "pending", 3)
	logDebug("quiet note")

	out := buf.String()
	assert.Contains(t, out, ansiRed+"ERROR"+ansiReset+" red")
	assert.Contains(t, out, ansiCyan+"component"+ansiReset+"=rsx")
	assert.Contains(t, out, ansiCyan+"cpus"+ansiReset+"=2")
	assert.Contains(t, out, ansiCyan+"dma.pending"+ansiReset+"=3")
	assert.Contains(t, out, ansiGray+"DEBUG"+ansiReset+" quiet note")
	assert.NotContains(t, out, `\x1b`, "escape codes must reach the terminal unquoted")
}

func TestLogger_ColourHandlerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	h := newColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	l := slog.New(h)

	l.Info("hidden")
	l.Warn("shown", "msg_with_space", "two words")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, ansiYellow+"WARN"+ansiReset+" shown")
	assert.Contains(t, out, `="two words"`)
}

func TestInitLogger_ReplacedFileIsClosed(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { initLoggerWithWriter(os.Stderr, "INFO", "text") })

	require.NoError(t, initLogger(LogConfig{Level: "INFO", Format: "text", Output: filepath.Join(dir, "a.log")}))
	logMu.RLock()
	first := logFile
	logMu.RUnlock()
	require.NotNil(t, first)

	// Same destination again keeps the open file.
	require.NoError(t, initLogger(LogConfig{Output: filepath.Join(dir, "a.log")}))
	logMu.RLock()
	assert.Same(t, first, logFile)
	logMu.RUnlock()

	require.NoError(t, initLogger(LogConfig{Output: filepath.Join(dir, "b.log")}))
	_, err := first.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)

	logMu.RLock()
	second := logFile
	logMu.RUnlock()
	require.NoError(t, closeLogOutput())
	_, err = second.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
