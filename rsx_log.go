// rsx_log.go - Structured logging for the RSX offload core and its tools

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine

License: GPLv3 or later
*/

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `mapstructure:"format"` // text, json
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

var (
	logLevel  slog.LevelVar // read by the handler on every record
	logFormat atomic.Value // "text" or "json"

	logMu         sync.RWMutex
	logOutput     io.Writer = os.Stderr
	logOutputName string
	logFile       *os.File
	logColor      bool
	logger        *slog.Logger
)

func init() {
	logLevel.Set(slog.LevelInfo)
	logFormat.Store("text")
	logColor = term.IsTerminal(int(os.Stderr.Fd()))
	reconfigureLogger()
}

func reconfigureLogger() {
	logMu.Lock()
	defer logMu.Unlock()

	opts := &slog.HandlerOptions{Level: &logLevel}
	format, _ := logFormat.Load().(string)

	var handler slog.Handler
	switch {
	case format == "json":
		handler = slog.NewJSONHandler(logOutput, opts)
	case logColor:
		handler = newColorTextHandler(logOutput, opts)
	default:
		handler = slog.NewTextHandler(logOutput, opts)
	}
	logger = slog.New(handler).With("component", "rsx")
}

// initLogger applies cfg. Output may be "stdout", "stderr" or a file path;
// an empty Output keeps the current destination.
func initLogger(cfg LogConfig) error {
	if err := setLogOutput(cfg.Output); err != nil {
		return err
	}
	setLogLevel(cfg.Level)
	setLogFormat(cfg.Format)
	reconfigureLogger()
	return nil
}

// setLogOutput switches the destination, closing a log file it replaces.
// Naming the current destination again is a no-op.
func setLogOutput(name string) error {
	logMu.RLock()
	current := logOutputName
	logMu.RUnlock()
	if name == "" || name == current {
		return nil
	}

	var (
		out   io.Writer
		file  *os.File
		color bool
	)
	switch strings.ToLower(name) {
	case "stdout":
		out = os.Stdout
		color = term.IsTerminal(int(os.Stdout.Fd()))
	case "stderr":
		out = os.Stderr
		color = term.IsTerminal(int(os.Stderr.Fd()))
	default:
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", name, err)
		}
		out, file = f, f
	}

	logMu.Lock()
	old := logFile
	logOutput, logOutputName, logFile, logColor = out, name, file, color
	logMu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// closeLogOutput closes an open log file and falls back to stderr.
func closeLogOutput() error {
	logMu.Lock()
	old := logFile
	logOutput, logOutputName, logFile, logColor = os.Stderr, "", nil, false
	logMu.Unlock()
	reconfigureLogger()

	if old != nil {
		return old.Close()
	}
	return nil
}

// initLoggerWithWriter redirects logging to w, mainly for tests.
func initLoggerWithWriter(w io.Writer, level, format string) {
	logMu.Lock()
	old := logFile
	logOutput, logOutputName, logFile, logColor = w, "", nil, false
	logMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	setLogLevel(level)
	setLogFormat(format)
	reconfigureLogger()
}

// setLogLevel takes effect on the next record without rebuilding the
// handler. Invalid levels are ignored.
func setLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "INFO":
		logLevel.Set(slog.LevelInfo)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}
}

func setLogFormat(format string) {
	format = strings.ToLower(format)
	if format == "text" || format == "json" {
		logFormat.Store(format)
	}
}

func currentLogger() *slog.Logger {
	logMu.RLock()
	l := logger
	logMu.RUnlock()
	return l
}

func logDebug(msg string, args ...any) { currentLogger().Debug(msg, args...) }
func logInfo(msg string, args ...any)  { currentLogger().Info(msg, args...) }
func logWarn(msg string, args ...any)  { currentLogger().Warn(msg, args...) }
func logError(msg string, args ...any) { currentLogger().Error(msg, args...) }
