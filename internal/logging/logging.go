package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component constants for structured logging.
const (
	CompDispatch   = "dispatch"
	CompScheduler  = "scheduler"
	CompHeartbeat  = "heartbeat"
	CompTranscript = "transcript"
	CompAgent      = "agent"
	CompGateway    = "gateway"
	CompWorkspace  = "workspace"
)

// Config holds logging configuration.
type Config struct {
	// LogDir is the directory for rotated log files. Empty means log to stderr.
	LogDir string

	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string

	// MaxSizeMB is the max size in MB before rotation (default: 10).
	MaxSizeMB int

	// MaxBackups is rotated files to keep (default: 5).
	MaxBackups int

	// MaxAgeDays is days to keep rotated files (default: 14).
	MaxAgeDays int
}

var (
	globalLogger *slog.Logger
	globalMu     sync.RWMutex
	lumberjackW  *lumberjack.Logger
)

// Init initializes the global logging system.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 14
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogDir == "" {
		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		return
	}

	lumberjackW = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "claw.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	globalLogger = slog.New(slog.NewJSONHandler(lumberjackW, opts))
}

// Logger returns the global logger. Safe to call before Init.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return globalLogger
}

// ForComponent returns a sub-logger with the component field set.
func ForComponent(name string) *slog.Logger {
	return Logger().With(slog.String("component", name))
}

// Shutdown closes the rotating writer if one is open.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if lumberjackW != nil {
		lumberjackW.Close()
		lumberjackW = nil
	}
	globalLogger = nil
}
