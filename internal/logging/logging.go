package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel accepts debug, info, warn or error in any case. Anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. format is "json" or "text" (default).
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// FileWriter returns a size-rotated log file at path.
func FileWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// Setup creates the process logger, sets it as the default and returns it.
// Records go to stderr, and also to a rotated file when file is set.
func Setup(level, format, file string) *slog.Logger {
	var w io.Writer = os.Stderr
	if file != "" {
		w = io.MultiWriter(os.Stderr, FileWriter(file))
	}
	logger := New(w, level, format)
	slog.SetDefault(logger)
	return logger
}
