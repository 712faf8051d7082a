// Package logging provides a configured slog logger with:
// - TTY detection for human-readable vs JSON output
// - LOG_FORMAT env var override (text/json)
// - LOG_LEVEL env var (debug/info/warn/error)
// - Source file:line info
// - Context-based jobID/userID extraction
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

const (
	// JobIDKey is the context key for job ID.
	JobIDKey ContextKey = "log_job_id"
	// UserIDKey is the context key for user ID (carried in context only - NOT logged due to PII).
	UserIDKey ContextKey = "log_user_id"
)

// level is the process-wide level gate shared by every logger New returns,
// so SetLevel takes effect on already-constructed loggers.
var level = new(slog.LevelVar)

// WithJobID adds a job ID to the context for logging.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithUserID adds a user ID to the context for logging.
// Note: userID is only carried in the context (see GetUserID) - NOT logged due to PII concerns.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetJobID extracts the job ID from context.
func GetJobID(ctx context.Context) string {
	if v := ctx.Value(JobIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUserID extracts the user ID from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FromContext returns a logger with jobID from context added as attributes.
// Note: userID is NOT included in logs (PII).
// Use this when you want to include context information in your logs.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}

	if jobID := GetJobID(ctx); jobID != "" {
		return logger.With("job_id", jobID)
	}

	return logger
}

// New creates a new configured logger.
// Format is determined by:
// 1. LOG_FORMAT env var (text/json)
// 2. TTY detection (text for TTY, JSON otherwise)
// Level is determined by LOG_LEVEL env var (debug/info/warn/error, default: info)
// and can be changed afterward at runtime via SetLevel.
func New() *slog.Logger {
	level.Set(parseLogLevel(os.Getenv("LOG_LEVEL")))

	logFormat := os.Getenv("LOG_FORMAT")
	useText := logFormat == "text" || (logFormat == "" && isTerminal(os.Stdout))

	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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

// SetDefault creates a new logger and sets it as the default slog logger.
// Returns the created logger for additional use.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the global log level at runtime.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel returns the current global log level.
func GetLevel() slog.Level {
	return level.Level()
}

// isTerminal returns true if f is a terminal, covering both native TTYs and
// Cygwin/MSYS pseudo-terminals on Windows.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
