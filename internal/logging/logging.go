// Package logging provides structured logging with slog for entropyd.
//
// This is a trimmed descendant of a daemon logging package in the same
// family: JSON or text output, sensitive-attribute redaction, and
// request/connection-scoped context logging survive; file rotation does
// not, since this daemon writes to stderr or syslog under a process
// supervisor rather than self-rotating log files.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level is a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format is the output format for logs.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs JSON-structured logs.
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or JSON).
	Format Format

	// Output specifies where logs are written: "stdout" or "stderr".
	Output string

	// AddSource adds source file and line to log entries.
	AddSource bool

	// RedactKeys lists additional attribute key substrings to redact
	// beyond the built-in sensitive-key list.
	RedactKeys []string

	// Component names the subsystem using this logger, e.g.
	// "source.<serial_id>", "pool", "control", "kernel-feeder".
	Component string
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		Format:    FormatText,
		Output:    "stderr",
		AddSource: false,
		Component: "entropyd",
	}
}

// Logger wraps slog.Logger with level control, since SetLogVerbosity on
// the control socket must be able to change the active log level at
// runtime.
type Logger struct {
	*slog.Logger
	config    *Config
	level     *slog.LevelVar
	requestID atomic.Uint64
}

// New creates a new Logger from cfg.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var w io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = os.Stdout
	default:
		w = os.Stderr
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key, cfg.RedactKeys) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	return &Logger{Logger: slog.New(handler), config: cfg, level: levelVar}, nil
}

// shouldRedact reports whether key looks like it carries sensitive data.
func shouldRedact(key string, extra []string) bool {
	sensitive := []string{
		"password", "secret", "token", "key", "credential",
		"private", "auth", "session", "cookie", "api_key",
		"apikey", "access_token", "refresh_token", "bearer",
	}
	sensitive = append(sensitive, extra...)

	keyLower := strings.ToLower(key)
	for _, s := range sensitive {
		if strings.Contains(keyLower, s) {
			return true
		}
	}
	return false
}

// SetLevel changes the active minimum log level, for SetLogVerbosity.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// WithComponent returns a derived logger tagged with a different
// component name, e.g. for per-source loggers.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("component", name)),
		config: l.config,
		level:  l.level,
	}
}

// WithRequestID returns a derived logger tagged with a request/connection
// ID, for per-control-connection logging.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", id)),
		config: l.config,
		level:  l.level,
	}
}

// NewRequestID generates a unique, monotonically increasing request ID
// scoped to this logger's component.
func (l *Logger) NewRequestID() string {
	id := l.requestID.Add(1)
	return fmt.Sprintf("%s-%d-%d", l.config.Component, time.Now().UnixNano(), id)
}

type contextKey int

const requestIDKey contextKey = iota

// ContextWithRequestID attaches a request ID to ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts a request ID attached by
// ContextWithRequestID, or "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContext returns a logger carrying ctx's request ID, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return l.WithRequestID(reqID)
	}
	return l
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// LevelString returns the string form of a log level.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
