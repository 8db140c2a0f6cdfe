// Package observability provides the structured logging, tracing, and
// metrics surface shared across the replay engine: request-correlated
// slog output, OpenTelemetry spans around replay requests (including the
// model call), and Prometheus counters/histograms for replay throughput.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// ContextKey is the type for context keys carrying correlation fields.
type ContextKey string

const (
	// TraceIDKey is the context key for the trace being replayed.
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for a replay's requestId.
	RequestIDKey ContextKey = "request_id"
	// NodeIDKey is the context key for the replay's start node.
	NodeIDKey ContextKey = "node_id"
)

// DefaultRedactPatterns covers the secrets most likely to leak into a log
// line from this service: LLM provider keys and bearer/API-key headers
// forwarded to external tools.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["\']?([a-zA-Z0-9_\-]{16,})["\']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`sk-ant-[a-zA-Z0-9_-]{95,}`,
	`sk-[a-zA-Z0-9]{48,}`,
}

// LogConfig configures NewLogger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Format is "json" or "text". Defaults to "json".
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
	// AddSource includes file/line in log records.
	AddSource bool
	// RedactPatterns are extra regexes appended to DefaultRedactPatterns.
	RedactPatterns []string
}

// Logger wraps slog with context-field correlation and line-level
// redaction of secrets that might otherwise land in a log message
// (e.g. a tool's Authorization header echoed back in an error).
type Logger struct {
	base    *slog.Logger
	redacts []*regexp.Regexp
}

// NewLogger builds a Logger from config.
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Format == "" {
		config.Format = "json"
	}

	var level slog.Level
	switch strings.ToLower(config.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: config.AddSource}
	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	patterns := append(append([]string{}, DefaultRedactPatterns...), config.RedactPatterns...)
	redacts := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{base: slog.New(handler), redacts: redacts}
}

// WithContext folds trace_id/request_id/node_id out of ctx into a
// logger-scoped attribute group, mirroring how the replay coordinator
// tags every log line it emits for a given request.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if v, ok := ctx.Value(TraceIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("trace_id", v))
	}
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("request_id", v))
	}
	if v, ok := ctx.Value(NodeIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("node_id", v))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{base: l.base.With(slog.Group("context", attrs...)), redacts: l.redacts}
}

func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(l.redact(msg), args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(l.redact(msg), args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(l.redact(msg), args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(l.redact(msg), args...) }

// Slog returns the underlying *slog.Logger for packages that take one
// directly (toolregistry, grounding, replay).
func (l *Logger) Slog() *slog.Logger { return l.base }

func (l *Logger) redact(msg string) string {
	for _, re := range l.redacts {
		msg = re.ReplaceAllString(msg, "$1=[REDACTED]")
	}
	return msg
}
