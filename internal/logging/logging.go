// Package logging builds the runtime's default *slog.Logger: configurable
// level and format, optional source-location annotation, and a redaction
// pass over secret-shaped strings applied before any record is written.
// Every component takes a *slog.Logger as a constructor argument rather than
// reaching for a package-level global.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Config controls how New builds its handler.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string

	// Format is "json" (production) or "text" (local development). Defaults
	// to "json".
	Format string

	// Output defaults to os.Stdout.
	Output io.Writer

	// AddSource annotates each record with file:line.
	AddSource bool

	// RedactPatterns are additional regexes applied alongside
	// DefaultRedactPatterns.
	RedactPatterns []string
}

// DefaultRedactPatterns covers the secret shapes most likely to leak through
// skill parameters or subprocess stderr: API keys, bearer tokens,
// Anthropic/OpenAI-style prefixed secrets, and JWTs.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["']?([a-zA-Z0-9_\-]{16,})["']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["']?([^\s"']{8,})["']?`,
	`sk-ant-[a-zA-Z0-9_-]{95,}`,
	`sk-[a-zA-Z0-9]{48,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
}

// contextKey namespaces the typed context keys below.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
)

// WithRequestID attaches a request ID to ctx for correlation-field injection.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithSessionID attaches a session ID to ctx for correlation-field injection.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// New builds a *slog.Logger per cfg. Every record's message and string
// attributes pass through the redaction patterns before reaching the
// underlying JSON/text handler.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}

	level := levelFromString(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var inner slog.Handler
	if cfg.Format == "text" {
		inner = slog.NewTextHandler(cfg.Output, opts)
	} else {
		inner = slog.NewJSONHandler(cfg.Output, opts)
	}

	patterns := make([]string, 0, len(DefaultRedactPatterns)+len(cfg.RedactPatterns))
	patterns = append(patterns, DefaultRedactPatterns...)
	patterns = append(patterns, cfg.RedactPatterns...)

	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			res = append(res, re)
		}
	}

	return slog.New(&redactingHandler{inner: inner, redacts: res})
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
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

// redactingHandler wraps an slog.Handler, rewriting the message and any
// string-valued attribute through the redaction patterns before delegating.
type redactingHandler struct {
	inner   slog.Handler
	redacts []*regexp.Regexp
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, h.redact(record.Message), record.PC)
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		redacted.AddAttrs(slog.String("request_id", requestID))
	}
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok && sessionID != "" {
		redacted.AddAttrs(slog.String("session_id", sessionID))
	}
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(redacted), redacts: h.redacts}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name), redacts: h.redacts}
}

func (h *redactingHandler) redact(s string) string {
	for _, re := range h.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = h.redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}
	return a
}
