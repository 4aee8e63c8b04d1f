// Package logger provides structured logging utilities for the application.
// It wraps log/slog with JSON formatting, context enrichment and optional
// log shipping to Better Stack.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
	level    slog.Level
	shippers []*AsyncHandler
}

// Options configures optional log sinks.
type Options struct {
	// BetterStackToken enables log shipping when non-empty.
	BetterStackToken    string
	BetterStackEndpoint string
	// Async tunes the shipping queue.
	Async AsyncOptions
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// New creates a new logger writing JSON to stdout.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a new JSON logger writing to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	return NewWithOptions(level, w, Options{})
}

// NewWithOptions creates a logger writing JSON to w and, when configured,
// shipping the same records to Better Stack in the background.
func NewWithOptions(level string, w io.Writer, opts Options) *Logger {
	lvl := ParseLevel(level)

	handlers := []slog.Handler{newJSONHandler(w, lvl)}
	var shippers []*AsyncHandler
	if opts.BetterStackToken != "" {
		bs := slogbetterstack.Option{
			Level:    lvl,
			Token:    opts.BetterStackToken,
			Endpoint: opts.BetterStackEndpoint,
			Timeout:  5 * time.Second,
		}.NewBetterstackHandler()
		async := NewAsyncHandler(bs, opts.Async)
		shippers = append(shippers, async)
		handlers = append(handlers, async)
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = NewMultiHandler(handlers...)
	}

	return &Logger{
		Logger:   slog.New(NewContextHandler(handler)),
		level:    lvl,
		shippers: shippers,
	}
}

func newJSONHandler(w io.Writer, lvl slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.LevelKey:
				level := a.Value.String()
				if level == "WARN" {
					level = "warning"
				} else {
					level = strings.ToLower(level)
				}
				a.Value = slog.StringValue(level)
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
}

// Level returns the configured minimum level.
func (l *Logger) Level() slog.Level {
	return l.level
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.With(args...), level: l.level, shippers: l.shippers}
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return l.with("module", module)
}

// WithRequestID creates a new entry with request ID field
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with("request_id", requestID)
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err)
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(key, value)
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// Fatal logs at error level, flushes shipped logs and exits.
func (l *Logger) Fatal(msg string) {
	l.Error(msg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = l.Shutdown(ctx)
	cancel()
	os.Exit(1)
}

// Shutdown flushes background log shipping.
func (l *Logger) Shutdown(ctx context.Context) error {
	for _, s := range l.shippers {
		if err := s.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
