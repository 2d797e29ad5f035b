package logging

import (
	"context"
	"log/slog"
)

// SlogLogger implements Logger on top of log/slog. The server wires it with
// a JSON handler at startup; tests swap in a text handler over a buffer.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps an already configured *slog.Logger.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// Debug is not part of the Logger interface; it exists for local
// troubleshooting where a concrete *SlogLogger is at hand.
func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
