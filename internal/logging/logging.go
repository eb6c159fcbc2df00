// Package logging provides the injectable Logger every component accepts
// at construction. There is no package-level logger and no global
// mutable state: callers build one slog-backed Logger and pass it down.
package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger is the minimal leveled interface components depend on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// slogLogger adapts log/slog to Logger.
type slogLogger struct {
	l *slog.Logger
}

// New builds a Logger writing structured text to os.Stderr at the given
// minimum level.
func New(level slog.Level) Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &slogLogger{l: slog.New(h)}
}

func (s *slogLogger) Debugf(format string, args ...any) { s.l.Debug(sprintf(format, args...)) }
func (s *slogLogger) Infof(format string, args ...any)  { s.l.Info(sprintf(format, args...)) }
func (s *slogLogger) Warnf(format string, args ...any)  { s.l.Warn(sprintf(format, args...)) }
func (s *slogLogger) Errorf(format string, args ...any) { s.l.Error(sprintf(format, args...)) }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// nopLogger discards everything; components fall back to it (as Nop)
// when constructed with a nil Logger.
type nopLogger struct{}

// Nop is the default logger used when a component is constructed without
// one.
var Nop Logger = nopLogger{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
