// Package logging defines the structured logging contract shared by every
// component in the module, and a default implementation backed by
// log/slog.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logging interface every component depends on.
// It is intentionally compatible with slog, zap, and logrus adapters: all
// three take a message followed by variadic key-value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// SlogLogger adapts *slog.Logger to the Logger interface and tags every
// record with the owning component's name.
type SlogLogger struct {
	name   string
	logger *slog.Logger
}

// New returns a Logger that writes structured text logs to stderr at the
// given level, tagged with name. Level is one of "debug", "info", "warn",
// "error" (case-insensitive); unrecognized values default to info.
func New(name string, level string) *SlogLogger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return &SlogLogger{name: name, logger: slog.New(handler).With("component", name)}
}

// Named returns a child logger sharing this logger's handler but tagged
// with a different component name, used by components that construct
// sub-components (e.g. a Motor owning a SlewLimiter).
func (l *SlogLogger) Named(name string) *SlogLogger {
	return &SlogLogger{name: name, logger: l.logger.With("component", name)}
}

func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Nop is a Logger that discards everything, useful in tests.
type Nop struct{}

func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
func (Nop) Debug(string, ...any) {}
