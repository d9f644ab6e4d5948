// Package logging provides a per-subsystem slog.Logger backend so every
// package logs under its own tag without constructing its own backend.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/decred/slog"
)

// LogBackend hands out one slog.Logger per named subsystem, all writing to
// the same sink, so every package logs under its own tag ("TURNFLOW",
// "CONN", "TIMEOUT", ...) without each constructing its own backend.
type LogBackend struct {
	backend *slog.Backend
	level   slog.Level

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// New creates a backend writing to w at the given default level. Pass
// os.Stdout for normal operation; tests typically pass io.Discard.
func New(w io.Writer, level slog.Level) *LogBackend {
	if w == nil {
		w = os.Stdout
	}
	return &LogBackend{
		backend: slog.NewBackend(w),
		level:   level,
		loggers: make(map[string]slog.Logger),
	}
}

// Logger returns the logger for subsystem, creating it on first use.
func (b *LogBackend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()

	if log, ok := b.loggers[subsystem]; ok {
		return log
	}
	log := b.backend.Logger(subsystem)
	log.SetLevel(b.level)
	b.loggers[subsystem] = log
	return log
}

// SetLevel changes the level of every logger handed out so far, and the
// default for loggers created afterward.
func (b *LogBackend) SetLevel(level slog.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.level = level
	for _, log := range b.loggers {
		log.SetLevel(level)
	}
}

// ParseLevel maps a config string ("debug", "info", ...) to a slog.Level,
// defaulting to Info on an unrecognized value.
func ParseLevel(s string) slog.Level {
	lvl, ok := slog.LevelFromString(s)
	if !ok {
		return slog.LevelInfo
	}
	return lvl
}

// Noop returns a backend that discards everything, for tests that need a
// logger but don't care about its output.
func Noop() *LogBackend {
	return New(io.Discard, slog.LevelOff)
}
