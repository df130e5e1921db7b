// Package logging builds the process logger: a text slog handler writing to
// a size-rotated file, optionally teed to a console handler at a higher
// level.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults: rotate at 5 MB and keep the 5 most recent backups.
const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 5
)

// Config configures New.
type Config struct {
	// File is the log file path. Empty disables file logging.
	File string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
	// FileLevel is the minimum level written to the file.
	FileLevel slog.Level
	// Console, if non-nil, receives records at ConsoleLevel and above.
	Console io.Writer
	// ConsoleLevel is the minimum level written to Console.
	ConsoleLevel slog.Level
}

// DefaultConfig returns a file-only configuration writing DEBUG and above
// to path, rotated at 5 MB with 5 backups.
func DefaultConfig(path string) Config {
	return Config{
		File:         path,
		MaxSizeMB:    DefaultMaxSizeMB,
		MaxBackups:   DefaultMaxBackups,
		FileLevel:    slog.LevelDebug,
		ConsoleLevel: slog.LevelInfo,
	}
}

// Logger bundles the slog.Logger with the file it owns.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New creates the logger. The log directory is created if missing. Close
// the returned Logger to release the file.
func New(cfg Config) (*Logger, error) {
	var handlers []slog.Handler
	l := &Logger{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		if cfg.MaxSizeMB <= 0 {
			cfg.MaxSizeMB = DefaultMaxSizeMB
		}
		if cfg.MaxBackups <= 0 {
			cfg.MaxBackups = DefaultMaxBackups
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		}
		handlers = append(handlers, slog.NewTextHandler(l.file, &slog.HandlerOptions{
			Level: cfg.FileLevel,
		}))
	}
	if cfg.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(cfg.Console, &slog.HandlerOptions{
			Level: cfg.ConsoleLevel,
		}))
	}

	switch len(handlers) {
	case 0:
		l.Logger = Discard()
	case 1:
		l.Logger = slog.New(handlers[0])
	default:
		l.Logger = slog.New(Tee(handlers...))
	}
	return l, nil
}

// Rotate forces a rotation of the log file.
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns logger, or a discarding logger if it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// teeHandler forwards each record to every handler that accepts its level.
type teeHandler []slog.Handler

// Tee returns a handler that fans records out to hs.
func Tee(hs ...slog.Handler) slog.Handler {
	return teeHandler(hs)
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
