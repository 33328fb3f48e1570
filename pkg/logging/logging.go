// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup(slog.LevelInfo)
//	logger := logging.New(os.Stdout, slog.LevelDebug, logging.Options{NoColor: true})
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options tweaks the handler.
type Options struct {
	// NoColor disables ANSI colors, e.g. when output is not a terminal.
	NoColor bool
	// AddSource adds file:line to each record.
	AddSource bool
}

// New returns a tint-backed logger writing to w.
func New(w io.Writer, level slog.Leveler, opts Options) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		AddSource:  opts.AddSource,
		NoColor:    opts.NoColor,
	}))
}

// Setup installs a stderr logger at level as the slog default and returns it.
// Colors are dropped when NO_COLOR is set.
func Setup(level slog.Leveler) *slog.Logger {
	_, noColor := os.LookupEnv("NO_COLOR")
	logger := New(os.Stderr, level, Options{NoColor: noColor, AddSource: true})
	slog.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
