// Package dlog builds the process logger: a colourised console handler and a
// JSON file handler fanned out behind a context-aware handler.
package dlog

import (
	"errors"
	"fmt"
	slogmulti "github.com/samber/slog-multi"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type Options struct {
	Level slog.Level
	// Dir receives bot.json; empty keeps logging on the console only.
	Dir    string
	Color  bool
	Source bool
	Stdout io.Writer
	// Archiver guards file writes while logs are rotated. Optional.
	Archiver *Archiver
}

type Logger struct {
	*slog.Logger
	files []*os.File
}

func New(opts Options) (*Logger, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		AddSource: opts.Source,
		Level:     opts.Level,
	}

	handlers := []slog.Handler{
		NewPrettyHandler(opts.Stdout, handlerOpts, WithColor(opts.Color)),
	}
	logger := &Logger{}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(opts.Dir, "bot.json"), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.files = append(logger.files, file)

		var w io.Writer = file
		if opts.Archiver != nil {
			w = opts.Archiver.guard(file)
		}
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
	}

	logger.Logger = slog.New(ContextHandler{Handler: slogmulti.Fanout(handlers...)})
	if opts.Archiver != nil {
		opts.Archiver.log = logger.Logger
	}
	return logger, nil
}

func (l *Logger) Close() error {
	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
