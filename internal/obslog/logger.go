// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package obslog builds the structured logger used by a Store and its
// command-line front ends: a log/slog.Logger with a level, an optional
// service tag, and a choice of text (for a terminal) or JSON (for a log
// file or aggregator) output.
package obslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the minimum severity a Logger emits, mirroring slog's Debug <
// Info < Warn < Error ordering under names that don't require importing
// slog at every call site.
type Level int

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures New. A zero-value Config logs Info and above to
// stderr as text.
type Config struct {
	// Level filters messages below it. Default: LevelInfo.
	Level Level

	// Service tags every record with a "service" attribute. Default: none.
	Service string

	// JSON switches stderr output to JSON. File output (LogDir) is always
	// JSON regardless of this setting. Default: false (text).
	JSON bool

	// LogDir, when set, additionally writes JSON records to
	// "<LogDir>/<Service>_<date>.log", creating the directory if needed.
	// A ~ prefix expands to the user's home directory.
	LogDir string

	// Quiet suppresses the stderr handler, leaving only LogDir. When
	// LogDir is unset or its file cannot be opened, New falls back to a
	// stderr text handler anyway.
	Quiet bool
}

// New builds a *slog.Logger from cfg. The returned file handle, if any,
// must be closed by the caller when the logger is no longer needed.
func New(cfg Config) (*slog.Logger, *os.File) {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlog()}

	var handlers []slog.Handler
	if !cfg.Quiet {
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	var file *os.File
	if cfg.LogDir != "" {
		if f, err := openLogFile(cfg.LogDir, cfg.Service); err == nil {
			file = f
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = multiHandler(handlers)
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	return slog.New(handler), file
}

// Default returns the store package's fallback logger: Info level, text
// to stderr, tagged "reactivestore".
func Default() *slog.Logger {
	logger, _ := New(Config{Level: LevelInfo, Service: "reactivestore"})
	return logger
}

func openLogFile(dir, service string) (*os.File, error) {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if service == "" {
		service = "reactivestore"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// multiHandler fans a record out to every wrapped handler, collecting
// the first error rather than aborting so a later handler still gets a
// chance to write it.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
