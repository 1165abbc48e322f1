// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package configsrc

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/reactivestore/internal/obslog"
	"github.com/AleutianAI/reactivestore/store"
)

// ReloadHandler receives a freshly parsed schema after a debounced file
// edit. A non-nil error means the file changed but failed to parse; cfg
// is the zero value in that case and the previous schema should be kept.
type ReloadHandler func(cfg store.Config, err error)

// Watcher watches one schema file and calls a ReloadHandler after each
// settled edit, debouncing rapid successive writes (an editor's
// write-then-rename save sequence) into a single reload.
type Watcher struct {
	path     string
	debounce time.Duration
	handler  ReloadHandler
	logger   *slog.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// WatcherOptions configures NewWatcher. A zero-value Options struct uses
// a 200ms debounce window and internal/obslog's default logger.
type WatcherOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewWatcher starts watching path's containing directory (fsnotify does
// not track a file across a remove+recreate save unless the directory
// itself is watched) and returns a Watcher, with handler already
// attached, ready for Start.
func NewWatcher(path string, handler ReloadHandler, opts WatcherOptions) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = obslog.Default()
	}

	return &Watcher{
		path:     path,
		debounce: debounce,
		handler:  handler,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the debounce loop until ctx is canceled or Stop is called.
// It blocks; callers run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	reload := func() {
		cfg, err := Load(w.path)
		w.handler(cfg, err)
		if err != nil {
			w.logger.Warn("config reload failed", slog.String("path", w.path), slog.Any("error", err))
		} else {
			w.logger.Info("config reloaded", slog.String("path", w.path))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.Any("error", err))
		}
	}
}

// Stop ends the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.fsw.Close()
}
