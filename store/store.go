// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/reactivestore/internal/obslog"
	"github.com/AleutianAI/reactivestore/store/access"
	"github.com/AleutianAI/reactivestore/store/batch"
	"github.com/AleutianAI/reactivestore/store/effects"
	"github.com/AleutianAI/reactivestore/store/path"
	"github.com/AleutianAI/reactivestore/store/pending"
	"github.com/AleutianAI/reactivestore/store/telemetry"
)

// Store is a reactive property container built from a Config: it holds
// declared properties, their computed/observer effects, and the buffered
// pending writes a flush settles into a consistent state.
//
// # Thread Safety
//
// A Store is not safe for concurrent use from multiple goroutines; the
// engine's single-threaded cooperative scheduling contract assumes one
// goroutine drives each instance, including AsyncEffects: DrainAsync
// must be called from that same goroutine, never from a second one.
// cmd/storesrv serializes all mutation from every connected client onto
// one goroutine per Store to uphold this.
type Store struct {
	registry *effects.Registry
	buffer   *pending.Buffer
	pipeline *batch.Pipeline
	methods  map[string]any
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	ctx      context.Context

	linkedPaths map[string]string
	clients     []Client

	asyncEffects bool
	asyncDirty   bool

	initialized bool
}

// New builds a Store from cfg, validating it and registering every
// declared property's effects before returning.
func New(cfg Config) (*Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = obslog.Default()
	}
	s := &Store{
		registry:     effects.New(),
		methods:      cfg.Methods,
		logger:       logger,
		linkedPaths:  make(map[string]string),
		asyncEffects: cfg.AsyncEffects,
		ctx:          context.Background(),
	}
	s.buffer = pending.New(make(map[string]any))
	s.metrics = telemetry.NewMetrics(logger)
	s.pipeline = batch.New(s, s.metrics)

	for name, p := range cfg.Properties {
		if err := s.registerProperty(name, p); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Get returns the current value at path, or nil if it has never been set.
func (s *Store) Get(rawPath any) any {
	p := path.Normalize(rawPath)
	if v, ok := s.buffer.Data[p]; ok {
		return v
	}
	return path.Get(s.buffer.Data, p, nil)
}

// Set writes value at path. A root property registered read-only (either
// declared so or forced by a Computed expression) silently ignores a
// public write. Otherwise, whether the write lands in the tree, gets
// routed to change detection, or both, follows store/access's
// unmanaged-vs-effect-bearing rule; a real change schedules a flush.
func (s *Store) Set(rawPath any, value any) {
	p := path.Normalize(rawPath)
	if s.setPathOrUnmanaged(p, value) {
		s.scheduleFlush()
	}
}

// setPathOrUnmanaged is Set's non-normalizing core, shared with
// SetProperties so a batch of assignments only normalizes once each. It
// reports whether the write actually changed pending state, leaving the
// decision of when to schedule a flush to the caller.
func (s *Store) setPathOrUnmanaged(p string, value any) bool {
	if s.registry.HasReadOnly(path.Root(p)) {
		return false
	}
	pendingPath := access.SetPathOrUnmanaged(s, p, value)
	if pendingPath == "" {
		// No effect on this root: access already mutated the tree in
		// place for a deep path, but the flat cache at the exact
		// written path still needs to mirror it for Get to find.
		if path.IsDeep(p) {
			s.buffer.Data[p] = value
		}
		return false
	}
	return s.buffer.SetPending(pendingPath, value)
}

// SetProperties applies props in a single batch: every key not read-only
// is normalized and enqueued, and a flush is scheduled once at the end
// rather than once per key.
func (s *Store) SetProperties(props map[string]any) {
	touched := false
	for rawPath, value := range props {
		p := path.Normalize(rawPath)
		if s.setPathOrUnmanaged(p, value) {
			touched = true
		}
	}
	if touched {
		s.scheduleFlush()
	}
}

// NotifyPath forces a path through change detection without going
// through the accessor layer's tree-write step, for callers that have
// already mutated a nested object in place and need observers/computes to
// see it. When value is omitted, the path's current data is re-read and
// used, which is sufficient to trigger observers of an object property
// whose contents changed without a top-level reassignment.
func (s *Store) NotifyPath(rawPath any, value ...any) {
	p := path.Normalize(rawPath)
	var v any
	if len(value) > 0 {
		v = value[0]
	} else {
		v = path.Get(s.buffer.Data, p, nil)
	}
	if s.buffer.SetPending(p, v) {
		s.scheduleFlush()
	}
}

// LinkPaths mirrors writes between to and from within every flush cycle:
// a write descending from either path is copied onto the translated
// counterpart on the other side. Passing an empty from deletes the
// existing alias for to instead of creating one — the source engine's
// linkPaths(to, "") call is a delete, not a link to nothing.
func (s *Store) LinkPaths(to, from string) error {
	to = path.Normalize(to)
	if from == "" {
		s.UnlinkPaths(to)
		return nil
	}
	from = path.Normalize(from)

	if !s.registry.HasEffect(path.Root(to), effects.Any) && !s.registry.HasEffect(path.Root(from), effects.Any) {
		s.logger.Warn("LinkPaths: neither path resolves to a declared property", "to", to, "from", from)
		return ErrUnknownProperty
	}

	s.linkedPaths[to] = from
	s.linkedPaths[from] = to
	return nil
}

// UnlinkPaths removes to's alias, and the reverse alias pointing back to
// it, if one exists.
func (s *Store) UnlinkPaths(to string) {
	to = path.Normalize(to)
	from, ok := s.linkedPaths[to]
	if !ok {
		return
	}
	delete(s.linkedPaths, to)
	delete(s.linkedPaths, from)
}

// Ready marks the Store initialized and, if writes accumulated before
// this call, runs the first flush.
func (s *Store) Ready() {
	s.initialized = true
	if s.buffer.HasPending() {
		_ = s.flush(false)
	}
}

// AddClient registers c to be cascaded (FlushProperties(true)) after
// every settled flush.
func (s *Store) AddClient(c Client) {
	s.clients = append(s.clients, c)
}

// RemoveClient unregisters a previously added client.
func (s *Store) RemoveClient(c Client) {
	for i, existing := range s.clients {
		if existing == c {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			return
		}
	}
}

func (s *Store) flush(fromAbove bool) error {
	return s.pipeline.Flush(s.ctx, fromAbove)
}

// scheduleFlush implements the scheduling rule: before Ready,
// writes simply accumulate (nothing to converge to yet); after Ready, the
// default is a synchronous flush on this call, unless AsyncEffects marks
// it owed for the next DrainAsync call instead.
func (s *Store) scheduleFlush() {
	if !s.initialized {
		return
	}
	if s.asyncEffects {
		s.enqueueAsyncFlush()
		return
	}
	_ = s.flush(false)
}

// The methods below satisfy store/access.Host and store/batch.Host,
// letting those packages drive a Store without importing it.

// HasEffect implements store/access.Host.
func (s *Store) HasEffect(root string) bool { return s.registry.HasEffect(root, effects.Any) }

// Tree implements store/access.Host.
func (s *Store) Tree() any { return s.buffer.Data }

// Registry implements store/batch.Host.
func (s *Store) Registry() *effects.Registry { return s.registry }

// Buffer implements store/batch.Host.
func (s *Store) Buffer() *pending.Buffer { return s.buffer }

// LinkedPaths implements store/batch.Host.
func (s *Store) LinkedPaths() map[string]string { return s.linkedPaths }

// DrainPendingClients implements store/batch.Host. Registered clients are
// a standing subscription rather than a one-shot queue, so every settled
// flush cascades to the same list; there is nothing to "clear" beyond the
// per-cycle slice this method allocates to satisfy batch.Client's type.
func (s *Store) DrainPendingClients() []batch.Client {
	if len(s.clients) == 0 {
		return nil
	}
	out := make([]batch.Client, len(s.clients))
	for i, c := range s.clients {
		out[i] = c
	}
	return out
}
