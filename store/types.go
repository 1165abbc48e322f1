// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store implements a reactive property store: declared
// properties with computed and observed effects, batched change
// propagation, linked-path mirroring, and array mutators with splice
// notification.
//
// A Store is built from a Config describing its properties and the
// receiver methods those properties' computed/observer expressions may
// reference. Public writes made before Ready accumulate and are settled
// by Ready through the batch pipeline in store/batch; after Ready each
// write settles at once, or at DrainAsync when AsyncEffects is set.
package store

import "log/slog"

// Property declares one attribute of a Store's schema.
type Property struct {
	// Type is an opaque marker carried through to external consumers
	// (e.g. a UI layer) but never interpreted by the engine itself.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// ReadOnly rejects public writes; only Store.SetInternal or a
	// computed effect may change the value. Forced true
	// automatically when Computed is set.
	ReadOnly bool `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`

	// Computed is a method-signature expression (e.g.
	// "_computeFullName(first, last)") recomputed whenever any
	// non-literal argument's root property changes.
	Computed string `yaml:"computed,omitempty" json:"computed,omitempty"`

	// Observer names a Config.Methods entry invoked whenever this
	// property changes.
	Observer string `yaml:"observer,omitempty" json:"observer,omitempty"`
}

// Config is the schema and method table a Store is built from. Its
// effect bookkeeping is realized directly by store/effects.Type,
// store/effects.Effect, store/effects.Info, and store/expr.Arg — Config
// only needs to expose what a caller declares.
type Config struct {
	// Properties maps a property name to its declaration. Names must be
	// valid identifiers (letters, digits, underscore, '$', not starting
	// with a digit).
	Properties map[string]Property

	// Methods holds the callables that Computed/Observer expressions may
	// reference by name. Each entry must be a func value; arguments are
	// marshaled from live data per its expr.Signature and invoked via
	// reflection (Go has no string-keyed dynamic dispatch on arbitrary
	// receivers).
	Methods map[string]any

	// AsyncEffects selects deferred flush scheduling instead of
	// synchronous flush-on-next-public-boundary: mutations still land in
	// the pending buffer immediately, but the flush that settles them is
	// only marked owed, and runs on the caller's own goroutine the next
	// time it calls Store.DrainAsync. Defaults to false (synchronous),
	// matching the engine's post-Ready default; the source engine
	// defaults to asynchronous only before Ready.
	AsyncEffects bool

	// Logger receives structured diagnostics (missing methods, failed
	// invocations). Defaults to internal/obslog.Default() when nil.
	Logger *slog.Logger
}

// SpliceRecord describes one array mutation for NotifySplices.
type SpliceRecord struct {
	Index      int    `json:"index"`
	AddedCount int    `json:"addedCount"`
	Removed    []any  `json:"removed"`
	Object     any    `json:"object"`
	Type       string `json:"type"`
}

// Client is the downstream cascade target invoked at the end of a flush:
// a child Store or connected observer, notified after every settled
// change cycle. cmd/storesrv implements Client per WebSocket connection.
// It is declared separately from, but structurally identical to,
// store/batch.Client so this package's public surface does not need to
// import the batch package just to name the interface its Store
// implicitly satisfies as a batch.Host.
type Client interface {
	FlushProperties(fromAbove bool)
}
