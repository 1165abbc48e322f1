// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pending implements the store engine's change-detection buffer:
// the {path -> newValue} / {path -> oldValue} maps accumulated between
// flushes, and the rule that decides whether a proposed write is actually
// a change worth propagating.
package pending

import (
	"math"

	"github.com/AleutianAI/reactivestore/store/path"
)

// Buffer owns a Store's live data cache plus the pending/old maps
// accumulated during the current change cycle.
//
// # Thread Safety
//
// Buffer assumes single-threaded access per Store instance, matching the
// engine's cooperative single-threaded-per-instance scheduling model. It
// performs no internal locking.
type Buffer struct {
	// Data is the flat path -> current value cache. Nested writes mutate
	// the underlying tree (via store/path) and also land a copy here at
	// the full written path.
	Data map[string]any

	// Pending holds values written during the current cycle, cleared at
	// the end of every compute-fixpoint pass and again at Stage 6 reset.
	Pending map[string]any

	// Old holds the value observed at the first write to each path during
	// the current cycle; a path already present here is never overwritten
	// until Reset.
	Old map[string]any
}

// New returns a Buffer backed by data. data is retained, not copied: the
// caller's map continues to serve as the Store's cache slot.
func New(data map[string]any) *Buffer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Buffer{Data: data}
}

// ShouldChange reports whether replacing old with v constitutes a change.
// Objects (maps and array pointers) are always considered changed,
// identity notwithstanding, matching the source engine's decision to
// never diff object contents. Primitives compare by value, with NaN
// treated as equal to NaN so repeatedly assigning NaN does not loop.
func ShouldChange(v, old any) bool {
	if isObject(v) {
		return true
	}
	if fv, ok := v.(float64); ok && math.IsNaN(fv) {
		if fo, ok := old.(float64); ok && math.IsNaN(fo) {
			return false
		}
	}
	return v != old
}

func isObject(v any) bool {
	switch v.(type) {
	case map[string]any, *[]any:
		return true
	default:
		return false
	}
}

// SetPending records a proposed write at p if it is a real change. It
// returns false, doing nothing, when ShouldChange(v, current) is false.
//
// On a real change it: captures Old[p] the first time p is touched this
// cycle (never overwritten before Reset), writes v into Data[p] and
// Pending[p], and — when v is an object and p is a root property — walks
// Data invalidating every cached descendant entry of p, so a stale
// deep-path cache cannot shadow the freshly-written subtree.
func (b *Buffer) SetPending(p string, v any) bool {
	old := b.Data[p]
	if !ShouldChange(v, old) {
		return false
	}

	if b.Pending == nil {
		b.Pending = make(map[string]any)
	}
	if b.Old == nil {
		b.Old = make(map[string]any)
	}
	if _, seen := b.Old[p]; !seen {
		b.Old[p] = old
	}

	b.Data[p] = v
	b.Pending[p] = v

	if isObject(v) && !path.IsDeep(p) {
		for k := range b.Data {
			if k != p && path.IsDescendant(p, k) {
				b.Data[k] = nil
			}
		}
	}

	return true
}

// HasPending reports whether any write is queued for the next flush.
func (b *Buffer) HasPending() bool {
	return len(b.Pending) > 0
}

// DrainPending returns the current Pending map and clears it, leaving Old
// untouched so it keeps accumulating first-write values across passes
// within the same cycle.
func (b *Buffer) DrainPending() map[string]any {
	p := b.Pending
	b.Pending = nil
	return p
}

// Reset clears both Pending and Old, ending the current change cycle
// (BatchPipeline Stage 6).
func (b *Buffer) Reset() {
	b.Pending = nil
	b.Old = nil
}
