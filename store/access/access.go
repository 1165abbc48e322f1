// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package access implements the accessor layer that sits between a
// Store's public mutators and its pending buffer: it decides whether a
// write lands directly in the nested value tree, gets routed through
// change detection, or both.
package access

import "github.com/AleutianAI/reactivestore/store/path"

// Host is the subset of Store capability the accessor layer needs. Store
// implements it; tests can supply a fake.
type Host interface {
	// HasEffect reports whether root has any registered effect.
	HasEffect(root string) bool
	// Tree returns the root of the nested value tree that unmanaged
	// (no-effect) paths are written into directly.
	Tree() any
}

// SetPathOrUnmanaged applies value at p against h's tree when p addresses
// an unmanaged slot (no effect on its root property, or a path deeper
// than its root), and additionally returns the normalized path for the
// caller to hand to the pending buffer when the root property does carry
// an effect. Both can happen for the same write: an effect-bearing root
// property whose write targets a nested path both updates the tree and
// is reported for pending routing.
//
// Outputs:
//
//	pendingPath - the path to route through setPending, or "" when the
//	    property carries no effect at all.
func SetPathOrUnmanaged(h Host, p string, value any) (pendingPath string) {
	root := path.Root(p)
	hasEffect := h.HasEffect(root)
	deep := path.IsDeep(p)

	if !hasEffect || deep {
		path.Set(h.Tree(), p, value)
	}
	if hasEffect {
		return p
	}
	return ""
}
