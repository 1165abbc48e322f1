// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package effects maintains the per-property effect lists the batch
// pipeline drives: which COMPUTE, OBSERVE, and READ_ONLY effects trigger
// for a given root property, plus the ANY union bucket used for accessor
// registration.
package effects

import (
	"github.com/google/uuid"

	"github.com/AleutianAI/reactivestore/store/path"
)

// Type classifies an effect by what triggers it and what it does.
type Type int

const (
	// Any is the union bucket containing every effect for a property,
	// regardless of its specific Type.
	Any Type = iota
	// Compute effects recompute a target property from a method result.
	Compute
	// Observe effects run a user-supplied observer callback.
	Observe
	// ReadOnly effects mark a property whose public setter is a no-op.
	ReadOnly
)

func (t Type) String() string {
	switch t {
	case Any:
		return "ANY"
	case Compute:
		return "COMPUTE"
	case Observe:
		return "OBSERVE"
	case ReadOnly:
		return "READ_ONLY"
	default:
		return "UNKNOWN"
	}
}

// InvokeArgs carries what an Effect's Fn needs to know about the write that
// triggered it.
type InvokeArgs struct {
	// TriggerPath is the concrete path that changed (may be deeper than
	// the effect's registered root property).
	TriggerPath string
	NewValue    any
	OldValue    any
}

// Fn is the callback bound to an Effect. Compute/observe effects close
// over their store instance, method, and argument descriptors when they
// are registered; this package never inspects the closure.
type Fn func(InvokeArgs)

// Info carries method-signature metadata for COMPUTE/OBSERVE effects that
// dispatch to a named method rather than a fixed simple observer.
type Info struct {
	MethodName   string
	ResultTarget string
	// LastRun is a dedupe stamp: the batch pipeline stamps its current
	// runId here so an effect fires at most once per root property per
	// fixpoint pass.
	LastRun int64
}

// Effect is one entry in the registry: a trigger path, a type, the
// callback to invoke, and optional method metadata.
type Effect struct {
	ID          string
	Type        Type
	TriggerPath string
	Fn          Fn
	Info        *Info
}

// Registry indexes effects by Type and then by the root property of their
// TriggerPath. It supports copy-on-write cloning so a Store built from a
// shared "class" configuration never mutates effects visible to sibling
// instances.
//
// Thread Safety
//
// Registry is not safe for concurrent mutation; the store engine's
// single-threaded-per-instance contract is what makes that acceptable.
// Reads (HasEffect, Effects) are safe once registration has finished.
type Registry struct {
	buckets map[Type]map[string][]*Effect
	// owned tracks which Type buckets belong to this Registry outright
	// (already copy-on-write'd) versus which are still shared with a
	// parent's map.
	owned  map[Type]bool
	parent *Registry
}

// New returns an empty, fully-owned registry.
func New() *Registry {
	return &Registry{
		buckets: make(map[Type]map[string][]*Effect),
		owned:   make(map[Type]bool),
	}
}

// Clone returns a new Registry that shares r's buckets until the clone's
// first mutation at each Type, at which point AddEffect copy-on-writes
// that bucket. This is the "parent class registry, per-instance
// mutation" scheme a shared property schema needs when several Store
// instances are built from it.
func (r *Registry) Clone() *Registry {
	return &Registry{
		buckets: r.buckets,
		owned:   make(map[Type]bool),
		parent:  r,
	}
}

func (r *Registry) ownBucket(t Type) map[string][]*Effect {
	if r.owned[t] {
		return r.buckets[t]
	}

	cloned := make(map[string][]*Effect, len(r.buckets[t]))
	for root, list := range r.buckets[t] {
		cp := make([]*Effect, len(list))
		copy(cp, list)
		cloned[root] = cp
	}

	if r.buckets == nil {
		r.buckets = make(map[Type]map[string][]*Effect)
	} else if !r.owned[t] {
		// buckets map itself may still be shared with the parent; make
		// sure writing this Type's bucket doesn't clobber the parent's.
		fresh := make(map[Type]map[string][]*Effect, len(r.buckets)+1)
		for k, v := range r.buckets {
			fresh[k] = v
		}
		r.buckets = fresh
	}

	r.buckets[t] = cloned
	r.owned[t] = true
	return cloned
}

// AddEffect registers effect under path's root property, in both the Any
// union bucket and effect.Type's own bucket. It stamps a fresh ID on
// effect if one is not already set.
func (r *Registry) AddEffect(p string, t Type, effect Effect) *Effect {
	root := path.Root(p)
	effect.TriggerPath = p
	effect.Type = t
	if effect.ID == "" {
		effect.ID = uuid.NewString()
	}
	stored := effect

	anyBucket := r.ownBucket(Any)
	anyBucket[root] = append(anyBucket[root], &stored)

	if t != Any {
		typeBucket := r.ownBucket(t)
		typeBucket[root] = append(typeBucket[root], &stored)
	}

	return &stored
}

// HasEffect reports whether property has at least one effect of the given
// type; pass Any to ask about any effect at all.
func (r *Registry) HasEffect(property string, t Type) bool {
	return len(r.buckets[t][property]) > 0
}

// HasReadOnly reports whether property was registered with a READ_ONLY
// effect (computed or explicitly read-only).
func (r *Registry) HasReadOnly(property string) bool {
	return r.HasEffect(property, ReadOnly)
}

// HasCompute reports whether property has a COMPUTE effect.
func (r *Registry) HasCompute(property string) bool {
	return r.HasEffect(property, Compute)
}

// Effects returns the effects of the given type registered for property,
// in registration order. The returned slice must not be mutated by
// callers.
func (r *Registry) Effects(property string, t Type) []*Effect {
	return r.buckets[t][property]
}

// Properties returns every root property with at least one registered
// effect of the given type.
func (r *Registry) Properties(t Type) []string {
	props := make([]string, 0, len(r.buckets[t]))
	for p := range r.buckets[t] {
		props = append(props, p)
	}
	return props
}
