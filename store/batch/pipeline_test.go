// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/reactivestore/store/effects"
	"github.com/AleutianAI/reactivestore/store/pending"
)

type fakeHost struct {
	registry *effects.Registry
	buffer   *pending.Buffer
	links    map[string]string
	clients  []Client
}

func newFakeHost(data map[string]any) *fakeHost {
	return &fakeHost{
		registry: effects.New(),
		buffer:   pending.New(data),
		links:    map[string]string{},
	}
}

func (h *fakeHost) Registry() *effects.Registry     { return h.registry }
func (h *fakeHost) Buffer() *pending.Buffer         { return h.buffer }
func (h *fakeHost) LinkedPaths() map[string]string  { return h.links }
func (h *fakeHost) DrainPendingClients() []Client {
	c := h.clients
	h.clients = nil
	return c
}

func TestFlushRunsObserverWithOldAndNew(t *testing.T) {
	h := newFakeHost(map[string]any{"name": "old"})
	var seenOld, seenNew any
	h.registry.AddEffect("name", effects.Observe, effects.Effect{
		Fn: func(a effects.InvokeArgs) {
			seenOld, seenNew = a.OldValue, a.NewValue
		},
	})

	h.buffer.SetPending("name", "new")

	p := New(h, nil)
	if err := p.Flush(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenOld != "old" || seenNew != "new" {
		t.Errorf("observer saw old=%v new=%v", seenOld, seenNew)
	}
	if h.buffer.HasPending() {
		t.Errorf("expected pending to be cleared after flush")
	}
}

func TestFlushComputeFixpointConverges(t *testing.T) {
	h := newFakeHost(map[string]any{"first": "Ada", "last": "Lovelace", "fullName": ""})

	// fullName is computed from first + last.
	h.registry.AddEffect("first", effects.Compute, effects.Effect{
		Info: &effects.Info{MethodName: "_computeFullName", ResultTarget: "fullName"},
		Fn: func(a effects.InvokeArgs) {
			full := h.buffer.Data["first"].(string) + " " + h.buffer.Data["last"].(string)
			h.buffer.SetPending("fullName", full)
		},
	})
	h.registry.AddEffect("last", effects.Compute, effects.Effect{
		Info: &effects.Info{MethodName: "_computeFullName", ResultTarget: "fullName"},
		Fn: func(a effects.InvokeArgs) {
			full := h.buffer.Data["first"].(string) + " " + h.buffer.Data["last"].(string)
			h.buffer.SetPending("fullName", full)
		},
	})

	h.buffer.SetPending("first", "Grace")

	p := New(h, nil)
	if err := p.Flush(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.buffer.Data["fullName"] != "Grace Lovelace" {
		t.Errorf("fullName = %v", h.buffer.Data["fullName"])
	}
}

func TestFlushDetectsComputedCycle(t *testing.T) {
	h := newFakeHost(map[string]any{"a": 1.0, "b": 1.0})

	h.registry.AddEffect("a", effects.Compute, effects.Effect{
		Info: &effects.Info{},
		Fn: func(a effects.InvokeArgs) {
			h.buffer.SetPending("b", a.NewValue.(float64)+1)
		},
	})
	h.registry.AddEffect("b", effects.Compute, effects.Effect{
		Info: &effects.Info{},
		Fn: func(a effects.InvokeArgs) {
			h.buffer.SetPending("a", a.NewValue.(float64)+1)
		},
	})

	h.buffer.SetPending("a", 2.0)

	p := New(h, nil)
	err := p.Flush(context.Background(), false)
	if !errors.Is(err, ErrComputedCycle) {
		t.Fatalf("expected ErrComputedCycle, got %v", err)
	}
	if h.buffer.HasPending() {
		t.Errorf("expected pending buffer to be reset after a detected cycle")
	}
}

func TestFlushMirrorsLinkedPaths(t *testing.T) {
	h := newFakeHost(map[string]any{"source": "x", "mirror": "x"})
	h.links["source"] = "mirror"
	h.links["mirror"] = "source"

	h.buffer.SetPending("source", "y")

	p := New(h, nil)
	if err := p.Flush(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.buffer.Data["mirror"] != "y" {
		t.Errorf("mirror = %v, want y", h.buffer.Data["mirror"])
	}
}

func TestFlushCascadesToClients(t *testing.T) {
	h := newFakeHost(map[string]any{"a": 1.0})
	called := false
	h.clients = []Client{clientFunc(func(fromAbove bool) {
		called = true
		if !fromAbove {
			t.Errorf("cascade should always pass fromAbove=true")
		}
	})}

	h.buffer.SetPending("a", 2.0)

	p := New(h, nil)
	if err := p.Flush(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Errorf("expected cascade to invoke the queued client")
	}
}

func TestFlushNoPendingIsNoop(t *testing.T) {
	h := newFakeHost(map[string]any{"a": 1.0})
	p := New(h, nil)
	if err := p.Flush(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type clientFunc func(fromAbove bool)

func (f clientFunc) FlushProperties(fromAbove bool) { f(fromAbove) }
