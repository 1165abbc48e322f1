// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch runs the store engine's change cycle: compute fixpoint,
// linked-path mirroring, downstream client cascade, and observer
// dispatch, converging a batch of pending writes to a settled state.
package batch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/reactivestore/store/effects"
	"github.com/AleutianAI/reactivestore/store/path"
	"github.com/AleutianAI/reactivestore/store/pending"
	"github.com/AleutianAI/reactivestore/store/telemetry"
)

// ErrComputedCycle is returned when the compute fixpoint fails to
// converge within maxFixpointPasses, indicating a cyclic computed-property
// dependency in the caller's configuration.
var ErrComputedCycle = errors.New("store/batch: computed property cycle detected")

// maxFixpointPasses bounds Stage 1's compute-fixpoint loop. User
// configuration errors (a cyclic computed dependency) are the only way
// this bound is reached; correctly-configured computed properties are
// acyclic by construction and converge in far fewer passes.
const maxFixpointPasses = 100

// Client is the downstream cascade target invoked at the end of Stage 4:
// a child store or connected observer that wants to know a flush from
// above has just settled.
type Client interface {
	FlushProperties(fromAbove bool)
}

// Host is the store capability a Pipeline drives. Store implements it.
type Host interface {
	Registry() *effects.Registry
	Buffer() *pending.Buffer
	// LinkedPaths returns the alias map. It already contains both
	// directions of every pair added via LinkPaths, so a single pass over
	// it mirrors a↔b symmetrically.
	LinkedPaths() map[string]string
	// DrainPendingClients returns the clients queued for cascade and
	// clears the queue.
	DrainPendingClients() []Client
}

// Pipeline runs one Host's flush cycle to completion.
//
// # Thread Safety
//
// Pipeline assumes single-threaded access to its Host, matching the
// engine's cooperative scheduling contract. It is not safe to call Flush
// concurrently from multiple goroutines against the same Pipeline.
type Pipeline struct {
	host    Host
	metrics *telemetry.Metrics

	active  bool
	passSeq int64
}

// New returns a Pipeline driving host, recording metrics through m.
func New(host Host, m *telemetry.Metrics) *Pipeline {
	return &Pipeline{host: host, metrics: m}
}

// Flush runs the change cycle to steady state: compute fixpoint, linked
// mirror, client cascade, and observers, repeating whenever an observer's
// own writes leave new pending data (the reentrancy case), then resets
// the pending buffer.
//
// A call arriving while a Flush is already active on the same goroutine's
// call stack (an observer or computed method writing back through the
// public API) is a no-op: the active call's loop notices the new pending
// write on its next iteration and folds it into the same cycle, which is
// the outcome the source engine's runId/interim reentrancy scheme exists
// to produce.
func (p *Pipeline) Flush(ctx context.Context, fromAbove bool) error {
	if p.active {
		return nil
	}
	p.active = true
	defer func() { p.active = false }()

	buf := p.host.Buffer()
	if !buf.HasPending() {
		return nil
	}

	ctx, span := telemetry.Tracer.Start(ctx, "store.flush",
		trace.WithAttributes(attribute.Bool("store.from_above", fromAbove)))
	defer span.End()

	start := time.Now()
	var totalPasses int64
	changed := make(map[string]any)

	for buf.HasPending() {
		passes, err := p.computeFixpoint(ctx, buf, changed)
		totalPasses += passes
		if err != nil {
			buf.Reset()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if p.metrics != nil {
				p.metrics.RecordComputedCycle(ctx)
			}
			return err
		}

		p.mirrorLinkedPaths(ctx, buf, changed)
		p.cascadeClients(ctx, fromAbove)
		p.runObservers(ctx, buf, changed)
	}

	buf.Reset()

	if p.metrics != nil {
		p.metrics.RecordFlush(ctx, time.Since(start).Seconds(), totalPasses, int64(len(changed)))
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// computeFixpoint runs Stage 1: it repeatedly dispatches COMPUTE effects
// for whatever is newly pending until a pass produces no further pending
// writes, accumulating every touched property into changed. Effects are
// looked up by the pending path's root property, since Registry indexes
// by root regardless of how deep the write that triggered it was.
func (p *Pipeline) computeFixpoint(ctx context.Context, buf *pending.Buffer, changed map[string]any) (int64, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "store.flush.compute_fixpoint")
	defer span.End()

	registry := p.host.Registry()
	frontier := buf.DrainPending()
	for k, v := range frontier {
		changed[k] = v
	}

	var passes int64
	for len(frontier) > 0 {
		passes++
		if passes > maxFixpointPasses {
			return passes, ErrComputedCycle
		}

		p.passSeq++
		token := p.passSeq
		for prop, val := range frontier {
			for _, eff := range registry.Effects(path.Root(prop), effects.Compute) {
				if eff.Info != nil {
					if eff.Info.LastRun == token {
						continue
					}
					eff.Info.LastRun = token
				}
				eff.Fn(effects.InvokeArgs{
					TriggerPath: prop,
					NewValue:    val,
					OldValue:    buf.Old[prop],
				})
			}
		}

		next := buf.DrainPending()
		for k, v := range next {
			changed[k] = v
		}
		frontier = next
	}

	span.SetAttributes(attribute.Int64("store.fixpoint_passes", passes))
	return passes, nil
}

// mirrorLinkedPaths runs Stage 2: for every alias pair and every changed
// path that descends from one side, mirror the value onto the translated
// path on the other side directly (not through change detection — the
// mirrored value is definitionally already the source of truth).
func (p *Pipeline) mirrorLinkedPaths(ctx context.Context, buf *pending.Buffer, changed map[string]any) {
	links := p.host.LinkedPaths()
	if len(links) == 0 {
		return
	}
	_, span := telemetry.Tracer.Start(ctx, "store.flush.linked_path_mirror")
	defer span.End()

	additions := make(map[string]any)
	for from, to := range links {
		for cp, v := range changed {
			if path.IsDescendant(from, cp) {
				q := path.Translate(from, to, cp)
				additions[q] = v
			}
		}
	}
	for q, v := range additions {
		buf.Data[q] = v
		changed[q] = v
	}
}

// cascadeClients runs Stage 4: flush every queued downstream client with
// fromAbove=true.
func (p *Pipeline) cascadeClients(ctx context.Context, fromAbove bool) {
	clients := p.host.DrainPendingClients()
	if len(clients) == 0 {
		return
	}
	_, span := telemetry.Tracer.Start(ctx, "store.flush.client_cascade")
	defer span.End()
	span.SetAttributes(attribute.Int("store.cascade_client_count", len(clients)))

	for _, c := range clients {
		c.FlushProperties(true)
	}
	_ = fromAbove
}

// runObservers runs Stage 5: dispatch OBSERVE effects for every property
// touched during the cycle, looked up by each changed path's root
// property for the same reason computeFixpoint does.
func (p *Pipeline) runObservers(ctx context.Context, buf *pending.Buffer, changed map[string]any) {
	if len(changed) == 0 {
		return
	}
	registry := p.host.Registry()
	_, span := telemetry.Tracer.Start(ctx, "store.flush.observers")
	defer span.End()

	for prop, val := range changed {
		for _, eff := range registry.Effects(path.Root(prop), effects.Observe) {
			start := time.Now()
			eff.Fn(effects.InvokeArgs{
				TriggerPath: prop,
				NewValue:    val,
				OldValue:    buf.Old[prop],
			})
			if p.metrics != nil {
				p.metrics.RecordObserver(ctx, time.Since(start).Seconds())
			}
		}
	}
}
