// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the store engine's flush pipeline to
// OpenTelemetry tracing and Prometheus-backed metrics. It is ambient
// instrumentation: nothing in this package changes propagation order or
// fixpoint semantics, it only observes them.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Tracer and Meter are the package-wide OpenTelemetry handles every
// BatchPipeline stage span and metric is created against.
var (
	Tracer = otel.Tracer("reactivestore.store")
	Meter  = otel.Meter("reactivestore.store")
)

// Metrics bundles the counters and histograms recorded around a flush.
// Instruments are created lazily on first use so a Store never pays for
// metrics it never records, and so metric-registration failures (a
// misconfigured exporter, for instance) degrade to no-ops instead of
// panicking.
type Metrics struct {
	logger *slog.Logger

	once sync.Once

	flushTotal        metric.Int64Counter
	flushDuration     metric.Float64Histogram
	fixpointPasses    metric.Int64Histogram
	changedProperties metric.Int64Histogram
	computedCycles    metric.Int64Counter
	observerDuration  metric.Float64Histogram
}

// NewMetrics returns a Metrics bundle. logger receives a diagnostic entry
// if any instrument fails to register; if logger is nil, slog.Default()
// is used.
func NewMetrics(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Metrics{logger: logger}
}

func (m *Metrics) init() {
	m.once.Do(func() {
		var failures []string

		var err error
		m.flushTotal, err = Meter.Int64Counter("store_flush_total",
			metric.WithDescription("Number of completed BatchPipeline flushes"))
		if err != nil {
			failures = append(failures, "flush_total: "+err.Error())
		}

		m.flushDuration, err = Meter.Float64Histogram("store_flush_duration_seconds",
			metric.WithDescription("Wall-clock time of a full flush cycle"),
			metric.WithUnit("s"))
		if err != nil {
			failures = append(failures, "flush_duration: "+err.Error())
		}

		m.fixpointPasses, err = Meter.Int64Histogram("store_fixpoint_passes",
			metric.WithDescription("Compute-fixpoint passes taken to converge in one flush"))
		if err != nil {
			failures = append(failures, "fixpoint_passes: "+err.Error())
		}

		m.changedProperties, err = Meter.Int64Histogram("store_changed_properties",
			metric.WithDescription("Distinct properties touched by one flush"))
		if err != nil {
			failures = append(failures, "changed_properties: "+err.Error())
		}

		m.computedCycles, err = Meter.Int64Counter("store_computed_cycle_total",
			metric.WithDescription("Flushes aborted by ErrComputedCycle"))
		if err != nil {
			failures = append(failures, "computed_cycle: "+err.Error())
		}

		m.observerDuration, err = Meter.Float64Histogram("store_observer_duration_seconds",
			metric.WithDescription("Time spent running a single observer effect"),
			metric.WithUnit("s"))
		if err != nil {
			failures = append(failures, "observer_duration: "+err.Error())
		}

		if len(failures) > 0 {
			m.logger.Error("failed to initialize some store metrics (observability degraded)",
				slog.Int("failed_count", len(failures)),
				slog.Any("errors", failures))
		}
	})
}

// RecordFlush records one completed flush cycle: total duration, the
// number of compute-fixpoint passes it took, and how many properties
// ended up changed.
func (m *Metrics) RecordFlush(ctx context.Context, durationSeconds float64, passes, changedCount int64) {
	m.init()
	if m.flushTotal != nil {
		m.flushTotal.Add(ctx, 1)
	}
	if m.flushDuration != nil {
		m.flushDuration.Record(ctx, durationSeconds)
	}
	if m.fixpointPasses != nil {
		m.fixpointPasses.Record(ctx, passes)
	}
	if m.changedProperties != nil {
		m.changedProperties.Record(ctx, changedCount)
	}
}

// RecordComputedCycle records a flush that was aborted after hitting the
// fixpoint iteration bound.
func (m *Metrics) RecordComputedCycle(ctx context.Context) {
	m.init()
	if m.computedCycles != nil {
		m.computedCycles.Add(ctx, 1)
	}
}

// RecordObserver records the wall-clock time a single observer effect
// took to run.
func (m *Metrics) RecordObserver(ctx context.Context, durationSeconds float64) {
	m.init()
	if m.observerDuration != nil {
		m.observerDuration.Record(ctx, durationSeconds)
	}
}
