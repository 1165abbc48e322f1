// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"testing"
)

func TestMetricsRecordDoesNotPanicWithoutExporter(t *testing.T) {
	m := NewMetrics(nil)
	ctx := context.Background()

	m.RecordFlush(ctx, 0.002, 3, 5)
	m.RecordComputedCycle(ctx)
	m.RecordObserver(ctx, 0.001)
}

func TestMetricsInitIsIdempotent(t *testing.T) {
	m := NewMetrics(nil)
	m.init()
	m.init()
	if m.flushTotal == nil {
		t.Errorf("expected flushTotal instrument to be initialized")
	}
}
