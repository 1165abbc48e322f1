// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import "testing"

// spliceObserver records the .splices values it sees during flush, since
// NotifySplices nulls the record's contents once the triggering flush has
// settled — an observer is the only vantage point that sees the payload.
type spliceObserver struct {
	seen []SpliceRecord
}

func (o *spliceObserver) onSplices(newValue, oldValue any, path string) {
	rec, ok := newValue.(map[string]any)
	if !ok {
		return
	}
	list, ok := rec["indexSplices"].([]SpliceRecord)
	if !ok {
		return
	}
	o.seen = append(o.seen, list...)
}

func newArrayStore(t *testing.T, initial []any) (*Store, *spliceObserver) {
	t.Helper()
	obs := &spliceObserver{}
	s, err := New(Config{
		Properties: map[string]Property{
			"items": {Type: "array", Observer: "onSplices"},
		},
		Methods: map[string]any{"onSplices": obs.onSplices},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	arr := append([]any{}, initial...)
	s.buffer.Data["items"] = &arr
	s.Ready()
	return s, obs
}

func lastSeen(obs *spliceObserver) SpliceRecord {
	if len(obs.seen) == 0 {
		return SpliceRecord{}
	}
	return obs.seen[len(obs.seen)-1]
}

func TestPushAppendsAndReportsSplice(t *testing.T) {
	s, obs := newArrayStore(t, []any{"a", "b"})

	n := s.Push("items", "c", "d")
	if n != 4 {
		t.Fatalf("expected length 4, got %d", n)
	}

	rec := lastSeen(obs)
	if rec.Index != 2 || rec.AddedCount != 2 {
		t.Errorf("expected splice at index 2 adding 2, got %+v", rec)
	}
	if s.buffer.Data["items.length"] != float64(4) {
		t.Errorf("expected items.length to be 4, got %v", s.buffer.Data["items.length"])
	}
}

func TestPopRemovesLastElement(t *testing.T) {
	s, obs := newArrayStore(t, []any{"a", "b", "c"})

	v := s.Pop("items")
	if v != "c" {
		t.Fatalf("expected popped value \"c\", got %v", v)
	}

	rec := lastSeen(obs)
	if rec.Index != 2 || len(rec.Removed) != 1 || rec.Removed[0] != "c" {
		t.Errorf("expected splice removing \"c\" at index 2, got %+v", rec)
	}
}

func TestPopOnEmptyArrayReturnsNil(t *testing.T) {
	s, _ := newArrayStore(t, nil)
	if v := s.Pop("items"); v != nil {
		t.Errorf("expected nil from popping an empty array, got %v", v)
	}
}

func TestShiftRemovesFirstElement(t *testing.T) {
	s, _ := newArrayStore(t, []any{"a", "b", "c"})

	v := s.Shift("items")
	if v != "a" {
		t.Fatalf("expected shifted value \"a\", got %v", v)
	}

	arr := s.buffer.Data["items"].(*[]any)
	if len(*arr) != 2 || (*arr)[0] != "b" {
		t.Errorf("expected [\"b\",\"c\"] remaining, got %v", *arr)
	}
}

func TestUnshiftPrependsElements(t *testing.T) {
	s, _ := newArrayStore(t, []any{"c"})

	n := s.Unshift("items", "a", "b")
	if n != 3 {
		t.Fatalf("expected length 3, got %d", n)
	}

	arr := s.buffer.Data["items"].(*[]any)
	if (*arr)[0] != "a" || (*arr)[1] != "b" || (*arr)[2] != "c" {
		t.Errorf("expected [a b c], got %v", *arr)
	}
}

func TestSpliceInsertsAndRemoves(t *testing.T) {
	s, _ := newArrayStore(t, []any{"a", "b", "c", "d"})

	removed := s.Splice("items", 1, 2, "x", "y", "z")
	if len(removed) != 2 || removed[0] != "b" || removed[1] != "c" {
		t.Fatalf("expected [b c] removed, got %v", removed)
	}

	arr := s.buffer.Data["items"].(*[]any)
	want := []any{"a", "x", "y", "z", "d"}
	if len(*arr) != len(want) {
		t.Fatalf("expected %v, got %v", want, *arr)
	}
	for i := range want {
		if (*arr)[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], (*arr)[i])
		}
	}
}

func TestSpliceNegativeStartCountsFromEnd(t *testing.T) {
	s, _ := newArrayStore(t, []any{"a", "b", "c", "d"})

	removed := s.Splice("items", -2, 1)
	if len(removed) != 1 || removed[0] != "c" {
		t.Fatalf("expected [c] removed, got %v", removed)
	}
}

func TestSpliceClampsDeleteCountToLength(t *testing.T) {
	s, _ := newArrayStore(t, []any{"a", "b"})

	removed := s.Splice("items", 1, 10)
	if len(removed) != 1 || removed[0] != "b" {
		t.Fatalf("expected [b] removed, got %v", removed)
	}
}

func TestSpliceNoOpEmitsNoSplice(t *testing.T) {
	s, obs := newArrayStore(t, []any{"a"})

	s.Splice("items", 0, 0)
	if len(obs.seen) != 0 {
		t.Errorf("expected no splice record for a no-op splice, got %+v", obs.seen)
	}
}

func TestSpliceByValueRemovesFirstMatch(t *testing.T) {
	s, _ := newArrayStore(t, []any{"a", "b", "a"})

	idx := s.SpliceByValue("items", "a")
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	arr := s.buffer.Data["items"].(*[]any)
	if len(*arr) != 2 || (*arr)[0] != "b" || (*arr)[1] != "a" {
		t.Errorf("expected [b a] remaining, got %v", *arr)
	}
}

func TestSpliceByValueMissingReturnsNegativeOne(t *testing.T) {
	s, _ := newArrayStore(t, []any{"a"})
	if idx := s.SpliceByValue("items", "z"); idx != -1 {
		t.Errorf("expected -1 for a missing value, got %d", idx)
	}
}

func TestNotifySplicesNullsIndexSplicesAfterFlush(t *testing.T) {
	s, obs := newArrayStore(t, []any{"a"})

	s.Push("items", "b")

	if len(obs.seen) != 1 {
		t.Fatalf("expected the observer to see exactly one splice, got %d", len(obs.seen))
	}
	rec, ok := s.buffer.Data["items.splices"].(map[string]any)
	if !ok {
		t.Fatalf("expected an items.splices record to remain in the cache")
	}
	if rec["indexSplices"] != nil {
		t.Errorf("expected indexSplices to be nulled once the triggering flush settled, got %v", rec["indexSplices"])
	}
}

func TestPushOnNonArrayPathIsNoop(t *testing.T) {
	s, err := New(Config{Properties: map[string]Property{"name": {Type: "string"}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Ready()

	if n := s.Push("name", "x"); n != 0 {
		t.Errorf("expected 0 from pushing onto a non-array path, got %d", n)
	}
}
