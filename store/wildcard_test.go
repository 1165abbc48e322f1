// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import "testing"

func recordWildcardArg(w any) any {
	wa, ok := w.(WildcardArg)
	if !ok {
		return nil
	}
	return wa
}

// newWildcardStore backs a fixture where a computed property takes a
// wildcard argument over a plain object root: writing any concrete key
// beneath the root should marshal a WildcardArg naming that exact key,
// not just the wildcard's own base.
func newWildcardStore(t *testing.T) *Store {
	t.Helper()
	cfg := Config{
		Properties: map[string]Property{
			"items":       {Type: "object"},
			"lastTouched": {Type: "any", Computed: "_recordWildcardArg(items.*)"},
		},
		Methods: map[string]any{
			"_recordWildcardArg": recordWildcardArg,
		},
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Ready()
	return s
}

func TestWildcardArgReflectsConcreteTriggerPath(t *testing.T) {
	s := newWildcardStore(t)
	s.Set("items", map[string]any{})

	s.Set("items.a", 5.0)

	wa, ok := s.Get("lastTouched").(WildcardArg)
	if !ok {
		t.Fatalf("lastTouched = %#v, want a WildcardArg", s.Get("lastTouched"))
	}
	if wa.Path != "items.a" {
		t.Errorf("WildcardArg.Path = %q, want %q", wa.Path, "items.a")
	}
	if wa.Value != 5.0 {
		t.Errorf("WildcardArg.Value = %v, want 5.0", wa.Value)
	}
	if wa.Base != "items" {
		t.Errorf("WildcardArg.Base = %q, want %q", wa.Base, "items")
	}

	s.Set("items.b", 9.0)

	wa, ok = s.Get("lastTouched").(WildcardArg)
	if !ok {
		t.Fatalf("lastTouched = %#v, want a WildcardArg", s.Get("lastTouched"))
	}
	if wa.Path != "items.b" {
		t.Errorf("WildcardArg.Path = %q, want %q", wa.Path, "items.b")
	}
	if wa.Value != 9.0 {
		t.Errorf("WildcardArg.Value = %v, want 9.0", wa.Value)
	}
}
