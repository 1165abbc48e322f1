// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package path

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain string", "a.b.c", "a.b.c"},
		{"array of segments", []any{"a", 2, "c"}, "a.2.c"},
		{"array with embedded dots preserved", []any{"a.b", 2, "c"}, "a.b.2.c"},
		{"single segment", []any{"a"}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoot(t *testing.T) {
	if Root("a.b.c") != "a" {
		t.Errorf("Root(a.b.c) should be a")
	}
	if Root("a") != "a" {
		t.Errorf("Root(a) should be a")
	}
}

func TestIsDeep(t *testing.T) {
	if IsDeep("a") {
		t.Errorf("a should not be deep")
	}
	if !IsDeep("a.b") {
		t.Errorf("a.b should be deep")
	}
}

func TestIsDescendant(t *testing.T) {
	cases := []struct {
		parent, candidate string
		want              bool
	}{
		{"a", "a", true},
		{"a", "a.b", true},
		{"a", "a.b.c", true},
		{"a", "ab", false},
		{"a.b", "a.b", true},
		{"a.b", "a", false},
	}
	for _, c := range cases {
		if got := IsDescendant(c.parent, c.candidate); got != c.want {
			t.Errorf("IsDescendant(%q, %q) = %v, want %v", c.parent, c.candidate, got, c.want)
		}
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		effectPath, concretePath string
		want                     bool
	}{
		{"a", "a", true},
		{"a", "a.b", true},
		{"a.b", "a", false},
		{"a.*", "a.b", true},
		{"a.*", "a", true},
		{"a.*", "a.b.c", true},
		{"a.*", "z", false},
		{"a.b.*", "a.c", false},
	}
	for _, c := range cases {
		if got := Matches(c.effectPath, c.concretePath); got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.effectPath, c.concretePath, got, c.want)
		}
	}
}

func TestTranslate(t *testing.T) {
	if got := Translate("x", "y", "x.sub.deep"); got != "y.sub.deep" {
		t.Errorf("Translate = %q", got)
	}
	if got := Translate("x", "y", "x"); got != "y" {
		t.Errorf("Translate exact = %q", got)
	}
	if got := Translate("x", "y", "z.sub"); got != "z.sub" {
		t.Errorf("Translate non-matching should pass through, got %q", got)
	}
}

func TestGetSetObjects(t *testing.T) {
	root := map[string]any{
		"a": map[string]any{
			"b": "value",
		},
	}
	if got := Get(root, "a.b", nil); got != "value" {
		t.Errorf("Get = %v", got)
	}
	if got := Get(root, "a.missing.c", nil); got != nil {
		t.Errorf("Get on missing segment should be nil, got %v", got)
	}

	var normalized string
	Get(root, "a.b", &normalized)
	if normalized != "a.b" {
		t.Errorf("outNormalized = %q", normalized)
	}

	got := Set(root, "a.b", "updated")
	if got != "a.b" {
		t.Errorf("Set should return normalized path, got %q", got)
	}
	if root["a"].(map[string]any)["b"] != "updated" {
		t.Errorf("Set did not mutate tree")
	}

	if got := Set(root, "a.missing.c", "x"); got != "" {
		t.Errorf("Set through missing intermediate should no-op, got %q", got)
	}
}

func TestGetSetArrays(t *testing.T) {
	arr := []any{1, 2, 3}
	root := map[string]any{"tourists": &arr}

	if got := Get(root, "tourists.1", nil); got != 2 {
		t.Errorf("Get array index = %v", got)
	}

	Set(root, "tourists.1", 42)
	if arr[1] != 42 {
		t.Errorf("Set array index did not mutate, arr = %v", arr)
	}

	// sparse-index growth: writing past the end fills with nil.
	Set(root, "tourists.5", "far")
	if len(arr) != 6 || arr[5] != "far" {
		t.Errorf("sparse growth failed, arr = %v", arr)
	}
	if arr[3] != nil || arr[4] != nil {
		t.Errorf("gap should be nil-filled, arr = %v", arr)
	}
}

func TestIsWildcardAndBase(t *testing.T) {
	if !IsWildcard("a.b.*") {
		t.Errorf("a.b.* should be a wildcard")
	}
	if IsWildcard("a.b") {
		t.Errorf("a.b should not be a wildcard")
	}
	if WildcardBase("a.b.*") != "a.b" {
		t.Errorf("WildcardBase = %q", WildcardBase("a.b.*"))
	}
}
