// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, file := New(Config{Level: LevelInfo, Service: "widgets", LogDir: dir, Quiet: true})
	if file == nil {
		t.Fatal("expected a non-nil file handle when LogDir is set")
	}
	defer file.Close()

	logger.Info("hello", "key", "value")
	file.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "widgets_") {
		t.Errorf("log file name %q does not carry the service prefix", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing expected record, got %q", data)
	}
}

func TestExpandHomeExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got := expandHome("~/logs")
	want := filepath.Join(home, "logs")
	if got != want {
		t.Errorf("expandHome(~/logs) = %q, want %q", got, want)
	}
}

func TestExpandHomeLeavesAbsolutePathAlone(t *testing.T) {
	if got := expandHome("/var/log/reactivestore"); got != "/var/log/reactivestore" {
		t.Errorf("expandHome should not touch an absolute path, got %q", got)
	}
}

func TestDefaultReturnsUsableLogger(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
