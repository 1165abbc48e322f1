// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package configsrc

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/reactivestore/store"
)

const sampleSchema = `
properties:
  firstName:
    type: string
  lastName:
    type: string
  fullName:
    computed: "_computeFullName(firstName, lastName)"
  isValid:
    readOnly: true
`

func TestParseBuildsPropertiesFromYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	require.Contains(t, cfg.Properties, "firstName")
	require.Contains(t, cfg.Properties, "fullName")

	assert.Equal(t, "_computeFullName(firstName, lastName)", cfg.Properties["fullName"].Computed)
	assert.True(t, cfg.Properties["isValid"].ReadOnly)
	assert.False(t, cfg.Properties["firstName"].ReadOnly)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("properties: [this is not a map"))
	assert.Error(t, err)
}

func TestLoadReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchema), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.Properties, "lastName")
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMergeOverlaysSchemaOntoBaseKeepingMethods(t *testing.T) {
	fn := func() {}
	base, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)
	base.Methods = map[string]any{"_computeFullName": fn}

	schema, err := Parse([]byte(`
properties:
  firstName:
    type: string
  nickname:
    type: string
`))
	require.NoError(t, err)

	merged := Merge(base, schema)
	assert.Equal(t, reflect.ValueOf(fn).Pointer(), reflect.ValueOf(merged.Methods["_computeFullName"]).Pointer())
	assert.Contains(t, merged.Properties, "nickname")
	assert.Contains(t, merged.Properties, "fullName", "keys only in base survive a merge")
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchema), 0o644))

	reloaded := make(chan store.Config, 1)
	w, err := NewWatcher(path, func(cfg store.Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}, WatcherOptions{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(sampleSchema+"\n  nickname:\n    type: string\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Contains(t, cfg.Properties, "nickname")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
