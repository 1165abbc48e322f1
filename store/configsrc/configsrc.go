// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package configsrc loads a store.Config's property schema from a YAML
// file and can watch that file for edits, feeding a hot-reload callback.
// It never carries the Methods map (a YAML document cannot describe a Go
// function value); a caller merges the loaded Properties into a base
// Config that already supplies Methods.
package configsrc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/reactivestore/store"
)

// Document is the on-disk shape of a property schema.
type Document struct {
	Properties map[string]PropertyDoc `yaml:"properties"`
	// AsyncEffects mirrors store.Config.AsyncEffects.
	AsyncEffects bool `yaml:"asyncEffects,omitempty"`
}

// PropertyDoc mirrors store.Property field-for-field so a schema can be
// authored in YAML without exposing store's Go struct tags directly.
type PropertyDoc struct {
	Type     string `yaml:"type,omitempty"`
	ReadOnly bool   `yaml:"readOnly,omitempty"`
	Computed string `yaml:"computed,omitempty"`
	Observer string `yaml:"observer,omitempty"`
}

// Load reads path and returns the Properties/AsyncEffects portion of a
// store.Config. The caller is responsible for attaching Methods.
func Load(path string) (store.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Config{}, fmt.Errorf("configsrc: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a store.Config.
func Parse(data []byte) (store.Config, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return store.Config{}, fmt.Errorf("configsrc: parsing schema: %w", err)
	}

	cfg := store.Config{
		Properties:   make(map[string]store.Property, len(doc.Properties)),
		AsyncEffects: doc.AsyncEffects,
	}
	for name, p := range doc.Properties {
		cfg.Properties[name] = store.Property{
			Type:     p.Type,
			ReadOnly: p.ReadOnly,
			Computed: p.Computed,
			Observer: p.Observer,
		}
	}
	return cfg, nil
}

// Merge overlays schema's Properties and AsyncEffects onto base, returning
// a new Config that keeps base's Methods and Logger untouched. Properties
// present in both are replaced wholesale by schema's declaration, matching
// a config reload's "the file is now authoritative for its own keys" intent.
func Merge(base store.Config, schema store.Config) store.Config {
	merged := base
	merged.AsyncEffects = schema.AsyncEffects
	merged.Properties = make(map[string]store.Property, len(base.Properties)+len(schema.Properties))
	for k, v := range base.Properties {
		merged.Properties[k] = v
	}
	for k, v := range schema.Properties {
		merged.Properties[k] = v
	}
	return merged
}
