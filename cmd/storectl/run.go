// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/reactivestore/store"
	"github.com/AleutianAI/reactivestore/store/configsrc"
)

// Script is a scripted batch of mutations: each Steps entry is applied to
// the store as one SetProperties call, and the resulting property values
// are recorded before moving to the next step.
type Script struct {
	Steps []map[string]any `yaml:"steps"`
}

// StepResult is one entry of a run's JSON trace: the properties written
// in a step and the store's settled state immediately afterward.
type StepResult struct {
	Applied map[string]any `json:"applied"`
	State   map[string]any `json:"state"`
}

var scriptPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply a scripted batch of mutations and print the settled state after each step",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&scriptPath, "script", "", "path to a YAML mutation script")
	_ = runCmd.MarkFlagRequired("script")
}

func runRun(cmd *cobra.Command, args []string) error {
	if schemaPath == "" {
		return fmt.Errorf("storectl run: --schema is required")
	}

	cfg, err := configsrc.Load(schemaPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("storectl run: reading script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return fmt.Errorf("storectl run: parsing script: %w", err)
	}

	s, err := store.New(cfg)
	if err != nil {
		return fmt.Errorf("storectl run: building store: %w", err)
	}
	s.Ready()

	results := make([]StepResult, 0, len(script.Steps))
	for _, step := range script.Steps {
		s.SetProperties(step)
		if err := s.DrainAsync(); err != nil {
			return fmt.Errorf("storectl run: settling step: %w", err)
		}
		results = append(results, StepResult{
			Applied: step,
			State:   snapshot(s, cfg),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func snapshot(s *store.Store, cfg store.Config) map[string]any {
	out := make(map[string]any, len(cfg.Properties))
	for name := range cfg.Properties {
		out[name] = s.Get(name)
	}
	return out
}
