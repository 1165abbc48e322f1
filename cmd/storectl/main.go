// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command storectl loads a property schema, replays a scripted batch of
// mutations against it, and either prints the resulting flush trace as
// JSON or, on an interactive terminal, drives a live view of each flush
// cycle.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var schemaPath string

var rootCmd = &cobra.Command{
	Use:   "storectl",
	Short: "Drive a reactive property store from a schema and a mutation script",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "path to a YAML property schema")
	rootCmd.AddCommand(runCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
	os.Exit(0)
}
