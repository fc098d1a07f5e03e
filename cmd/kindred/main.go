// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Kindred/cmd/kindred/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kindred",
	Short: "Kindred family-tree service",
	Long: `Kindred is a family-tree social service: build your tree, discover
other users whose trees plausibly overlap yours, and konnect with them.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path (default ~/.kindred/kindred.yaml)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := config.Load(configPath); err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}
	rootCmd.AddCommand(serveCmd)
}
