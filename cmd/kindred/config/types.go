// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
)

type KindredConfig struct {
	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Storage: Badger database location and tuning
	Storage StorageConfig `yaml:"storage"`

	// Discovery: cross-user scan limits
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Logging: level and optional file output
	Logging LoggingConfig `yaml:"logging"`

	// Describer: toggle for the LLM relationship describer
	Describer DescriberConfig `yaml:"describer"`
}

type ServerConfig struct {
	Host string `yaml:"host"` // e.g. 0.0.0.0
	Port int    `yaml:"port"` // e.g. 8080
}

type StorageConfig struct {
	// DataDir is the Badger database directory. Created on first run.
	DataDir string `yaml:"data_dir"`

	// InMemory runs the store without disk persistence. For development
	// and tests only.
	InMemory bool `yaml:"in_memory,omitempty"`

	// GCIntervalMinutes is how often value-log garbage collection runs.
	GCIntervalMinutes int `yaml:"gc_interval_minutes"`
}

type DiscoveryConfig struct {
	// TimeoutSeconds bounds a whole scan.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// FetchConcurrency bounds parallel candidate evaluation.
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

type LoggingConfig struct {
	// Level can be "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Dir enables file logging when set. Supports ~ expansion.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches stderr output to JSON format.
	JSON bool `yaml:"json,omitempty"`
}

type DescriberConfig struct {
	// Enabled turns the LLM relationship describer on. Requires
	// OPENAI_API_KEY in the environment or container secrets.
	Enabled bool `yaml:"enabled"`
}

func DefaultConfig() KindredConfig {
	dataDir := "kindred-data"
	home, err := os.UserHomeDir()
	if err == nil {
		dataDir = filepath.Join(home, ".kindred", "data")
	}
	return KindredConfig{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			GCIntervalMinutes: 10,
		},
		Discovery: DiscoveryConfig{
			TimeoutSeconds:   30,
			FetchConcurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Describer: DescriberConfig{
			Enabled: true,
		},
	}
}
