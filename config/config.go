// Copyright 2024 The archtape Authors
// This file is part of the archtape library.
//
// The archtape library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The archtape library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the archtape library. If not, see <http://www.gnu.org/licenses/>.

// Package config loads the engine's static startup configuration: where
// tape folders live, pre-population policy, and logging.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the process-wide configuration for opening a database manager
// and, optionally, a composite-stream archive (spec.md §4.3/§4.4).
type Config struct {
	// TapeDir holds one tape file per entity type, opened via
	// manager.OpenFolder.
	TapeDir string `toml:"tape_dir"`
	// StreamArchive is the path to the composite-stream archive, if any.
	StreamArchive string `toml:"stream_archive,omitempty"`
	// HashMap is the path to the hash->location map consumed by the
	// stream packer at build time.
	HashMap string `toml:"hash_map,omitempty"`
	// Populate requests eager OS-level page population on tape open
	// (spec.md §4.2).
	Populate bool `toml:"populate"`
	// BatchSize overrides stream.DefaultBatchSize (spec.md §3.4).
	BatchSize int `toml:"batch_size,omitempty"`
	// LogFile names a log file for log.RotatingFileHandler. The archtape
	// CLI does not read it and always logs to stderr.
	LogFile string `toml:"log_file,omitempty"`
}

// Load parses a TOML configuration file at path.
func Load(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: unrecognized keys: %v", undecoded)
	}
	if cfg.TapeDir == "" {
		return Config{}, fmt.Errorf("config: tape_dir is required")
	}
	return cfg, nil
}
