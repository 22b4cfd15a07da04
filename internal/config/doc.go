// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and the user settings model
// for arcano.
//
// Two kinds of configuration live here:
//
//   - Config: process configuration (Ollama URL, storage backend, HTTP
//     address, logging). Loaded from ~/.arcano/config.toml, falling back to
//     ~/.arcano/config.json, then built-in defaults. ARCANO_* environment
//     variables override file values.
//   - Settings: user preferences (generation parameters, file limits, UI,
//     performance and privacy toggles). Persisted through the storage
//     layer and clamped to their documented ranges on every write.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("config: %v (using defaults)", err)
//	}
//
//	s := config.DefaultSettings()
//	s.SetTemperature(5) // stored as 2
package config
