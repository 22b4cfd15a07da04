// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists files, courses, study materials, settings and UI
// preferences as JSON documents in a key-value backend.
//
// Each collection lives under one key, "<namespace>-<collection>". Backends
// are interchangeable: SQLite (default), Redis, a single JSON file, or
// memory for tests. Writes that touch more than one collection, such as a
// course delete or a data import, go through Backend.Batch and either land
// together or not at all.
//
// Reads are served from a short-lived in-process cache that every write
// invalidates.
package storage
