// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small string and file helpers shared across arcano.
//
//   - AtomicWrite, AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateRunes, TruncateWidth, PadWidth: display helpers
//   - Normalize, CollapseBlankLines: text cleanup for model input and output
package util
