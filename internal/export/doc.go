// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders study packs: the summaries and study material of
// one course, or of the whole library, as a single readable document.
//
// # Formats
//
//   - Markdown: YAML front matter, one section per file and per material
//   - HTML: self-contained page with embedded CSS and a light/dark theme
//
// # Usage
//
//	pack, err := export.NewPack(st.State(), courseID, time.Now())
//	exp, err := export.ForFormat("markdown", nil)
//	data, err := exp.Export(pack)
//
// Machine-readable backups are handled by the storage package; packs are
// for reading and printing.
package export
