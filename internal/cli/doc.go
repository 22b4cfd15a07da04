// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the arcano command line.
//
// Every command opens an App (storage, state store, Ollama client and
// hooks) for its own run and closes it afterwards. Commands are grouped as:
//
//	Study:    summarize, material, quiz, ask, chat, topic, analyze
//	Library:  import, files, courses, stats, export, pack, import-data, watch
//	System:   serve, models, config, doctor
//
// Study commands accept a stored file id, a document path or "-" for
// stdin. With --json every command prints a JSONResponse envelope instead
// of styled text.
package cli
