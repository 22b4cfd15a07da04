// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hooks binds the model client to the store.
//
// Every generation goes through the same wrapper: it opens a trace span,
// waits for a slot under the configured concurrency limit, times the call,
// and appends a model activity record whether the call worked or not.
// Failures come back as fallback text together with the error, and also
// raise a notification and update the connection banner.
//
// The document operations (import, summarize a stored file, generate study
// material from a file, watch an inbox directory) are built on top of the
// same wrappers.
package hooks
