// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the in-process application state: files, courses,
// study materials, settings, UI state and the model activity log.
//
// State changes only through Reduce, a pure function of the current state
// and an Action. Store serializes dispatches, notifies subscribers and runs
// the asynchronous operations ("thunks") that talk to persistence. Each
// thunk dispatches a pending action, calls the persistence layer, and then
// dispatches either the fulfilled or the rejected action.
//
// Only files, settings and UI preferences are restored by Hydrate. The
// activity log and transient UI state last for one process.
package store
