// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// PersistenceError reports a backend failure while reading or writing a
// collection.
type PersistenceError struct {
	Op         string // "load", "save" or "delete"
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches another PersistenceError with the same Op and Collection.
// Empty fields on the target match anything.
func (e *PersistenceError) Is(target error) bool {
	t, ok := target.(*PersistenceError)
	if !ok {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Collection == "" || t.Collection == e.Collection)
}

// ErrPersistence matches any PersistenceError via errors.Is.
var ErrPersistence = &PersistenceError{}

// ValidationError reports import data that failed validation. Nothing is
// written when it is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid import data: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid import data (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ErrInvalidData matches any ValidationError via errors.Is.
var ErrInvalidData = &ValidationError{}
