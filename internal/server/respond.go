// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/des-work/Arcano-Desk-sub001/internal/export"
	"github.com/des-work/Arcano-Desk-sub001/internal/extract"
	"github.com/des-work/Arcano-Desk-sub001/internal/hooks"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/validation"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure. Fallback carries the text a UI can
// show in place of a generated answer.
type ErrorDetail struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	Fallback string `json:"fallback,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Message: message, Code: status}})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var ce *ollama.ClientError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &ce):
		if ce.Type == ollama.ErrTypeModelNotFound {
			return http.StatusNotFound
		}
		return http.StatusServiceUnavailable
	case errors.As(err, &tooBig), errors.Is(err, extract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrInvalidData), errors.Is(err, extract.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, hooks.ErrExtensionNotAllowed), errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, hooks.ErrFileNotFound), errors.Is(err, export.ErrUnknownCourse), errors.Is(err, export.ErrEmptyPack):
		return http.StatusNotFound
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrPersistence):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeFailure writes err with its mapped status. Model errors use the
// short user-facing message; storage internals are not exposed.
func writeFailure(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	msg := err.Error()
	var ce *ollama.ClientError
	switch {
	case errors.As(err, &ce), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		msg = hooks.UserMessage(err)
	case errors.Is(err, storage.ErrPersistence):
		var pe *storage.PersistenceError
		if errors.As(err, &pe) {
			msg = "failed to " + pe.Op + " " + pe.Collection
		}
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Message: msg, Code: status, Fallback: fallback}})
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if problems := validation.Struct(v); len(problems) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(problems, "; "))
		return false
	}
	return true
}
