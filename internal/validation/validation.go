// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validation holds the shared struct validator and the custom tags
// the entity and request types use.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance.
var Validate *validator.Validate

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("filetype", validateFileType); err != nil {
		panic(fmt.Sprintf("failed to register filetype validator: %v", err))
	}
	if err := Validate.RegisterValidation("materialtype", validateMaterialType); err != nil {
		panic(fmt.Sprintf("failed to register materialtype validator: %v", err))
	}
}

func validateFileType(fl validator.FieldLevel) bool {
	return model.FileType(fl.Field().String()).Valid()
}

func validateMaterialType(fl validator.FieldLevel) bool {
	return model.MaterialType(fl.Field().String()).Valid()
}

// Struct validates v and flattens any field errors into readable messages.
// A nil slice means v is valid.
func Struct(v any) []string {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return msgs
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "filetype":
		return fmt.Sprintf("%s has unsupported file type %q", field, fe.Value())
	case "materialtype":
		return fmt.Sprintf("%s has unknown material type %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// SanitizeText trims whitespace and drops control characters other than
// newline and tab.
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
