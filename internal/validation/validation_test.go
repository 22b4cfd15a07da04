// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package validation

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
)

func TestStruct_FileRecord(t *testing.T) {
	valid := model.FileRecord{ID: "f1", Name: "notes.pdf", Type: model.FileTypePDF, UploadedAt: time.Now()}
	if msgs := Struct(valid); len(msgs) != 0 {
		t.Errorf("valid record: got problems %v", msgs)
	}

	bad := valid
	bad.Type = "exe"
	msgs := Struct(bad)
	if len(msgs) != 1 {
		t.Fatalf("bad type: got %d problems %v, want 1", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], `unsupported file type "exe"`) {
		t.Errorf("bad type message = %q", msgs[0])
	}

	msgs = Struct(model.FileRecord{Type: model.FileTypeTXT})
	for _, want := range []string{"ID is required", "Name is required", "UploadedAt is required"} {
		if !slices.Contains(msgs, want) {
			t.Errorf("missing fields: %v does not contain %q", msgs, want)
		}
	}
}

func TestStruct_StudyMaterial(t *testing.T) {
	m := model.StudyMaterial{ID: "m1", Title: "Cards", Type: "poster", CreatedAt: time.Now()}
	msgs := Struct(m)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "unknown material type") {
		t.Errorf("poster material: got %v", msgs)
	}

	m.Type = model.MaterialFlashcards
	if msgs := Struct(m); len(msgs) != 0 {
		t.Errorf("flashcards material: got problems %v", msgs)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b", "ab"},
		{"line1\nline2\tend", "line1\nline2\tend"},
		{"\x1b[31mred", "[31mred"},
	}
	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
