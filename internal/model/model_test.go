// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestCatalog_Order(t *testing.T) {
	want := []string{"llama3.2:1b", "llama3.2:3b", "mistral:7b", "llama3.1:8b", "qwen2.5:14b", "llama3.1:70b"}
	got := ModelNames()
	if len(got) != len(want) {
		t.Fatalf("ModelNames() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ModelNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetModelInfo(t *testing.T) {
	tests := []struct {
		name       string
		lookup     string
		wantFound  bool
		wantWindow int
	}{
		{"exact tag", "llama3.2:1b", true, 4096},
		{"case insensitive", "MISTRAL:7B", true, 32768},
		{"display name", "Qwen 2.5 14B", true, 32768},
		{"unknown", "gpt-4", false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, ok := GetModelInfo(tc.lookup)
			if ok != tc.wantFound {
				t.Fatalf("GetModelInfo(%q) found = %v, want %v", tc.lookup, ok, tc.wantFound)
			}
			if info.ContextWindow != tc.wantWindow {
				t.Errorf("ContextWindow = %d, want %d", info.ContextWindow, tc.wantWindow)
			}
		})
	}
}

func TestModelInfo_ContextString(t *testing.T) {
	info, _ := GetModelInfo("llama3.1:8b")
	if got := info.ContextString(); got != "128K tokens" {
		t.Errorf("ContextString() = %q, want %q", got, "128K tokens")
	}
}

// =============================================================================
// ENTITY TESTS
// =============================================================================

func TestFileType_Valid(t *testing.T) {
	for _, ft := range FileTypes {
		if !ft.Valid() {
			t.Errorf("%q.Valid() = false", ft)
		}
	}
	if FileType("exe").Valid() {
		t.Error("exe should not be a valid file type")
	}
}

func TestFileRecord_LastTouched(t *testing.T) {
	uploaded := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := FileRecord{UploadedAt: uploaded}
	if !f.LastTouched().Equal(uploaded) {
		t.Errorf("LastTouched() = %v, want %v", f.LastTouched(), uploaded)
	}

	processed := uploaded.Add(time.Hour)
	f.LastProcessed = &processed
	if !f.LastTouched().Equal(processed) {
		t.Errorf("LastTouched() = %v, want %v", f.LastTouched(), processed)
	}
}

func TestCourseName_Dangling(t *testing.T) {
	courses := []Course{{ID: "c1", Name: "Physics"}}
	if got := CourseName(courses, "c1"); got != "Physics" {
		t.Errorf("CourseName(c1) = %q", got)
	}
	if got := CourseName(courses, "gone"); got != UnknownCourseName {
		t.Errorf("CourseName(gone) = %q, want %q", got, UnknownCourseName)
	}
}

func TestFileRecord_JSONDates(t *testing.T) {
	// Legacy data stores dates as ISO strings with milliseconds.
	raw := `{"id":"f1","name":"a.txt","type":"txt","content":"hi","courseId":"c1",
		"uploadedAt":"2024-03-01T10:20:30.123Z","summary":"2024-03-01T10:20:30.123Z"}`

	var f FileRecord
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if f.UploadedAt.Year() != 2024 || f.UploadedAt.Nanosecond() != 123000000 {
		t.Errorf("UploadedAt = %v", f.UploadedAt)
	}
	// Non-date fields that merely look like dates stay strings.
	if !strings.HasPrefix(f.Summary, "2024-03-01T") {
		t.Errorf("Summary = %q, want untouched string", f.Summary)
	}
	if f.LastProcessed != nil {
		t.Errorf("LastProcessed = %v, want nil", f.LastProcessed)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
