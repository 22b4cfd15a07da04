// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for an entity.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// FILE RECORD
// =============================================================================

// FileType is the kind of document a file record was imported from.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypePPTX FileType = "pptx"
	FileTypeTXT  FileType = "txt"
)

// FileTypes lists the supported document kinds.
var FileTypes = []FileType{FileTypePDF, FileTypeDOCX, FileTypePPTX, FileTypeTXT}

// Valid reports whether t is a supported document kind.
func (t FileType) Valid() bool {
	for _, ft := range FileTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// FileMetadata holds facts extracted from a file's text.
type FileMetadata struct {
	KeyTerms  []string `json:"keyTerms,omitempty" yaml:"keyTerms,omitempty"`
	Dates     []string `json:"dates,omitempty" yaml:"dates,omitempty"`
	Formulas  []string `json:"formulas,omitempty" yaml:"formulas,omitempty"`
	WordCount int      `json:"wordCount,omitempty" yaml:"wordCount,omitempty"`
}

// FileRecord is an imported document. CourseID may reference a course that
// no longer exists; readers show such files as belonging to an unknown course.
type FileRecord struct {
	ID            string        `json:"id" yaml:"id" validate:"required"`
	Name          string        `json:"name" yaml:"name" validate:"required"`
	Type          FileType      `json:"type" yaml:"type" validate:"required,filetype"`
	Content       string        `json:"content" yaml:"content"`
	CourseID      string        `json:"courseId" yaml:"courseId"`
	UploadedAt    time.Time     `json:"uploadedAt" yaml:"uploadedAt" validate:"required"`
	LastProcessed *time.Time    `json:"lastProcessed,omitempty" yaml:"lastProcessed,omitempty"`
	Summary       string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Metadata      *FileMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// LastTouched returns LastProcessed when set, otherwise UploadedAt.
func (f FileRecord) LastTouched() time.Time {
	if f.LastProcessed != nil {
		return *f.LastProcessed
	}
	return f.UploadedAt
}

// =============================================================================
// COURSE
// =============================================================================

// UnknownCourseName is shown for files whose course has been removed.
const UnknownCourseName = "Unknown Course"

// Course groups files and study materials.
type Course struct {
	ID        string    `json:"id" yaml:"id" validate:"required"`
	Name      string    `json:"name" yaml:"name" validate:"required"`
	Code      string    `json:"code" yaml:"code"`
	Color     string    `json:"color" yaml:"color"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" validate:"required"`
}

// CourseName resolves a course id against courses, returning
// UnknownCourseName for dangling references.
func CourseName(courses []Course, id string) string {
	for _, c := range courses {
		if c.ID == id {
			return c.Name
		}
	}
	return UnknownCourseName
}

// =============================================================================
// STUDY MATERIAL
// =============================================================================

// MaterialType is the kind of generated study material.
type MaterialType string

const (
	MaterialFlashcards MaterialType = "flashcards"
	MaterialQuestions  MaterialType = "questions"
	MaterialNotes      MaterialType = "notes"
	MaterialSummary    MaterialType = "summary"
)

// Valid reports whether t is a known material kind.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialFlashcards, MaterialQuestions, MaterialNotes, MaterialSummary:
		return true
	}
	return false
}

// StudyMaterial is generated content tied to a course and optionally to the
// file it was generated from.
type StudyMaterial struct {
	ID        string       `json:"id" yaml:"id" validate:"required"`
	Title     string       `json:"title" yaml:"title" validate:"required"`
	Type      MaterialType `json:"type" yaml:"type" validate:"required,materialtype"`
	Content   string       `json:"content" yaml:"content"`
	CourseID  string       `json:"courseId" yaml:"courseId"`
	CreatedAt time.Time    `json:"createdAt" yaml:"createdAt" validate:"required"`
	FileID    string       `json:"fileId,omitempty" yaml:"fileId,omitempty"`
}

// =============================================================================
// MODEL ACTIVITY
// =============================================================================

// ActivityType is the kind of model call an activity record describes.
type ActivityType string

const (
	ActivitySummary       ActivityType = "summary"
	ActivityStudyMaterial ActivityType = "study_material"
	ActivityQuestion      ActivityType = "question"
	ActivityTopic         ActivityType = "topic"
)

// ModelActivityRecord is one entry of the in-session model activity log.
type ModelActivityRecord struct {
	ID            string        `json:"id"`
	Type          ActivityType  `json:"type"`
	Model         string        `json:"model"`
	ContentLength int           `json:"contentLength"`
	Success       bool          `json:"success"`
	ResponseTime  time.Duration `json:"responseTime"`
	Timestamp     time.Time     `json:"timestamp"`
	Error         string        `json:"error,omitempty"`
}

// =============================================================================
// UI PREFERENCES
// =============================================================================

// UIPreferences is the persisted part of UI state. Everything else about
// the UI (modals, notifications, loading flags) lasts for one session.
type UIPreferences struct {
	CurrentView      string `json:"currentView" yaml:"currentView"`
	SidebarCollapsed bool   `json:"sidebarCollapsed" yaml:"sidebarCollapsed"`
	LastCourseID     string `json:"lastCourseId,omitempty" yaml:"lastCourseId,omitempty"`
}

// DefaultUIPreferences returns the preferences used on first launch.
func DefaultUIPreferences() UIPreferences {
	return UIPreferences{CurrentView: "dashboard"}
}
