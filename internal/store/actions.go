// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
)

// Action is a state change request handled by Reduce.
type Action interface {
	actionName() string
}

// =============================================================================
// ASYNC PHASES
// =============================================================================

// Pending marks a domain as loading and clears its previous error.
type Pending struct{ Domain Domain }

// Rejected clears a domain's loading flag and records the error.
type Rejected struct {
	Domain Domain
	Err    string
}

// =============================================================================
// FULFILLED
// =============================================================================

type (
	FilesLoaded struct{ Files []model.FileRecord }
	FileSaved   struct{ File model.FileRecord }
	FileDeleted struct{ ID string }

	CoursesLoaded struct{ Courses []model.Course }
	CourseSaved   struct{ Course model.Course }
	// CourseDeleted also drops the course's files and materials.
	CourseDeleted struct{ ID string }

	MaterialsLoaded struct{ Materials []model.StudyMaterial }
	MaterialSaved   struct{ Material model.StudyMaterial }
	MaterialDeleted struct{ ID string }

	SettingsLoaded struct{ Settings config.Settings }
)

// =============================================================================
// UI
// =============================================================================

type (
	PreferencesChanged struct{ Preferences model.UIPreferences }
	ViewChanged        struct{ View string }
	ModalToggled       struct {
		Name string
		Open bool
	}
	LoadingSet struct {
		Key     string
		Loading bool
	}
	ConnectionChanged   struct{ Connection Connection }
	NotificationAdded   struct{ Notification Notification }
	NotificationRemoved struct{ ID string }
	NotificationsClear  struct{}
)

// ActivityRecorded folds one model call into the activity aggregates.
type ActivityRecorded struct{ Record model.ModelActivityRecord }

func (Pending) actionName() string             { return "pending" }
func (Rejected) actionName() string            { return "rejected" }
func (FilesLoaded) actionName() string         { return "files/loaded" }
func (FileSaved) actionName() string           { return "files/saved" }
func (FileDeleted) actionName() string         { return "files/deleted" }
func (CoursesLoaded) actionName() string       { return "courses/loaded" }
func (CourseSaved) actionName() string         { return "courses/saved" }
func (CourseDeleted) actionName() string       { return "courses/deleted" }
func (MaterialsLoaded) actionName() string     { return "materials/loaded" }
func (MaterialSaved) actionName() string       { return "materials/saved" }
func (MaterialDeleted) actionName() string     { return "materials/deleted" }
func (SettingsLoaded) actionName() string      { return "settings/loaded" }
func (PreferencesChanged) actionName() string  { return "ui/preferences" }
func (ViewChanged) actionName() string         { return "ui/view" }
func (ModalToggled) actionName() string        { return "ui/modal" }
func (LoadingSet) actionName() string          { return "ui/loading" }
func (ConnectionChanged) actionName() string   { return "ui/connection" }
func (NotificationAdded) actionName() string   { return "ui/notification/add" }
func (NotificationRemoved) actionName() string { return "ui/notification/remove" }
func (NotificationsClear) actionName() string  { return "ui/notification/clear" }
func (ActivityRecorded) actionName() string    { return "activity/recorded" }

// ActionName returns a short name for logging.
func ActionName(a Action) string { return a.actionName() }
