// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
)

// =============================================================================
// DOMAINS
// =============================================================================

// Domain names a slice of state with its own loading and error status.
type Domain string

const (
	DomainFiles     Domain = "files"
	DomainCourses   Domain = "courses"
	DomainMaterials Domain = "materials"
	DomainSettings  Domain = "settings"
)

// Status is the loading/error status of one domain.
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// CollectionState is a loaded collection plus its status. Version increases
// on every fulfilled change so derived data can be cached per version.
type CollectionState[T any] struct {
	Status
	Items   []T `json:"items"`
	Version int `json:"version"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// NotificationType is the severity of a notification.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyWarning NotificationType = "warning"
	NotifyInfo    NotificationType = "info"
)

// MaxNotifications caps the notification list; the oldest entries go first.
const MaxNotifications = 50

// Notification is a transient message for the user. A zero Duration never
// expires.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Duration  time.Duration    `json:"duration,omitempty"`
}

// Expired reports whether the notification's duration has elapsed at now.
func (n Notification) Expired(now time.Time) bool {
	return n.Duration > 0 && now.Sub(n.Timestamp) >= n.Duration
}

// =============================================================================
// UI STATE
// =============================================================================

// Connection is the last known reachability of the model service.
type Connection struct {
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	Models    []string  `json:"models,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// UIState is session-scoped UI state plus the persisted preferences.
type UIState struct {
	Modals        map[string]bool     `json:"modals,omitempty"`
	Loading       map[string]bool     `json:"loading,omitempty"`
	Connection    Connection          `json:"connection"`
	Preferences   model.UIPreferences `json:"preferences"`
	Notifications []Notification      `json:"notifications"`
}

// =============================================================================
// ACTIVITY
// =============================================================================

// ActivityStats aggregates every recorded model call of the session.
type ActivityStats struct {
	TotalRequests       int           `json:"totalRequests"`
	SuccessfulRequests  int           `json:"successfulRequests"`
	FailedRequests      int           `json:"failedRequests"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
}

// SuccessRate returns the fraction of successful requests, 0 when none.
func (a ActivityStats) SuccessRate() float64 {
	if a.TotalRequests == 0 {
		return 0
	}
	return float64(a.SuccessfulRequests) / float64(a.TotalRequests)
}

// =============================================================================
// STATE
// =============================================================================

// State is the whole application state. Values reachable from a State are
// never mutated after it is published; Reduce builds new slices and maps.
type State struct {
	Files     CollectionState[model.FileRecord]    `json:"files"`
	Courses   CollectionState[model.Course]        `json:"courses"`
	Materials CollectionState[model.StudyMaterial] `json:"materials"`

	Settings       config.Settings `json:"settings"`
	SettingsStatus Status          `json:"settingsStatus"`

	UI       UIState       `json:"ui"`
	Activity ActivityStats `json:"activity"`
}

// InitialState is the state before anything is loaded.
func InitialState() State {
	return State{
		Files:     CollectionState[model.FileRecord]{Items: []model.FileRecord{}},
		Courses:   CollectionState[model.Course]{Items: []model.Course{}},
		Materials: CollectionState[model.StudyMaterial]{Items: []model.StudyMaterial{}},
		Settings:  config.DefaultSettings(),
		UI: UIState{
			Preferences:   model.DefaultUIPreferences(),
			Notifications: []Notification{},
		},
	}
}

// ActiveNotifications returns the notifications that have not expired at
// now, oldest first.
func (s State) ActiveNotifications(now time.Time) []Notification {
	out := make([]Notification, 0, len(s.UI.Notifications))
	for _, n := range s.UI.Notifications {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out
}

// CourseName resolves a course id against the loaded courses.
func (s State) CourseName(id string) string {
	return model.CourseName(s.Courses.Items, id)
}

// Status returns the status of a domain.
func (s State) Status(d Domain) Status {
	switch d {
	case DomainFiles:
		return s.Files.Status
	case DomainCourses:
		return s.Courses.Status
	case DomainMaterials:
		return s.Materials.Status
	case DomainSettings:
		return s.SettingsStatus
	}
	return Status{}
}
