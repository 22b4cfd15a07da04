// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
)

// Reduce returns the state that results from applying a to s. It never
// modifies s or anything reachable from it.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Pending:
		return setStatus(s, a.Domain, Status{Loading: true})
	case Rejected:
		return setStatus(s, a.Domain, Status{Error: a.Err})

	case FilesLoaded:
		s.Files = fulfilled(s.Files, append([]model.FileRecord{}, a.Files...))
	case FileSaved:
		s.Files = fulfilled(s.Files, upsert(s.Files.Items, a.File, func(f model.FileRecord) string { return f.ID }))
	case FileDeleted:
		s.Files = fulfilled(s.Files, remove(s.Files.Items, func(f model.FileRecord) bool { return f.ID == a.ID }))

	case CoursesLoaded:
		s.Courses = fulfilled(s.Courses, append([]model.Course{}, a.Courses...))
	case CourseSaved:
		s.Courses = fulfilled(s.Courses, upsert(s.Courses.Items, a.Course, func(c model.Course) string { return c.ID }))
	case CourseDeleted:
		s.Courses = fulfilled(s.Courses, remove(s.Courses.Items, func(c model.Course) bool { return c.ID == a.ID }))
		s.Files = fulfilled(s.Files, remove(s.Files.Items, func(f model.FileRecord) bool { return f.CourseID == a.ID }))
		s.Materials = fulfilled(s.Materials, remove(s.Materials.Items, func(m model.StudyMaterial) bool { return m.CourseID == a.ID }))

	case MaterialsLoaded:
		s.Materials = fulfilled(s.Materials, append([]model.StudyMaterial{}, a.Materials...))
	case MaterialSaved:
		s.Materials = fulfilled(s.Materials, upsert(s.Materials.Items, a.Material, func(m model.StudyMaterial) string { return m.ID }))
	case MaterialDeleted:
		s.Materials = fulfilled(s.Materials, remove(s.Materials.Items, func(m model.StudyMaterial) bool { return m.ID == a.ID }))

	case SettingsLoaded:
		s.Settings = a.Settings
		s.SettingsStatus = Status{}

	case PreferencesChanged:
		s.UI.Preferences = a.Preferences
	case ViewChanged:
		s.UI.Preferences.CurrentView = a.View
	case ModalToggled:
		s.UI.Modals = withFlag(s.UI.Modals, a.Name, a.Open)
	case LoadingSet:
		s.UI.Loading = withFlag(s.UI.Loading, a.Key, a.Loading)
	case ConnectionChanged:
		s.UI.Connection = a.Connection
	case NotificationAdded:
		s.UI.Notifications = appendCapped(s.UI.Notifications, a.Notification, MaxNotifications)
	case NotificationRemoved:
		s.UI.Notifications = remove(s.UI.Notifications, func(n Notification) bool { return n.ID == a.ID })
	case NotificationsClear:
		s.UI.Notifications = []Notification{}

	case ActivityRecorded:
		s.Activity = foldActivity(s.Activity, a.Record)
	}
	return s
}

func setStatus(s State, d Domain, st Status) State {
	switch d {
	case DomainFiles:
		s.Files.Status = st
	case DomainCourses:
		s.Courses.Status = st
	case DomainMaterials:
		s.Materials.Status = st
	case DomainSettings:
		s.SettingsStatus = st
	}
	return s
}

func fulfilled[T any](c CollectionState[T], items []T) CollectionState[T] {
	return CollectionState[T]{Items: items, Version: c.Version + 1}
}

// upsert returns a new slice with item replacing the entry of the same id,
// or appended when there is none.
func upsert[T any](items []T, item T, id func(T) string) []T {
	out := make([]T, 0, len(items)+1)
	replaced := false
	for _, it := range items {
		if !replaced && id(it) == id(item) {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, it)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

func remove[T any](items []T, drop func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !drop(it) {
			out = append(out, it)
		}
	}
	return out
}

func withFlag(m map[string]bool, key string, on bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if on {
		out[key] = true
	} else {
		delete(out, key)
	}
	return out
}

func appendCapped[T any](items []T, item T, max int) []T {
	start := 0
	if len(items)+1 > max {
		start = len(items) + 1 - max
	}
	out := make([]T, 0, len(items)-start+1)
	out = append(out, items[start:]...)
	return append(out, item)
}

func foldActivity(a ActivityStats, r model.ModelActivityRecord) ActivityStats {
	a.TotalRequests++
	if r.Success {
		a.SuccessfulRequests++
	} else {
		a.FailedRequests++
	}
	n := float64(a.TotalRequests)
	a.AverageResponseTime = time.Duration((float64(a.AverageResponseTime)*(n-1) + float64(r.ResponseTime)) / n)
	return a
}
