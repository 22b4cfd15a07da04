// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"go.uber.org/zap"
)

// MaxActivity is the capacity of the model activity log.
const MaxActivity = 100

// DefaultNotificationDuration is used for notifications raised by thunks.
const DefaultNotificationDuration = 5 * time.Second

// Persistence is what the store needs from the storage layer.
type Persistence interface {
	LoadFiles(ctx context.Context) ([]model.FileRecord, error)
	SaveFile(ctx context.Context, f model.FileRecord) error
	DeleteFile(ctx context.Context, id string) error

	LoadCourses(ctx context.Context) ([]model.Course, error)
	SaveCourse(ctx context.Context, c model.Course) error
	DeleteCourse(ctx context.Context, id string) error

	LoadStudyMaterials(ctx context.Context) ([]model.StudyMaterial, error)
	SaveStudyMaterial(ctx context.Context, m model.StudyMaterial) error
	DeleteStudyMaterial(ctx context.Context, id string) error

	LoadSettings(ctx context.Context) (config.Settings, error)
	SaveSettings(ctx context.Context, s config.Settings) error
	LoadUIPreferences(ctx context.Context) (model.UIPreferences, error)
	SaveUIPreferences(ctx context.Context, p model.UIPreferences) error
}

// Subscriber is called with the new state after every dispatch.
type Subscriber func(State)

// Store owns the application state.
type Store struct {
	mu       sync.Mutex
	state    State
	activity *Ring[model.ModelActivityRecord]
	subs     map[int]Subscriber
	nextSub  int

	byCourse       map[string][]model.FileRecord
	byCourseVer    int
	byCourseFilled bool

	persist Persistence
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store in its initial state.
func New(p Persistence, opts ...Option) *Store {
	s := &Store{
		state:    InitialState(),
		activity: NewRing[model.ModelActivityRecord](MaxActivity),
		subs:     make(map[int]Subscriber),
		persist:  p,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// CORE
// =============================================================================

// State returns the current state. Treat it as read-only.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and notifies subscribers.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	if rec, ok := a.(ActivityRecorded); ok {
		s.activity.Push(rec.Record)
	}
	state := s.state
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("DISPATCH", zap.String("action", ActionName(a)))
	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// =============================================================================
// THUNKS
// =============================================================================

// run executes op between the pending and fulfilled/rejected phases. A
// failing write also raises an error notification.
func (s *Store) run(d Domain, notifyOnError bool, op func() (Action, error)) error {
	s.Dispatch(Pending{Domain: d})
	done, err := op()
	if err != nil {
		s.logger.Warn("ACTION_REJECTED", zap.String("domain", string(d)), zap.Error(err))
		s.Dispatch(Rejected{Domain: d, Err: err.Error()})
		if notifyOnError {
			s.Notify(NotifyError, err.Error(), DefaultNotificationDuration)
		}
		return err
	}
	s.Dispatch(done)
	return nil
}

func (s *Store) LoadFiles(ctx context.Context) error {
	return s.run(DomainFiles, false, func() (Action, error) {
		files, err := s.persist.LoadFiles(ctx)
		return FilesLoaded{Files: files}, err
	})
}

func (s *Store) SaveFile(ctx context.Context, f model.FileRecord) error {
	return s.run(DomainFiles, true, func() (Action, error) {
		return FileSaved{File: f}, s.persist.SaveFile(ctx, f)
	})
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.run(DomainFiles, true, func() (Action, error) {
		return FileDeleted{ID: id}, s.persist.DeleteFile(ctx, id)
	})
}

func (s *Store) LoadCourses(ctx context.Context) error {
	return s.run(DomainCourses, false, func() (Action, error) {
		courses, err := s.persist.LoadCourses(ctx)
		return CoursesLoaded{Courses: courses}, err
	})
}

func (s *Store) SaveCourse(ctx context.Context, c model.Course) error {
	return s.run(DomainCourses, true, func() (Action, error) {
		return CourseSaved{Course: c}, s.persist.SaveCourse(ctx, c)
	})
}

// DeleteCourse deletes the course with its files and materials.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return s.run(DomainCourses, true, func() (Action, error) {
		return CourseDeleted{ID: id}, s.persist.DeleteCourse(ctx, id)
	})
}

func (s *Store) LoadStudyMaterials(ctx context.Context) error {
	return s.run(DomainMaterials, false, func() (Action, error) {
		materials, err := s.persist.LoadStudyMaterials(ctx)
		return MaterialsLoaded{Materials: materials}, err
	})
}

func (s *Store) SaveStudyMaterial(ctx context.Context, m model.StudyMaterial) error {
	return s.run(DomainMaterials, true, func() (Action, error) {
		return MaterialSaved{Material: m}, s.persist.SaveStudyMaterial(ctx, m)
	})
}

func (s *Store) DeleteStudyMaterial(ctx context.Context, id string) error {
	return s.run(DomainMaterials, true, func() (Action, error) {
		return MaterialDeleted{ID: id}, s.persist.DeleteStudyMaterial(ctx, id)
	})
}

// UpdateSettings applies fn to a copy of the current settings, clamps the
// result and persists it.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*config.Settings)) error {
	next := s.State().Settings
	next.Files.AllowedExtensions = slices.Clone(next.Files.AllowedExtensions)
	fn(&next)
	next.Clamp()
	return s.run(DomainSettings, true, func() (Action, error) {
		return SettingsLoaded{Settings: next}, s.persist.SaveSettings(ctx, next)
	})
}

// UpdatePreferences applies fn to the UI preferences and persists them.
func (s *Store) UpdatePreferences(ctx context.Context, fn func(*model.UIPreferences)) error {
	next := s.State().UI.Preferences
	fn(&next)
	if err := s.persist.SaveUIPreferences(ctx, next); err != nil {
		s.Notify(NotifyError, err.Error(), DefaultNotificationDuration)
		return err
	}
	s.Dispatch(PreferencesChanged{Preferences: next})
	return nil
}

// Hydrate restores the persisted slices of state: files, settings and UI
// preferences. Every slice is attempted; the errors are joined.
func (s *Store) Hydrate(ctx context.Context) error {
	var errs []error
	if err := s.LoadFiles(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.run(DomainSettings, false, func() (Action, error) {
		settings, err := s.persist.LoadSettings(ctx)
		return SettingsLoaded{Settings: settings}, err
	}); err != nil {
		errs = append(errs, err)
	}
	prefs, err := s.persist.LoadUIPreferences(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		s.Dispatch(PreferencesChanged{Preferences: prefs})
	}
	return errors.Join(errs...)
}

// Refresh loads courses and study materials, which Hydrate leaves alone.
func (s *Store) Refresh(ctx context.Context) error {
	return errors.Join(s.LoadCourses(ctx), s.LoadStudyMaterials(ctx))
}

// =============================================================================
// UI
// =============================================================================

// Notify appends a notification and returns its id. A zero duration never
// expires.
func (s *Store) Notify(t NotificationType, message string, d time.Duration) string {
	n := Notification{ID: model.NewID(), Type: t, Message: message, Timestamp: s.now(), Duration: d}
	s.Dispatch(NotificationAdded{Notification: n})
	return n.ID
}

// Dismiss removes a notification.
func (s *Store) Dismiss(id string) {
	s.Dispatch(NotificationRemoved{ID: id})
}

// ActiveNotifications returns the unexpired notifications at the store's
// current time.
func (s *Store) ActiveNotifications() []Notification {
	return s.State().ActiveNotifications(s.now())
}

// SetConnection records the outcome of a connectivity check.
func (s *Store) SetConnection(connected bool, models []string, errMsg string) {
	s.Dispatch(ConnectionChanged{Connection: Connection{
		Connected: connected,
		Error:     errMsg,
		Models:    models,
		CheckedAt: s.now(),
	}})
}

// =============================================================================
// ACTIVITY
// =============================================================================

// RecordActivity appends r to the activity log and updates the aggregates.
func (s *Store) RecordActivity(r model.ModelActivityRecord) {
	if r.ID == "" {
		r.ID = model.NewID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	s.Dispatch(ActivityRecorded{Record: r})
}

// Activity returns up to n log entries, newest first. n <= 0 returns all.
func (s *Store) Activity(n int) []model.ModelActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.Newest(n)
}

// =============================================================================
// SELECTORS
// =============================================================================

// FilesByCourse returns the loaded files of one course. The grouping is
// rebuilt only when the files collection version changes.
func (s *Store) FilesByCourse(courseID string) []model.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.byCourseFilled || s.byCourseVer != s.state.Files.Version {
		grouped := make(map[string][]model.FileRecord)
		for _, f := range s.state.Files.Items {
			grouped[f.CourseID] = append(grouped[f.CourseID], f)
		}
		s.byCourse = grouped
		s.byCourseVer = s.state.Files.Version
		s.byCourseFilled = true
	}
	return slices.Clone(s.byCourse[courseID])
}
