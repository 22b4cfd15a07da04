// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// =============================================================================
// COLLECTIONS
// =============================================================================

// Collection names, used in keys and error messages.
const (
	CollectionFiles     = "files"
	CollectionCourses   = "courses"
	CollectionMaterials = "studyMaterials"
	CollectionSettings  = "settings"
	CollectionUI        = "ui"
)

// DefaultNamespace prefixes every key when no namespace is configured.
const DefaultNamespace = "arcano"

// DefaultCacheTTL is how long a collection read stays cached.
const DefaultCacheTTL = 5 * time.Minute

// =============================================================================
// SERVICE
// =============================================================================

// Options configures a Service.
type Options struct {
	Namespace string
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// Service reads and writes the domain collections.
type Service struct {
	backend   Backend
	cache     *gocache.Cache
	namespace string
	logger    *zap.Logger

	// mu serializes read-modify-write cycles so concurrent saves to the same
	// collection don't drop each other's changes.
	mu sync.Mutex

	// genMu guards gens. A collection's generation moves on every
	// invalidation; a read only fills the cache if it did not move.
	genMu sync.Mutex
	gens  map[string]uint64
}

// NewService wraps backend. Zero options fall back to the defaults.
func NewService(backend Backend, opts Options) *Service {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		backend:   backend,
		cache:     gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		namespace: opts.Namespace,
		logger:    opts.Logger,
		gens:      make(map[string]uint64),
	}
}

// NewServiceFromConfig opens the configured backend and wraps it.
func NewServiceFromConfig(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Service, error) {
	backend, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewService(backend, Options{
		Namespace: cfg.Namespace,
		CacheTTL:  time.Duration(cfg.CacheTTLSecs) * time.Second,
		Logger:    logger,
	}), nil
}

// Close closes the backend.
func (s *Service) Close() error {
	return s.backend.Close()
}

// Key returns the backend key for a collection.
func (s *Service) Key(collection string) string {
	return s.namespace + "-" + collection
}

func (s *Service) invalidate(collections ...string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	for _, c := range collections {
		key := s.Key(c)
		s.gens[key]++
		s.cache.Delete(key)
	}
}

func (s *Service) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

// fill caches items read at generation gen, unless a write invalidated the
// key since; the read may then predate that write.
func (s *Service) fill(key string, gen uint64, items any) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[key] == gen {
		s.cache.Set(key, items, gocache.DefaultExpiration)
	}
}

// =============================================================================
// GENERIC COLLECTION ACCESS
// =============================================================================

func loadCollection[T any](ctx context.Context, s *Service, collection string) ([]T, error) {
	key := s.Key(collection)
	if cached, ok := s.cache.Get(key); ok {
		return append([]T(nil), cached.([]T)...), nil
	}

	gen := s.generation(key)
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, s.fail("load", collection, err)
	}
	items := []T{}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, s.fail("load", collection, err)
		}
	}

	s.fill(key, gen, items)
	return append([]T(nil), items...), nil
}

func encodeCollection[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func storeCollection[T any](ctx context.Context, s *Service, collection string, items []T) error {
	raw, err := encodeCollection(items)
	if err != nil {
		return s.fail("save", collection, err)
	}
	defer s.invalidate(collection)
	if err := s.backend.Set(ctx, s.Key(collection), raw); err != nil {
		return s.fail("save", collection, err)
	}
	return nil
}

// upsert replaces the entry with item's id in place, or appends it.
func upsert[T any](items []T, item T, id func(T) string) []T {
	want := id(item)
	for i := range items {
		if id(items[i]) == want {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// without returns items minus those matching drop, and whether any matched.
func without[T any](items []T, drop func(T) bool) ([]T, bool) {
	out := items[:0:0]
	removed := false
	for _, it := range items {
		if drop(it) {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

func (s *Service) fail(op, collection string, err error) error {
	s.logger.Error("STORAGE_ERROR", zap.String("op", op), zap.String("collection", collection), zap.Error(err))
	return &PersistenceError{Op: op, Collection: collection, Err: err}
}

func fileID(f model.FileRecord) string        { return f.ID }
func courseID(c model.Course) string          { return c.ID }
func materialID(m model.StudyMaterial) string { return m.ID }

// =============================================================================
// FILES
// =============================================================================

// LoadFiles returns every stored file record.
func (s *Service) LoadFiles(ctx context.Context) ([]model.FileRecord, error) {
	return loadCollection[model.FileRecord](ctx, s, CollectionFiles)
}

// SaveFile inserts f or replaces the stored record with the same id.
func (s *Service) SaveFile(ctx context.Context, f model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return err
	}
	return storeCollection(ctx, s, CollectionFiles, upsert(files, f, fileID))
}

// DeleteFile removes the file with id. Missing ids are ignored.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return err
	}
	files, removed := without(files, func(f model.FileRecord) bool { return f.ID == id })
	if !removed {
		return nil
	}
	return storeCollection(ctx, s, CollectionFiles, files)
}

// DeleteFilesByCourse removes every file belonging to courseID.
func (s *Service) DeleteFilesByCourse(ctx context.Context, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return err
	}
	files, removed := without(files, func(f model.FileRecord) bool { return f.CourseID == courseID })
	if !removed {
		return nil
	}
	return storeCollection(ctx, s, CollectionFiles, files)
}

// FindFile returns the file with id.
func (s *Service) FindFile(ctx context.Context, id string) (model.FileRecord, bool, error) {
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return model.FileRecord{}, false, err
	}
	for _, f := range files {
		if f.ID == id {
			return f, true, nil
		}
	}
	return model.FileRecord{}, false, nil
}

// =============================================================================
// COURSES
// =============================================================================

// LoadCourses returns every stored course.
func (s *Service) LoadCourses(ctx context.Context) ([]model.Course, error) {
	return loadCollection[model.Course](ctx, s, CollectionCourses)
}

// SaveCourse inserts c or replaces the stored course with the same id.
func (s *Service) SaveCourse(ctx context.Context, c model.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	courses, err := s.LoadCourses(ctx)
	if err != nil {
		return err
	}
	return storeCollection(ctx, s, CollectionCourses, upsert(courses, c, courseID))
}

// DeleteCourse removes the course and every file and study material that
// belongs to it. All three collections are written in one batch.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	courses, err := s.LoadCourses(ctx)
	if err != nil {
		return err
	}
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return err
	}
	materials, err := s.LoadStudyMaterials(ctx)
	if err != nil {
		return err
	}

	courses, _ = without(courses, func(c model.Course) bool { return c.ID == id })
	files, droppedFiles := without(files, func(f model.FileRecord) bool { return f.CourseID == id })
	materials, droppedMaterials := without(materials, func(m model.StudyMaterial) bool { return m.CourseID == id })

	batch, err := s.encodeAll(courses, files, materials)
	if err != nil {
		return s.fail("delete", CollectionCourses, err)
	}
	defer s.invalidate(CollectionCourses, CollectionFiles, CollectionMaterials)
	if err := s.backend.Batch(ctx, batch); err != nil {
		return s.fail("delete", CollectionCourses, err)
	}

	s.logger.Info("COURSE_DELETED",
		zap.String("course_id", id),
		zap.Bool("cascaded_files", droppedFiles),
		zap.Bool("cascaded_materials", droppedMaterials),
	)
	return nil
}

func (s *Service) encodeAll(courses []model.Course, files []model.FileRecord, materials []model.StudyMaterial) (map[string]string, error) {
	c, err := encodeCollection(courses)
	if err != nil {
		return nil, err
	}
	f, err := encodeCollection(files)
	if err != nil {
		return nil, err
	}
	m, err := encodeCollection(materials)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		s.Key(CollectionCourses):   c,
		s.Key(CollectionFiles):     f,
		s.Key(CollectionMaterials): m,
	}, nil
}

// =============================================================================
// STUDY MATERIALS
// =============================================================================

// LoadStudyMaterials returns every stored study material.
func (s *Service) LoadStudyMaterials(ctx context.Context) ([]model.StudyMaterial, error) {
	return loadCollection[model.StudyMaterial](ctx, s, CollectionMaterials)
}

// SaveStudyMaterial inserts m or replaces the stored material with the same id.
func (s *Service) SaveStudyMaterial(ctx context.Context, m model.StudyMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	materials, err := s.LoadStudyMaterials(ctx)
	if err != nil {
		return err
	}
	return storeCollection(ctx, s, CollectionMaterials, upsert(materials, m, materialID))
}

// DeleteStudyMaterial removes the material with id. Missing ids are ignored.
func (s *Service) DeleteStudyMaterial(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	materials, err := s.LoadStudyMaterials(ctx)
	if err != nil {
		return err
	}
	materials, removed := without(materials, func(m model.StudyMaterial) bool { return m.ID == id })
	if !removed {
		return nil
	}
	return storeCollection(ctx, s, CollectionMaterials, materials)
}

// DeleteStudyMaterialsByCourse removes every material belonging to courseID.
func (s *Service) DeleteStudyMaterialsByCourse(ctx context.Context, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	materials, err := s.LoadStudyMaterials(ctx)
	if err != nil {
		return err
	}
	materials, removed := without(materials, func(m model.StudyMaterial) bool { return m.CourseID == courseID })
	if !removed {
		return nil
	}
	return storeCollection(ctx, s, CollectionMaterials, materials)
}

// =============================================================================
// SETTINGS & UI PREFERENCES
// =============================================================================

// LoadSettings returns the stored settings, or the defaults when none are
// stored. Stored values are clamped on the way out as well as in.
func (s *Service) LoadSettings(ctx context.Context) (config.Settings, error) {
	settings := config.DefaultSettings()
	found, err := s.loadObject(ctx, CollectionSettings, &settings)
	if err != nil {
		return config.DefaultSettings(), err
	}
	if !found {
		return config.DefaultSettings(), nil
	}
	settings.Clamp()
	return settings, nil
}

// SaveSettings clamps and stores settings.
func (s *Service) SaveSettings(ctx context.Context, settings config.Settings) error {
	settings.Clamp()
	return s.storeObject(ctx, CollectionSettings, settings)
}

// LoadUIPreferences returns the stored UI preferences or the defaults.
func (s *Service) LoadUIPreferences(ctx context.Context) (model.UIPreferences, error) {
	prefs := model.DefaultUIPreferences()
	if _, err := s.loadObject(ctx, CollectionUI, &prefs); err != nil {
		return model.DefaultUIPreferences(), err
	}
	return prefs, nil
}

// SaveUIPreferences stores prefs.
func (s *Service) SaveUIPreferences(ctx context.Context, prefs model.UIPreferences) error {
	return s.storeObject(ctx, CollectionUI, prefs)
}

func (s *Service) loadObject(ctx context.Context, collection string, into any) (bool, error) {
	raw, ok, err := s.backend.Get(ctx, s.Key(collection))
	if err != nil {
		return false, s.fail("load", collection, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return false, s.fail("load", collection, err)
	}
	return true, nil
}

func (s *Service) storeObject(ctx context.Context, collection string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return s.fail("save", collection, err)
	}
	if err := s.backend.Set(ctx, s.Key(collection), string(raw)); err != nil {
		return s.fail("save", collection, err)
	}
	return nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// Statistics summarizes the stored collections.
type Statistics struct {
	TotalFiles       int        `json:"totalFiles"`
	TotalCourses     int        `json:"totalCourses"`
	TotalMaterials   int        `json:"totalMaterials"`
	TotalContentSize int        `json:"totalContentSize"`
	LastActivity     *time.Time `json:"lastActivity,omitempty"`
}

// GetStatistics counts the collections, sums file content length in
// characters and finds the most recent file activity.
func (s *Service) GetStatistics(ctx context.Context) (Statistics, error) {
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return Statistics{}, err
	}
	courses, err := s.LoadCourses(ctx)
	if err != nil {
		return Statistics{}, err
	}
	materials, err := s.LoadStudyMaterials(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		TotalFiles:     len(files),
		TotalCourses:   len(courses),
		TotalMaterials: len(materials),
	}
	for _, f := range files {
		stats.TotalContentSize += utf8.RuneCountInString(f.Content)
		t := f.LastTouched()
		if stats.LastActivity == nil || t.After(*stats.LastActivity) {
			stats.LastActivity = &t
		}
	}
	return stats, nil
}
