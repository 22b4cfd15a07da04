// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/export"
	"github.com/des-work/Arcano-Desk-sub001/internal/extract"
	"github.com/des-work/Arcano-Desk-sub001/internal/hooks"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// HELPERS
// =============================================================================

// fakeOllama serves /api/tags and answers every generation with reply.
func fakeOllama(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(ollama.ListModelsResponse{Models: []ollama.ModelInfo{
				{Name: "llama3.2:3b"}, {Name: "llama3.2:1b"},
			}})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: reply, Done: true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func downURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

type testEnv struct {
	server  *Server
	handler http.Handler
	svc     *storage.Service
}

func newEnv(t *testing.T, ollamaURL string, cfg config.ServerConfig) *testEnv {
	t.Helper()
	svc := storage.NewService(storage.NewMemoryBackend(), storage.Options{})
	st := store.New(svc)
	require.NoError(t, st.Hydrate(context.Background()))

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:    ollamaURL,
		Timeout:    2 * time.Second,
		RetryDelay: time.Millisecond,
	})
	h := hooks.New(client, st, nil)
	t.Cleanup(h.Close)

	s := New(cfg, h, svc, nil)
	return &testEnv{server: s, handler: s.Handler(), svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, name, content, courseID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("courseId", courseID))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// HEALTH AND MODELS
// =============================================================================

func TestHealth(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "").URL, config.ServerConfig{})
	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Models)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealth_Degraded(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.OllamaStatus)
}

func TestModels(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "").URL, config.ServerConfig{})
	rec := env.do(t, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{"llama3.2:3b", "llama3.2:1b"}, body["models"])
	assert.True(t, env.server.store.State().UI.Connection.Connected)
}

func TestModels_Unavailable(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	rec := env.do(t, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, http.StatusServiceUnavailable, decodeBody[ErrorBody](t, rec).Error.Code)
}

// =============================================================================
// GENERATION
// =============================================================================

func TestSummary(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "Three laws of motion.").URL, config.ServerConfig{})
	rec := env.do(t, http.MethodPost, "/api/summary", map[string]string{
		"content": "Newton's laws describe motion.",
		"length":  "short",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Three laws of motion.", decodeBody[GenerationResponse](t, rec).Text)

	rec = env.do(t, http.MethodGet, "/api/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	activity := decodeBody[[]model.ModelActivityRecord](t, rec)
	require.Len(t, activity, 1)
	assert.Equal(t, model.ActivitySummary, activity[0].Type)
	assert.True(t, activity[0].Success)
}

func TestGenerationEndpoints(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "generated").URL, config.ServerConfig{})

	tests := []struct {
		path string
		body map[string]string
	}{
		{"/api/study-material", map[string]string{"content": "Cells divide by mitosis.", "type": "flashcards"}},
		{"/api/question", map[string]string{"question": "What is mitosis?", "context": "Cells divide by mitosis."}},
		{"/api/topic", map[string]string{"topic": "mitosis", "type": "definition", "depth": "brief"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody[GenerationResponse](t, rec).Text, "generated")
		})
	}
	assert.Equal(t, 3, env.server.store.State().Activity.TotalRequests)
}

func TestGeneration_Validation(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "").URL, config.ServerConfig{})

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{"missing content", "/api/summary", map[string]string{"length": "short"}, "Content is required"},
		{"bad length", "/api/summary", map[string]string{"content": "x", "length": "huge"}, "Length must be one of"},
		{"bad material", "/api/study-material", map[string]string{"content": "x", "type": "poem"}, "Type must be one of"},
		{"unknown field", "/api/question", map[string]string{"question": "x", "prompt": "y"}, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody[ErrorBody](t, rec).Error.Message, tt.want)
		})
	}
	assert.Zero(t, env.server.store.State().Activity.TotalRequests, "invalid requests never reach the model")
}

func TestSummary_ServiceDown(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	rec := env.do(t, http.MethodPost, "/api/summary", map[string]string{"content": "Entropy always increases."})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, "AI service unavailable: service unreachable", body.Error.Message)
	assert.Contains(t, body.Error.Fallback, "ollama serve")

	rec = env.do(t, http.MethodGet, "/api/notifications", nil)
	notes := decodeBody[[]store.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, store.NotifyError, notes[0].Type)

	rec = env.do(t, http.MethodDelete, "/api/notifications/"+notes[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.server.store.ActiveNotifications())
}

func TestTopic_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'qwen2.5:14b' not found"}`))
	}))
	defer srv.Close()

	env := newEnv(t, srv.URL, config.ServerConfig{})
	rec := env.do(t, http.MethodPost, "/api/topic", map[string]string{"topic": "entropy", "model": "qwen2.5:14b"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, "model not found", body.Error.Message)
	assert.Contains(t, body.Error.Fallback, "ollama pull qwen2.5:14b")
}

func TestAnalyzeAndSuggest(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	content := "Photosynthesis converts light into chemical energy. Photosynthesis happens in chloroplasts."

	rec := env.do(t, http.MethodPost, "/api/analyze", map[string]string{"content": content})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 10, body["wordCount"])
	assert.NotEmpty(t, body["recommendedModel"])

	rec = env.do(t, http.MethodPost, "/api/topics/suggest", map[string]string{"content": content})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topics":`)
	assert.Zero(t, env.server.store.State().Activity.TotalRequests)
}

// =============================================================================
// FILES, COURSES, MATERIALS
// =============================================================================

func TestFiles_UploadListDelete(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "A short summary.").URL, config.ServerConfig{})

	rec := env.upload(t, "notes.txt", "Momentum is conserved: p = m * v", "c1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	file := decodeBody[model.FileRecord](t, rec)
	assert.Equal(t, model.FileTypeTXT, file.Type)
	assert.Equal(t, "c1", file.CourseID)
	require.NotNil(t, file.Metadata)

	rec = env.do(t, http.MethodGet, "/api/files", nil)
	assert.Len(t, decodeBody[[]model.FileRecord](t, rec), 1)
	rec = env.do(t, http.MethodGet, "/api/files?course=other", nil)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/files/"+file.ID+"/summarize", map[string]string{"length": "short"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summarized := decodeBody[model.FileRecord](t, rec)
	assert.Equal(t, "A short summary.", summarized.Summary)
	assert.NotNil(t, summarized.LastProcessed)

	rec = env.do(t, http.MethodPost, "/api/files/"+file.ID+"/materials", map[string]string{"type": "flashcards"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	material := decodeBody[model.StudyMaterial](t, rec)
	assert.Equal(t, model.MaterialFlashcards, material.Type)
	assert.Equal(t, file.ID, material.FileID)

	rec = env.do(t, http.MethodDelete, "/api/files/"+file.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/files", nil)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestFiles_Rejected(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})

	rec := env.upload(t, "setup.exe", "MZ", "")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/files/missing/summarize", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCourses_SaveAndCascade(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})

	rec := env.do(t, http.MethodPost, "/api/courses", map[string]string{"name": "Physics 101", "code": "PHY101"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	course := decodeBody[model.Course](t, rec)
	require.NotEmpty(t, course.ID)

	rec = env.do(t, http.MethodPost, "/api/courses", map[string]string{"id": course.ID, "name": "Physics I"})
	require.Equal(t, http.StatusCreated, rec.Code)
	renamed := decodeBody[model.Course](t, rec)
	assert.True(t, course.CreatedAt.Equal(renamed.CreatedAt), "an update keeps the creation time")

	require.Equal(t, http.StatusCreated, env.upload(t, "a.txt", "Waves carry energy.", course.ID).Code)
	rec = env.do(t, http.MethodPost, "/api/materials", map[string]string{
		"title": "Wave notes", "type": "notes", "content": "...", "courseId": course.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/courses", nil)
	courses := decodeBody[[]model.Course](t, rec)
	require.Len(t, courses, 1)
	assert.Equal(t, "Physics I", courses[0].Name)

	rec = env.do(t, http.MethodDelete, "/api/courses/"+course.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, path := range []string{"/api/courses", "/api/files", "/api/materials"} {
		rec = env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, "[]\n", rec.Body.String(), path)
	}
	files, err := env.svc.LoadFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMaterials_Validation(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	rec := env.do(t, http.MethodPost, "/api/materials", map[string]string{"title": "Quiz", "type": "poem"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorBody](t, rec).Error.Message, `unknown material type "poem"`)
}

// =============================================================================
// SETTINGS, STATS
// =============================================================================

func TestSettings_PutClampsAndKeepsMissingFields(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})

	rec := env.do(t, http.MethodPut, "/api/settings", map[string]any{
		"ai": map[string]any{"model": "llama3.2:1b", "temperature": 5.0, "topP": 0.5, "maxTokens": 512},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[config.Settings](t, rec)
	assert.Equal(t, config.MaxTemperature, got.AI.Temperature)
	assert.Equal(t, "llama3.2:1b", got.AI.Model)
	assert.Equal(t, config.DefaultSettings().UI.Theme, got.UI.Theme)

	persisted, err := env.svc.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, persisted)

	rec = env.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, got, decodeBody[config.Settings](t, rec))
}

func TestStats(t *testing.T) {
	env := newEnv(t, fakeOllama(t, "ok").URL, config.ServerConfig{})
	require.Equal(t, http.StatusCreated, env.upload(t, "a.txt", "héllo world", "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/question", map[string]string{"question": "hi"}).Code)

	rec := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[StatsResponse](t, rec)
	assert.Equal(t, 1, stats.Storage.TotalFiles)
	assert.Equal(t, len([]rune("héllo world")), stats.Storage.TotalContentSize)
	assert.Equal(t, 1, stats.Activity.TotalRequests)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.True(t, stats.Connection.Connected)
}

func TestActivity_BadLimit(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	rec := env.do(t, http.MethodGet, "/api/activity?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EXPORT AND IMPORT
// =============================================================================

func TestExportImport_RoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			src := newEnv(t, downURL(t), config.ServerConfig{})
			require.Equal(t, http.StatusCreated, src.do(t, http.MethodPost, "/api/courses", map[string]string{"name": "Chemistry"}).Code)
			require.Equal(t, http.StatusCreated, src.upload(t, "bonds.txt", "Covalent bonds share electrons.", "").Code)

			rec := src.do(t, http.MethodGet, "/api/export?format="+format, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "arcano-export-")
			exported := rec.Body.Bytes()

			dst := newEnv(t, downURL(t), config.ServerConfig{})
			req := httptest.NewRequest(http.MethodPost, "/api/import?format="+format, bytes.NewReader(exported))
			rec = httptest.NewRecorder()
			dst.handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, ImportResponse{Files: 1, Courses: 1}, decodeBody[ImportResponse](t, rec))

			rec = dst.do(t, http.MethodGet, "/api/courses", nil)
			courses := decodeBody[[]model.Course](t, rec)
			require.Len(t, courses, 1)
			assert.Equal(t, "Chemistry", courses[0].Name)
			assert.Len(t, dst.server.store.State().Files.Items, 1)
		})
	}
}

func TestImport_InvalidWritesNothing(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	bad := `{"version":"1.0","exportedAt":"2024-01-01T00:00:00Z","files":[{"id":"f1","name":"x","type":"exe","uploadedAt":"2024-01-01T00:00:00Z"}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(bad))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorBody](t, rec).Error.Message, "invalid import data")

	files, err := env.svc.LoadFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestExport_BadFormat(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})
	rec := env.do(t, http.MethodGet, "/api/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportPack(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})

	rec := env.do(t, http.MethodGet, "/api/export/pack", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "an empty library has nothing to export")

	rec = env.do(t, http.MethodPost, "/api/courses", map[string]string{"name": "Optics", "code": "PHY210"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	course := decodeBody[model.Course](t, rec)
	require.Equal(t, http.StatusCreated, env.upload(t, "lenses.txt", "A convex lens converges light.", course.ID).Code)

	rec = env.do(t, http.MethodGet, "/api/export/pack?format=html&course="+course.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "study-pack_PHY210_Optics_")
	assert.Contains(t, rec.Body.String(), "<title>PHY210 Optics</title>")
	assert.Contains(t, rec.Body.String(), "lenses.txt")

	rec = env.do(t, http.MethodGet, "/api/export/pack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# Study Pack")

	rec = env.do(t, http.MethodGet, "/api/export/pack?course=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/export/pack?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRateLimit(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{RateLimit: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/settings", nil).Code)
	}
	rec := env.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// /health sits outside the limited subrouter.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	unlimited := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow("10.0.0.1"))
	}
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(limiterIdle + time.Second)
	rl.Allow("10.0.0.2")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestCORS(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/files", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{MaxUploadMB: 1})
	huge := `{"content":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(huge))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNotFoundAndMethod(t *testing.T) {
	env := newEnv(t, downURL(t), config.ServerConfig{})

	rec := env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decodeBody[ErrorBody](t, rec).Error.Code)

	rec = env.do(t, http.MethodPatch, "/api/settings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeBody[ErrorBody](t, rec).Error.Message)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mark("a"), mark("b"), mark("c"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"spoofed header from remote peer", "203.0.113.9:5000", "10.1.1.1", "", "203.0.113.9"},
		{"local proxy forwards", "127.0.0.1:5000", "198.51.100.4, 127.0.0.1", "", "198.51.100.4"},
		{"local proxy real ip", "127.0.0.1:5000", "", "198.51.100.7", "198.51.100.7"},
		{"local proxy junk header", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
		{"no port", "192.0.2.1", "", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unreachable", &ollama.ClientError{Type: ollama.ErrTypeNotRunning, Message: "down"}, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("wrapped: %w", ollama.ErrTimeout), http.StatusServiceUnavailable},
		{"model not found", ollama.ErrModelNotFound, http.StatusNotFound},
		{"persistence", &storage.PersistenceError{Op: "save", Collection: "files", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"invalid import", &storage.ValidationError{Problems: []string{"x"}}, http.StatusBadRequest},
		{"file missing", fmt.Errorf("%w: abc", hooks.ErrFileNotFound), http.StatusNotFound},
		{"extension", hooks.ErrExtensionNotAllowed, http.StatusUnsupportedMediaType},
		{"unsupported", extract.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{"too large", extract.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{"empty", extract.ErrEmpty, http.StatusBadRequest},
		{"unknown course", fmt.Errorf("%w: c9", export.ErrUnknownCourse), http.StatusNotFound},
		{"pack format", export.ErrUnsupportedFormat, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteFailure_HidesStorageDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFailure(rec, &storage.PersistenceError{Op: "save", Collection: "files", Err: errors.New("/home/u/.arcano/arcano.db: disk I/O error")}, "")
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, "failed to save files", body.Error.Message)
	assert.Equal(t, http.StatusInternalServerError, body.Error.Code)
}
