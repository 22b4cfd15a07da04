// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/export"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DefaultActivityLimit is how many log entries /api/activity returns
// without a limit parameter.
const DefaultActivityLimit = 20

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// ============================================================================
// HEALTH AND MODELS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	OllamaStatus  string `json:"ollamaStatus"`
	Models        int    `json:"models"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		OllamaStatus:  "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	res := s.hooks.Connect(ctx)
	if res.Success {
		health.Models = len(res.Models)
	} else {
		health.Status = "degraded"
		health.OllamaStatus = "unavailable"
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	res := s.hooks.Connect(r.Context())
	if !res.Success {
		writeError(w, http.StatusServiceUnavailable, res.Error)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": orEmpty(res.Models)})
}

// ============================================================================
// GENERATION
// ============================================================================

// GenerationResponse carries generated text.
type GenerationResponse struct {
	Text string `json:"text"`
}

type contentBody struct {
	Content string `json:"content" validate:"required"`
}

func (s *Server) respondGenerated(w http.ResponseWriter, text string, err error) {
	if err != nil {
		writeFailure(w, err, text)
		return
	}
	writeJSON(w, http.StatusOK, GenerationResponse{Text: text})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.hooks.Analyze(body.Content))
}

func (s *Server) handleSuggestTopics(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topics": orEmpty(s.hooks.SuggestTopics(body.Content)),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req ollama.SummaryRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := s.hooks.GenerateSummary(r.Context(), req.Content, req.Length, req.Format, req.Model)
	s.respondGenerated(w, text, err)
}

func (s *Server) handleStudyMaterial(w http.ResponseWriter, r *http.Request) {
	var req ollama.MaterialRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := s.hooks.GenerateStudyMaterial(r.Context(), req.Content, req.Type, req.Model)
	s.respondGenerated(w, text, err)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req ollama.QuestionRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := s.hooks.AskQuestion(r.Context(), req.Question, req.Context, req.Model)
	s.respondGenerated(w, text, err)
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	var req ollama.TopicRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := s.hooks.GenerateTopic(r.Context(), req)
	s.respondGenerated(w, text, err)
}

// ============================================================================
// FILES
// ============================================================================

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	var files []model.FileRecord
	if course := r.URL.Query().Get("course"); course != "" {
		files = s.store.FilesByCourse(course)
	} else {
		files = s.store.State().Files.Items
	}
	writeJSON(w, http.StatusOK, orEmpty(files))
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxBody()); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	rec, err := s.hooks.ImportDocument(r.Context(), header.Filename, file, r.FormValue("courseId"))
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFile(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeFailure(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type summarizeFileBody struct {
	Length ollama.SummaryLength `json:"length" validate:"omitempty,oneof=short medium long"`
	Format ollama.SummaryFormat `json:"format" validate:"omitempty,oneof=paragraph bullets outline"`
}

func (s *Server) handleSummarizeFile(w http.ResponseWriter, r *http.Request) {
	var body summarizeFileBody
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}
	rec, err := s.hooks.SummarizeFile(r.Context(), mux.Vars(r)["id"], body.Length, body.Format)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type fileMaterialBody struct {
	Type ollama.MaterialKind `json:"type" validate:"required,oneof=flashcards questions notes"`
}

func (s *Server) handleFileMaterial(w http.ResponseWriter, r *http.Request) {
	var body fileMaterialBody
	if !decode(w, r, &body) {
		return
	}
	m, err := s.hooks.CreateStudyMaterialFromFile(r.Context(), mux.Vars(r)["id"], body.Type)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ============================================================================
// COURSES
// ============================================================================

type courseBody struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Code  string `json:"code"`
	Color string `json:"color"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(s.store.State().Courses.Items))
}

// handleSaveCourse creates a course, or updates it when the id exists.
// CreatedAt of an existing course is kept.
func (s *Server) handleSaveCourse(w http.ResponseWriter, r *http.Request) {
	var body courseBody
	if !decode(w, r, &body) {
		return
	}
	c := model.Course{
		ID:        body.ID,
		Name:      strings.TrimSpace(body.Name),
		Code:      body.Code,
		Color:     body.Color,
		CreatedAt: time.Now().UTC(),
	}
	if c.ID == "" {
		c.ID = model.NewID()
	} else {
		for _, existing := range s.store.State().Courses.Items {
			if existing.ID == c.ID {
				c.CreatedAt = existing.CreatedAt
				break
			}
		}
	}
	if err := s.store.SaveCourse(r.Context(), c); err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCourse(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeFailure(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// STUDY MATERIALS
// ============================================================================

type materialBody struct {
	ID       string             `json:"id"`
	Title    string             `json:"title" validate:"required"`
	Type     model.MaterialType `json:"type" validate:"required,materialtype"`
	Content  string             `json:"content"`
	CourseID string             `json:"courseId"`
	FileID   string             `json:"fileId"`
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	items := s.store.State().Materials.Items
	if course := r.URL.Query().Get("course"); course != "" {
		var filtered []model.StudyMaterial
		for _, m := range items {
			if m.CourseID == course {
				filtered = append(filtered, m)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (s *Server) handleSaveMaterial(w http.ResponseWriter, r *http.Request) {
	var body materialBody
	if !decode(w, r, &body) {
		return
	}
	m := model.StudyMaterial{
		ID:        body.ID,
		Title:     body.Title,
		Type:      body.Type,
		Content:   body.Content,
		CourseID:  body.CourseID,
		FileID:    body.FileID,
		CreatedAt: time.Now().UTC(),
	}
	if m.ID == "" {
		m.ID = model.NewID()
	}
	if err := s.store.SaveStudyMaterial(r.Context(), m); err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteStudyMaterial(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeFailure(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// SETTINGS
// ============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.State().Settings)
}

// handlePutSettings decodes over the current settings, so fields left out
// of the body keep their values. Out-of-range values are clamped.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := s.store.State().Settings
	if !decode(w, r, &next) {
		return
	}
	err := s.store.UpdateSettings(r.Context(), func(cur *config.Settings) { *cur = next })
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, s.store.State().Settings)
}

// ============================================================================
// STATS, ACTIVITY, NOTIFICATIONS
// ============================================================================

// StatsResponse combines stored totals with this session's model usage.
type StatsResponse struct {
	Storage     storage.Statistics  `json:"storage"`
	Activity    store.ActivityStats `json:"activity"`
	SuccessRate float64             `json:"successRate"`
	Connection  store.Connection    `json:"connection"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.data.GetStatistics(r.Context())
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	st := s.store.State()
	writeJSON(w, http.StatusOK, StatsResponse{
		Storage:     stats,
		Activity:    st.Activity,
		SuccessRate: st.Activity.SuccessRate(),
		Connection:  st.UI.Connection,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, orEmpty(s.store.Activity(limit)))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(s.store.ActiveNotifications()))
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	s.store.Dismiss(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// EXPORT AND IMPORT
// ============================================================================

func formatParam(r *http.Request) (storage.Format, bool) {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
			return storage.FormatYAML, true
		}
		return storage.FormatJSON, true
	case "yaml", "yml":
		return storage.FormatYAML, true
	}
	return "", false
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, ok := formatParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be json or yaml")
		return
	}
	bundle, err := s.data.ExportData(r.Context())
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	out, err := bundle.Encode(format)
	if err != nil {
		writeFailure(w, err, "")
		return
	}

	contentType := "application/json"
	if format == storage.FormatYAML {
		contentType = "application/yaml"
	}
	name := fmt.Sprintf("arcano-export-%s.%s", bundle.ExportedAt.Format("2006-01-02"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleExportPack renders the summaries and study materials of one course,
// or of the whole library, as a Markdown or HTML document.
func (s *Server) handleExportPack(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exp, err := export.ForFormat(q.Get("format"), export.DefaultOptions())
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	pack, err := export.NewPack(s.store.State(), q.Get("course"), time.Now().UTC())
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	out, err := exp.Export(pack)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	w.Header().Set("Content-Type", exp.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(pack, exp)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// ImportResponse counts what an import wrote.
type ImportResponse struct {
	Files     int `json:"files"`
	Courses   int `json:"courses"`
	Materials int `json:"materials"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, ok := formatParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be json or yaml")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeFailure(w, err, "")
		return
	}
	bundle, err := s.data.ImportData(r.Context(), data, format)
	if err != nil {
		writeFailure(w, err, "")
		return
	}

	// The import wrote to storage directly; reload what the store holds.
	if err := errors.Join(s.store.LoadFiles(r.Context()), s.store.Refresh(r.Context())); err != nil {
		s.logger.Warn("IMPORT_RELOAD_FAILED", zap.Error(err))
	}
	s.store.Notify(store.NotifySuccess, fmt.Sprintf("Imported %d files, %d courses and %d study materials",
		len(bundle.Files), len(bundle.Courses), len(bundle.Materials)), store.DefaultNotificationDuration)

	writeJSON(w, http.StatusOK, ImportResponse{
		Files:     len(bundle.Files),
		Courses:   len(bundle.Courses),
		Materials: len(bundle.Materials),
	})
}
