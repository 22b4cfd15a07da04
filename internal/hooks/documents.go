// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/analyzer"
	"github.com/des-work/Arcano-Desk-sub001/internal/extract"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrFileNotFound is returned when a file id is not in the store.
	ErrFileNotFound = errors.New("file not found")

	// ErrExtensionNotAllowed is returned for uploads whose extension is not
	// in the allowed list of the settings.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

// =============================================================================
// IMPORT
// =============================================================================

// ImportDocument extracts the text of an uploaded document, attaches its
// metadata and saves it as a file record of courseID.
func (h *Hooks) ImportDocument(ctx context.Context, name string, r io.Reader, courseID string) (model.FileRecord, error) {
	ctx, span := h.tracer.Start(ctx, "document.import")
	defer span.End()

	settings := h.store.State().Settings
	if !settings.AllowsExtension(filepath.Ext(name)) {
		return model.FileRecord{}, fmt.Errorf("%w: %s", ErrExtensionNotAllowed, name)
	}

	kind, text, err := extract.ExtractReader(name, r, settings.MaxFileBytes())
	if err != nil {
		h.store.Notify(store.NotifyError, fmt.Sprintf("Could not read %s: %v", filepath.Base(name), err), FailureNoticeDuration)
		return model.FileRecord{}, err
	}

	meta := analyzer.ExtractMetadata(text)
	rec := model.FileRecord{
		ID:         model.NewID(),
		Name:       filepath.Base(name),
		Type:       kind,
		Content:    text,
		CourseID:   courseID,
		UploadedAt: time.Now().UTC(),
		Metadata:   &meta,
	}
	if err := h.store.SaveFile(ctx, rec); err != nil {
		return model.FileRecord{}, err
	}

	h.logger.Info("DOCUMENT_IMPORTED",
		zap.String("file_id", rec.ID),
		zap.String("name", rec.Name),
		zap.String("type", string(kind)),
		zap.Int("words", meta.WordCount))
	h.store.Notify(store.NotifySuccess, fmt.Sprintf("Imported %s", rec.Name), 3*time.Second)
	return rec, nil
}

// =============================================================================
// FILE-BASED GENERATION
// =============================================================================

// File returns the loaded file with id.
func (h *Hooks) File(id string) (model.FileRecord, error) {
	for _, f := range h.store.State().Files.Items {
		if f.ID == id {
			return f, nil
		}
	}
	return model.FileRecord{}, fmt.Errorf("%w: %s", ErrFileNotFound, id)
}

// SummarizeFile summarizes a stored file and saves the summary on it. A
// failed generation leaves the file untouched.
func (h *Hooks) SummarizeFile(ctx context.Context, fileID string, length ollama.SummaryLength, format ollama.SummaryFormat) (model.FileRecord, error) {
	f, err := h.File(fileID)
	if err != nil {
		return model.FileRecord{}, err
	}

	summary, err := h.GenerateSummary(ctx, f.Content, length, format, "")
	if err != nil {
		return f, err
	}

	now := time.Now().UTC()
	f.Summary = summary
	f.LastProcessed = &now
	if err := h.store.SaveFile(ctx, f); err != nil {
		return f, err
	}
	return f, nil
}

// CreateStudyMaterialFromFile generates study material from a stored file
// and saves it under the file's course.
func (h *Hooks) CreateStudyMaterialFromFile(ctx context.Context, fileID string, kind ollama.MaterialKind) (model.StudyMaterial, error) {
	f, err := h.File(fileID)
	if err != nil {
		return model.StudyMaterial{}, err
	}

	content, err := h.GenerateStudyMaterial(ctx, f.Content, kind, "")
	if err != nil {
		return model.StudyMaterial{}, err
	}

	m := model.StudyMaterial{
		ID:        model.NewID(),
		Title:     materialTitle(kind, f.Name),
		Type:      model.MaterialType(kind),
		Content:   content,
		CourseID:  f.CourseID,
		CreatedAt: time.Now().UTC(),
		FileID:    f.ID,
	}
	if err := h.store.SaveStudyMaterial(ctx, m); err != nil {
		return model.StudyMaterial{}, err
	}
	return m, nil
}

func materialTitle(kind ollama.MaterialKind, fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	switch kind {
	case ollama.MaterialFlashcards:
		return "Flashcards: " + base
	case ollama.MaterialQuestions:
		return "Practice questions: " + base
	default:
		return "Notes: " + base
	}
}
