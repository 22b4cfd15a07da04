// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a pack in one format.
type Exporter interface {
	Export(pack *Pack) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

var (
	// ErrUnknownCourse is returned for a course id that is not loaded.
	ErrUnknownCourse = errors.New("unknown course")

	// ErrEmptyPack is returned when there is nothing to export.
	ErrEmptyPack = errors.New("nothing to export")

	// ErrUnsupportedFormat is returned by ForFormat.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures rendering.
type Options struct {
	// IncludeMetadata adds the front matter and per-file details.
	IncludeMetadata bool

	// ExcerptRunes is how much extracted text is shown for a file that has
	// no summary. Zero leaves such files without text.
	ExcerptRunes int

	// Theme for HTML export ("light" or "dark"). Default: "dark"
	Theme string
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		ExcerptRunes:    600,
		Theme:           "dark",
	}
}

// ForFormat returns the exporter for "markdown"/"md" or "html"/"htm".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// =============================================================================
// PACK
// =============================================================================

// Pack is the content of one export.
type Pack struct {
	Title       string
	Course      *model.Course // nil for the whole library
	Files       []model.FileRecord
	Materials   []model.StudyMaterial
	GeneratedAt time.Time

	courseNames map[string]string
}

// NewPack collects the files and materials of courseID from st, or of the
// whole library when courseID is empty. Files are ordered by upload time and
// materials by creation time.
func NewPack(st store.State, courseID string, now time.Time) (*Pack, error) {
	p := &Pack{
		Title:       "Study Pack",
		GeneratedAt: now,
		courseNames: make(map[string]string, len(st.Courses.Items)),
	}
	for _, c := range st.Courses.Items {
		p.courseNames[c.ID] = c.Name
		if c.ID == courseID {
			c := c
			p.Course = &c
		}
	}
	if courseID != "" {
		if p.Course == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, courseID)
		}
		p.Title = p.Course.Name
		if p.Course.Code != "" {
			p.Title = p.Course.Code + " " + p.Course.Name
		}
	}

	for _, f := range st.Files.Items {
		if courseID == "" || f.CourseID == courseID {
			p.Files = append(p.Files, f)
		}
	}
	for _, m := range st.Materials.Items {
		if courseID == "" || m.CourseID == courseID {
			p.Materials = append(p.Materials, m)
		}
	}
	if len(p.Files) == 0 && len(p.Materials) == 0 {
		return nil, ErrEmptyPack
	}

	sort.SliceStable(p.Files, func(i, j int) bool { return p.Files[i].UploadedAt.Before(p.Files[j].UploadedAt) })
	sort.SliceStable(p.Materials, func(i, j int) bool { return p.Materials[i].CreatedAt.Before(p.Materials[j].CreatedAt) })
	return p, nil
}

// CourseName returns the display name of a course id, "" for none.
func (p *Pack) CourseName(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := p.courseNames[id]; ok {
		return name
	}
	return model.UnknownCourseName
}

// fileName returns the name of a file in the pack, for material sources.
func (p *Pack) fileName(id string) string {
	for _, f := range p.Files {
		if f.ID == id {
			return f.Name
		}
	}
	return ""
}

// Summarized returns how many files carry a summary.
func (p *Pack) Summarized() int {
	n := 0
	for _, f := range p.Files {
		if f.Summary != "" {
			n++
		}
	}
	return n
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Filename returns a file name for pack in exp's format.
func Filename(pack *Pack, exp Exporter) string {
	return fmt.Sprintf("study-pack_%s_%s%s",
		sanitizeFilename(pack.Title),
		pack.GeneratedAt.Format("20060102_150405"),
		exp.FileExtension())
}

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "pack"
	}
	return b.String()
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("January 2, 2006 at 3:04 PM")
}

func materialLabel(t model.MaterialType) string {
	switch t {
	case model.MaterialFlashcards:
		return "Flashcards"
	case model.MaterialQuestions:
		return "Practice Questions"
	case model.MaterialNotes:
		return "Notes"
	case model.MaterialSummary:
		return "Summary"
	}
	return string(t)
}
