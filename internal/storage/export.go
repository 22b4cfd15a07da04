// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// ExportVersion is written into every export bundle.
const ExportVersion = "1.0"

// ExportBundle is the portable snapshot of every user collection.
type ExportBundle struct {
	Files      []model.FileRecord    `json:"files" yaml:"files" validate:"dive"`
	Courses    []model.Course        `json:"courses" yaml:"courses" validate:"dive"`
	Materials  []model.StudyMaterial `json:"materials" yaml:"materials" validate:"dive"`
	ExportedAt time.Time             `json:"exportedAt" yaml:"exportedAt"`
	Version    string                `json:"version" yaml:"version" validate:"required"`
}

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ExportData snapshots the three collections.
func (s *Service) ExportData(ctx context.Context) (*ExportBundle, error) {
	files, err := s.LoadFiles(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := s.LoadCourses(ctx)
	if err != nil {
		return nil, err
	}
	materials, err := s.LoadStudyMaterials(ctx)
	if err != nil {
		return nil, err
	}
	return &ExportBundle{
		Files:      files,
		Courses:    courses,
		Materials:  materials,
		ExportedAt: time.Now().UTC(),
		Version:    ExportVersion,
	}, nil
}

// Encode renders the bundle in the given format.
func (b *ExportBundle) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(b, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// DecodeBundle parses an export in the given format. Decoding problems are
// reported as a ValidationError.
func DecodeBundle(data []byte, format Format) (*ExportBundle, error) {
	var b ExportBundle
	var err error
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &b)
	case FormatYAML:
		err = yaml.Unmarshal(data, &b)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	return &b, nil
}

// ImportData validates data and, only if every entity is valid, overwrites
// all three collections in one batch.
func (s *Service) ImportData(ctx context.Context, data []byte, format Format) (*ExportBundle, error) {
	bundle, err := DecodeBundle(data, format)
	if err != nil {
		return nil, err
	}
	if err := s.ImportBundle(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// ImportBundle is ImportData for an already decoded bundle.
func (s *Service) ImportBundle(ctx context.Context, bundle *ExportBundle) error {
	if problems := checkBundle(bundle); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.encodeAll(bundle.Courses, bundle.Files, bundle.Materials)
	if err != nil {
		return s.fail("save", "import", err)
	}
	defer s.invalidate(CollectionCourses, CollectionFiles, CollectionMaterials)
	if err := s.backend.Batch(ctx, batch); err != nil {
		return s.fail("save", "import", err)
	}

	s.logger.Info("DATA_IMPORTED",
		zap.Int("files", len(bundle.Files)),
		zap.Int("courses", len(bundle.Courses)),
		zap.Int("materials", len(bundle.Materials)),
	)
	return nil
}

// checkBundle runs struct validation and rejects duplicate ids.
func checkBundle(b *ExportBundle) []string {
	problems := validation.Struct(b)
	problems = append(problems, duplicates("files", b.Files, fileID)...)
	problems = append(problems, duplicates("courses", b.Courses, courseID)...)
	problems = append(problems, duplicates("materials", b.Materials, materialID)...)
	return problems
}

func duplicates[T any](collection string, items []T, id func(T) string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		k := id(it)
		if seen[k] {
			out = append(out, fmt.Sprintf("%s: duplicate id %q", collection, k))
		}
		seen[k] = true
	}
	return out
}
