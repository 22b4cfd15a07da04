// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain entities shared by the study assistant.
//
// # Key Types
//
//   - FileRecord: An imported document with its extracted text and summary
//   - Course: A grouping of files and study materials
//   - StudyMaterial: Generated flashcards, questions, notes or summaries
//   - ModelActivityRecord: One model call in the session activity log
//   - ModelInfo: A recommendable local model from the Catalog
//
// # Usage
//
//	file := model.FileRecord{
//	    ID:         model.NewID(),
//	    Name:       "lecture-03.pdf",
//	    Type:       model.FileTypePDF,
//	    UploadedAt: time.Now(),
//	}
//
//	info, ok := model.GetModelInfo("llama3.1:8b")
package model
