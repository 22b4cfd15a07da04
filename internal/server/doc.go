// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the study assistant as a JSON HTTP API for a
// desktop or browser UI.
//
// Endpoints:
//   - GET  /health                     - liveness and model service status
//   - GET  /api/models                 - installed models
//   - POST /api/analyze                - content analysis
//   - POST /api/summary                - summarize text
//   - POST /api/study-material         - flashcards, questions or notes
//   - POST /api/question               - answer a question
//   - POST /api/topic                  - explain a topic
//   - POST /api/topics/suggest         - topic suggestions (no model call)
//   - GET|POST /api/files              - list or upload documents
//   - DELETE /api/files/{id}           - remove a document
//   - POST /api/files/{id}/summarize   - summarize a stored document
//   - POST /api/files/{id}/materials   - study material from a document
//   - GET|POST /api/courses            - list or save courses
//   - DELETE /api/courses/{id}         - remove a course and its content
//   - GET|POST /api/materials          - list or save study materials
//   - DELETE /api/materials/{id}       - remove a study material
//   - GET|PUT /api/settings            - read or replace settings
//   - GET /api/stats                   - storage statistics and activity totals
//   - GET /api/activity                - recent model calls
//   - GET /api/notifications           - active notifications
//   - GET /api/export                  - export all data (json or yaml)
//   - GET /api/export/pack             - study pack as markdown or html
//   - POST /api/import                 - import an export bundle
//
// Errors are returned as {"error": {"message": ..., "code": ...}}.
package server
