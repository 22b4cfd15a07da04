// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is the client for a local Ollama server.
//
// It wraps /api/tags and /api/generate with retries (exponential backoff,
// three attempts by default), a five-minute response cache and error
// classification. On top of Generate it builds the study operations:
// summaries, flashcards and other study material, question answering and
// topic explanations.
//
// # Key Types
//
//   - Client: HTTP client, safe for concurrent use
//   - ClientError: Classified failure (not running, timeout, model not found, service error)
//   - ConnectResult: Structured outcome of a connectivity check
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL: "http://127.0.0.1:11434",
//	    Logger:  logger,
//	})
//	if res := client.Connect(ctx); !res.Success {
//	    fmt.Println(res.Error)
//	}
//	summary := client.GenerateSummary(ctx, text, ollama.SummaryShort, ollama.FormatBullets, "")
//
// Methods without an error return (GenerateSummary, AskQuestion, ...) put
// a readable fallback message in place of the answer when the call fails.
// Their error-returning counterparts (Summarize, Answer, ...) are used by
// callers that record outcomes.
package ollama
