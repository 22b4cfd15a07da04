// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer scores study material and recommends a local model.
//
// Analysis is pure and deterministic: the same text always yields the same
// ContentAnalysis. The score is the sum of three buckets (length, sentence
// length and academic-term density) and ranges from 3 to 10. Higher scores
// map to larger models from model.Catalog.
//
// # Usage
//
//	a := analyzer.Analyze(text)
//	fmt.Println(a.RecommendedModel, a.EstimatedTokens)
//
//	if !analyzer.ValidateModelCompatibility("llama3.2:1b", a) {
//	    alt, _ := analyzer.SuggestAlternativeModel(a)
//	    fmt.Println("try", alt.Name)
//	}
package analyzer
