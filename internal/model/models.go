// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a local model the analyzer can recommend.
type ModelInfo struct {
	// Name is the Ollama tag used in API calls
	Name string `json:"name"`

	// DisplayName is the human-readable name
	DisplayName string `json:"display_name"`

	// Tier categorizes the model's capability level
	Tier string `json:"tier"`

	// ContextWindow is the maximum context window size in tokens
	ContextWindow int `json:"context_window"`

	// SizeGB is the approximate download size
	SizeGB float64 `json:"size_gb"`

	// BestFor lists the kinds of material the model handles well
	BestFor []string `json:"best_for"`
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// Catalog lists the recommendable models, smallest first. Order matters:
// alternative-model search scans it front to back.
var Catalog = []ModelInfo{
	{
		Name:          "llama3.2:1b",
		DisplayName:   "Llama 3.2 1B",
		Tier:          "Tiny",
		ContextWindow: 4096,
		SizeGB:        1.3,
		BestFor:       []string{"short notes", "quick definitions"},
	},
	{
		Name:          "llama3.2:3b",
		DisplayName:   "Llama 3.2 3B",
		Tier:          "Small",
		ContextWindow: 8192,
		SizeGB:        2.0,
		BestFor:       []string{"lecture notes", "flashcards"},
	},
	{
		Name:          "mistral:7b",
		DisplayName:   "Mistral 7B",
		Tier:          "Medium",
		ContextWindow: 32768,
		SizeGB:        4.1,
		BestFor:       []string{"longer readings", "summaries"},
	},
	{
		Name:          "llama3.1:8b",
		DisplayName:   "Llama 3.1 8B",
		Tier:          "Medium",
		ContextWindow: 131072,
		SizeGB:        4.7,
		BestFor:       []string{"textbook chapters", "study guides"},
	},
	{
		Name:          "qwen2.5:14b",
		DisplayName:   "Qwen 2.5 14B",
		Tier:          "Large",
		ContextWindow: 32768,
		SizeGB:        9.0,
		BestFor:       []string{"dense technical material", "problem sets"},
	},
	{
		Name:          "llama3.1:70b",
		DisplayName:   "Llama 3.1 70B",
		Tier:          "Huge",
		ContextWindow: 131072,
		SizeGB:        40.0,
		BestFor:       []string{"research papers", "graduate-level material"},
	},
}

// TierIcon returns an icon character for the model tier.
func (m ModelInfo) TierIcon() string {
	switch m.Tier {
	case "Tiny", "Small":
		return "z"
	case "Medium":
		return "~"
	case "Large", "Huge":
		return "&"
	default:
		return "?"
	}
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.ContextWindow >= 1000 {
		return fmt.Sprintf("%dK tokens", m.ContextWindow/1024)
	}
	return fmt.Sprintf("%d tokens", m.ContextWindow)
}

// GetModelInfo looks up a catalog entry by exact tag, falling back to a
// case-insensitive match on the tag or display name.
func GetModelInfo(name string) (ModelInfo, bool) {
	for _, info := range Catalog {
		if info.Name == name {
			return info, true
		}
	}

	lower := strings.ToLower(name)
	for _, info := range Catalog {
		if strings.ToLower(info.Name) == lower || strings.ToLower(info.DisplayName) == lower {
			return info, true
		}
	}

	return ModelInfo{}, false
}

// ModelNames returns the catalog tags in order.
func ModelNames() []string {
	names := make([]string, len(Catalog))
	for i, info := range Catalog {
		names[i] = info.Name
	}
	return names
}
