// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
)

// ============================================================================
// TYPES
// ============================================================================

// ContentAnalysis is the result of scoring a piece of study material.
type ContentAnalysis struct {
	WordCount         int     `json:"wordCount"`
	SentenceCount     int     `json:"sentenceCount"`
	AvgSentenceLength float64 `json:"avgSentenceLength"`
	TopicDensity      float64 `json:"topicDensity"`
	Complexity        int     `json:"complexity"`
	RecommendedModel  string  `json:"recommendedModel"`
	EstimatedTokens   int     `json:"estimatedTokens"`
	Reasoning         string  `json:"reasoning"`
}

// Level buckets a complexity score for display.
type Level int

const (
	LevelSimple Level = iota
	LevelModerate
	LevelComplex
	LevelAdvanced
)

// String returns the display name of the level.
func (l Level) String() string {
	switch l {
	case LevelSimple:
		return "simple"
	case LevelModerate:
		return "moderate"
	case LevelComplex:
		return "complex"
	case LevelAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Level returns the display bucket for the analysis score.
func (a ContentAnalysis) Level() Level {
	switch {
	case a.Complexity <= 3:
		return LevelSimple
	case a.Complexity <= 5:
		return LevelModerate
	case a.Complexity <= 7:
		return LevelComplex
	default:
		return LevelAdvanced
	}
}

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MinScore and MaxScore bound the complexity score.
	MinScore = 3
	MaxScore = 10

	// tokensPerWord approximates tokenizer output for English prose.
	tokensPerWord = 1.33
)

// academicTerms drive the topic density signal.
var academicTerms = map[string]bool{
	"analysis":    true,
	"theory":      true,
	"concept":     true,
	"hypothesis":  true,
	"research":    true,
	"methodology": true,
	"framework":   true,
	"principle":   true,
	"evidence":    true,
	"equation":    true,
	"function":    true,
	"process":     true,
	"system":      true,
	"structure":   true,
	"definition":  true,
}

// ============================================================================
// ANALYSIS
// ============================================================================

// Analyze scores content and recommends a model for it.
func Analyze(content string) ContentAnalysis {
	words := Words(content)
	wc := len(words)
	sc := SentenceCount(content)

	var avg float64
	if sc > 0 {
		avg = float64(wc) / float64(sc)
	}

	var density float64
	if wc > 0 {
		hits := 0
		for _, w := range words {
			if academicTerms[strings.ToLower(w)] {
				hits++
			}
		}
		density = float64(hits) / float64(wc)
	}

	score := wordScore(wc) + sentenceScore(avg) + densityScore(density)
	rec := RecommendModel(score, wc)

	return ContentAnalysis{
		WordCount:         wc,
		SentenceCount:     sc,
		AvgSentenceLength: avg,
		TopicDensity:      density,
		Complexity:        score,
		RecommendedModel:  rec,
		EstimatedTokens:   EstimateTokens(wc),
		Reasoning:         reasoning(wc, avg, density, score, rec),
	}
}

// Words splits text into maximal runs of letters and digits after NFC
// normalization. Apostrophes and hyphens split words.
func Words(text string) []string {
	return strings.FieldsFunc(util.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SentenceCount counts the non-blank segments between '.', '!' and '?'.
func SentenceCount(text string) int {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

// EstimateTokens approximates the token count for wordCount words.
func EstimateTokens(wordCount int) int {
	return int(math.Ceil(float64(wordCount) * tokensPerWord))
}

func wordScore(wc int) int {
	switch {
	case wc < 500:
		return 1
	case wc < 2000:
		return 2
	case wc < 5000:
		return 3
	default:
		return 4
	}
}

func sentenceScore(avg float64) int {
	switch {
	case avg < 15:
		return 1
	case avg < 25:
		return 2
	default:
		return 3
	}
}

func densityScore(d float64) int {
	switch {
	case d < 0.01:
		return 1
	case d < 0.03:
		return 2
	default:
		return 3
	}
}

// RecommendModel maps a complexity score to a model tag. Mid-range scores
// prefer the smaller 3B model for short texts.
func RecommendModel(score, wordCount int) string {
	switch {
	case score <= 3:
		return "llama3.2:1b"
	case score <= 5:
		if wordCount < 1000 {
			return "llama3.2:3b"
		}
		return "mistral:7b"
	case score <= 7:
		return "llama3.1:8b"
	case score <= 9:
		return "qwen2.5:14b"
	default:
		return "llama3.1:70b"
	}
}

func reasoning(wc int, avg, density float64, score int, rec string) string {
	return fmt.Sprintf(
		"%d words, %.1f words per sentence, %.1f%% academic terms: complexity %d/%d, %s fits best",
		wc, avg, density*100, score, MaxScore, rec,
	)
}

// ============================================================================
// MODEL COMPATIBILITY
// ============================================================================

// GetModelInfo returns catalog details for a model tag.
func GetModelInfo(name string) (model.ModelInfo, bool) {
	return model.GetModelInfo(name)
}

// ValidateModelCompatibility reports whether the content fits the model's
// context window. Unknown models are treated as incompatible.
func ValidateModelCompatibility(name string, a ContentAnalysis) bool {
	info, ok := model.GetModelInfo(name)
	if !ok {
		return false
	}
	return a.EstimatedTokens <= info.ContextWindow
}

// SuggestAlternativeModel returns the first catalog model, smallest first,
// whose context window fits the content.
func SuggestAlternativeModel(a ContentAnalysis) (model.ModelInfo, bool) {
	for _, info := range model.Catalog {
		if a.EstimatedTokens <= info.ContextWindow {
			return info, true
		}
	}
	return model.ModelInfo{}, false
}
