// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

// TopicKind describes how a suggested topic was found.
type TopicKind string

const (
	TopicConcept TopicKind = "concept"
	TopicTerm    TopicKind = "term"
	TopicAcronym TopicKind = "acronym"
)

// TopicSuggestion is a candidate topic found in study material.
type TopicSuggestion struct {
	Topic      string    `json:"topic"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Type       TopicKind `json:"type"`
}

const (
	maxSuggestions = 10
	maxConfidence  = 0.95
	frequencyBonus = 0.05
)

var (
	titleCaseRun = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+(?:of\s+|and\s+)?[A-Z][a-z]+){1,3}\b`)
	hyphenated   = regexp.MustCompile(`\b[A-Za-z]{3,}(?:-[A-Za-z]{2,})+\b`)
	acronym      = regexp.MustCompile(`\b[A-Z]{2,6}s?\b`)

	baseConfidence = map[TopicKind]float64{
		TopicConcept: 0.6,
		TopicTerm:    0.5,
		TopicAcronym: 0.55,
	}

	reasons = map[TopicKind]string{
		TopicConcept: "Capitalized phrase that reads like a named concept",
		TopicTerm:    "Compound term used in the material",
		TopicAcronym: "Acronym that likely needs a definition",
	}

	// Sentence-start phrases that title-case matching would otherwise catch.
	commonOpeners = map[string]bool{"The": true, "This": true, "In": true, "A": true, "An": true}
)

// SuggestTopics finds candidate study topics with lexical heuristics:
// Title Case runs, hyphenated compounds and acronyms. Results are
// de-duplicated case-insensitively, ranked by confidence and capped at ten.
// The analysis, when non-nil, boosts confidence for dense material.
func SuggestTopics(content string, a *ContentAnalysis) []TopicSuggestion {
	type candidate struct {
		text  string
		kind  TopicKind
		count int
	}
	found := make(map[string]*candidate)
	var order []string

	add := func(text string, kind TopicKind) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if c, ok := found[key]; ok {
			c.count++
			return
		}
		found[key] = &candidate{text: text, kind: kind, count: 1}
		order = append(order, key)
	}

	for _, m := range titleCaseRun.FindAllString(content, -1) {
		first, rest, _ := strings.Cut(m, " ")
		if commonOpeners[first] {
			if !strings.Contains(rest, " ") {
				continue
			}
			m = rest
		}
		add(m, TopicConcept)
	}
	for _, m := range hyphenated.FindAllString(content, -1) {
		add(m, TopicTerm)
	}
	for _, m := range acronym.FindAllString(content, -1) {
		add(strings.TrimSuffix(m, "s"), TopicAcronym)
	}

	bonus := 0.0
	if a != nil && a.TopicDensity >= 0.03 {
		bonus = frequencyBonus
	}

	out := make([]TopicSuggestion, 0, len(order))
	for _, key := range order {
		c := found[key]
		conf := baseConfidence[c.kind] + float64(c.count-1)*frequencyBonus + bonus
		if conf > maxConfidence {
			conf = maxConfidence
		}
		out = append(out, TopicSuggestion{
			Topic:      c.text,
			Reason:     reasons[c.kind],
			Confidence: conf,
			Type:       c.kind,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
