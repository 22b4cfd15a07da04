// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
)

const (
	maxKeyTerms = 10
	maxDates    = 10
	maxFormulas = 10
)

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
	}

	// A formula is a line fragment with an '=' between math-looking operands.
	formulaPattern = regexp.MustCompile(`[A-Za-z0-9_()\^\s]{1,40}\s?=\s?[A-Za-z0-9_()\^+\-*/.\s]{1,60}`)
	mathOperators  = "+-*/^()"

	stopWords = map[string]bool{
		"the": true, "and": true, "that": true, "with": true, "this": true,
		"from": true, "which": true, "there": true, "their": true, "have": true,
		"were": true, "been": true, "into": true, "also": true, "these": true,
		"they": true, "than": true, "then": true, "when": true, "where": true,
		"what": true, "will": true, "would": true, "could": true, "should": true,
		"about": true, "other": true, "such": true, "each": true, "more": true,
		"some": true, "only": true, "over": true, "because": true, "between": true,
	}
)

// ExtractMetadata pulls key terms, dates and formulas out of document text.
func ExtractMetadata(content string) model.FileMetadata {
	words := Words(content)
	return model.FileMetadata{
		KeyTerms:  keyTerms(words),
		Dates:     extractDates(content),
		Formulas:  extractFormulas(content),
		WordCount: len(words),
	}
}

// keyTerms returns the most frequent non-trivial words. Ties break
// alphabetically so output is stable.
func keyTerms(words []string) []string {
	counts := make(map[string]int)
	for _, w := range words {
		lw := strings.ToLower(w)
		if len([]rune(lw)) < 5 || stopWords[lw] || isNumeric(lw) {
			continue
		}
		counts[lw]++
	}

	type termCount struct {
		term  string
		count int
	}
	ranked := make([]termCount, 0, len(counts))
	for term, c := range counts {
		if c >= 2 {
			ranked = append(ranked, termCount{term, c})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].term < ranked[j].term
	})

	var out []string
	for i := 0; i < len(ranked) && i < maxKeyTerms; i++ {
		out = append(out, ranked[i].term)
	}
	return out
}

func extractDates(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range datePatterns {
		for _, m := range p.FindAllString(content, -1) {
			if !seen[m] && len(out) < maxDates {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func extractFormulas(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "=") {
			continue
		}
		for _, m := range formulaPattern.FindAllString(line, -1) {
			m = strings.TrimSpace(m)
			lhs, rhs, _ := strings.Cut(m, "=")
			if strings.TrimSpace(lhs) == "" || strings.TrimSpace(rhs) == "" {
				continue
			}
			if !strings.ContainsAny(rhs, mathOperators) && !strings.ContainsAny(rhs, "0123456789") {
				continue
			}
			if !seen[m] && len(out) < maxFormulas {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
