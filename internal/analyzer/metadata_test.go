// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lectureNotes = `Cellular Respiration overview, recorded 2024-09-14.
Glycolysis happens in the cytoplasm. Glycolysis produces pyruvate.
The Krebs Cycle runs in the mitochondria. ATP is produced by ATP synthase.
Exam on October 3, 2024 covers glycolysis and the Krebs Cycle.
Energy yield: ATP = 2 + 2 + 34
Remember that the light-dependent reactions belong to photosynthesis.
`

func TestExtractMetadata(t *testing.T) {
	md := ExtractMetadata(lectureNotes)

	require.NotEmpty(t, md.KeyTerms)
	assert.Equal(t, "glycolysis", md.KeyTerms[0])
	assert.Contains(t, md.Dates, "2024-09-14")
	assert.Contains(t, md.Dates, "October 3, 2024")
	require.Len(t, md.Formulas, 1)
	assert.Contains(t, md.Formulas[0], "ATP = 2 + 2 + 34")
	assert.Greater(t, md.WordCount, 40)
}

func TestExtractMetadata_Empty(t *testing.T) {
	md := ExtractMetadata("")
	assert.Empty(t, md.KeyTerms)
	assert.Empty(t, md.Dates)
	assert.Empty(t, md.Formulas)
	assert.Equal(t, 0, md.WordCount)
}

func TestSuggestTopics(t *testing.T) {
	got := SuggestTopics(lectureNotes, nil)
	require.NotEmpty(t, got)
	require.LessOrEqual(t, len(got), 10)

	byTopic := make(map[string]TopicSuggestion)
	for _, s := range got {
		byTopic[s.Topic] = s
	}

	assert.Equal(t, TopicConcept, byTopic["Krebs Cycle"].Type)
	assert.Equal(t, TopicAcronym, byTopic["ATP"].Type)
	assert.Equal(t, TopicTerm, byTopic["light-dependent"].Type)

	// ATP (three mentions) ties Krebs Cycle (two, as a concept) and sorts first.
	assert.Equal(t, "ATP", got[0].Topic)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
	}
	for _, s := range got {
		assert.LessOrEqual(t, s.Confidence, 0.95)
	}
}

func TestSuggestTopics_Dedup(t *testing.T) {
	got := SuggestTopics("DNA and DNA and DNAs", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "DNA", got[0].Topic)
	assert.InDelta(t, 0.65, got[0].Confidence, 1e-9)
}

func TestSuggestTopics_Empty(t *testing.T) {
	assert.Empty(t, SuggestTopics("", nil))
}
