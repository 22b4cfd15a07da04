// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/des-work/Arcano-Desk-sub001/internal/analyzer"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
	"go.uber.org/zap"
)

// =============================================================================
// REQUEST KINDS
// =============================================================================

// SummaryLength controls how long a generated summary is.
type SummaryLength string

const (
	SummaryShort  SummaryLength = "short"
	SummaryMedium SummaryLength = "medium"
	SummaryLong   SummaryLength = "long"
)

// SummaryFormat controls how a generated summary is laid out.
type SummaryFormat string

const (
	FormatParagraph SummaryFormat = "paragraph"
	FormatBullets   SummaryFormat = "bullets"
	FormatOutline   SummaryFormat = "outline"
)

// MaterialKind is the kind of study material to generate.
type MaterialKind string

const (
	MaterialFlashcards MaterialKind = "flashcards"
	MaterialQuestions  MaterialKind = "questions"
	MaterialNotes      MaterialKind = "notes"
)

// TopicType is the kind of explanation requested for a topic.
type TopicType string

const (
	TopicDefinition  TopicType = "definition"
	TopicExample     TopicType = "example"
	TopicExplanation TopicType = "explanation"
	TopicStudyGuide  TopicType = "study_guide"
)

// TopicDepth controls how much the model writes about a topic.
type TopicDepth string

const (
	DepthBrief         TopicDepth = "brief"
	DepthDetailed      TopicDepth = "detailed"
	DepthComprehensive TopicDepth = "comprehensive"
)

// AutoModel asks the client to pick a model from the content analysis.
const AutoModel = "auto"

// maxPromptRunes caps how much source text is pasted into a prompt.
const maxPromptRunes = 48000

// SummaryRequest describes a summary generation.
type SummaryRequest struct {
	Content string        `json:"content" validate:"required"`
	Length  SummaryLength `json:"length" validate:"omitempty,oneof=short medium long"`
	Format  SummaryFormat `json:"format" validate:"omitempty,oneof=paragraph bullets outline"`
	Model   string        `json:"model"`
}

// MaterialRequest describes a study material generation.
type MaterialRequest struct {
	Content string       `json:"content" validate:"required"`
	Type    MaterialKind `json:"type" validate:"required,oneof=flashcards questions notes"`
	Model   string       `json:"model"`
}

// QuestionRequest is a question answered from optional context.
type QuestionRequest struct {
	Question string `json:"question" validate:"required"`
	Context  string `json:"context"`
	Model    string `json:"model"`
}

// TopicRequest asks for an explanation of a topic.
type TopicRequest struct {
	Topic   string     `json:"topic" validate:"required"`
	Type    TopicType  `json:"type" validate:"omitempty,oneof=definition example explanation study_guide"`
	Depth   TopicDepth `json:"depth" validate:"omitempty,oneof=brief detailed comprehensive"`
	Context string     `json:"context"`
	Model   string     `json:"model"`
}

// =============================================================================
// FALLBACK TEXT
// =============================================================================

// Fallback returns the text shown in place of a generated answer when the
// call failed. The underlying cause is logged, not shown.
func Fallback(err error, model string) string {
	if IsModelNotFound(err) {
		return fmt.Sprintf("⚠️ Model %q is not installed. Run `ollama pull %s` and try again.", model, model)
	}
	if errors.Is(err, context.Canceled) {
		return "⚠️ The request was cancelled."
	}
	return "⚠️ Can't reach the local model service. Check your connection and make sure Ollama is running (ollama serve), then try again."
}

func (c *Client) fallback(op string, err error, model string) string {
	c.logger.Warn("GENERATION_FAILED", zap.String("op", op), zap.String("model", model), zap.Error(err))
	return Fallback(err, model)
}

// ResolveModel turns an empty or "auto" model name into a concrete one.
// "auto" asks the analyzer; empty uses the default model.
func (c *Client) ResolveModel(model, content string) string {
	switch model {
	case AutoModel:
		return analyzer.Analyze(content).RecommendedModel
	case "":
		_, def, _ := c.currentOptions()
		return def
	}
	return model
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Summarize generates a summary of req.Content.
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	model := c.ResolveModel(req.Model, req.Content)
	return c.Generate(ctx, model, summaryPrompt(req))
}

// GenerateSummary is Summarize with the failure replaced by fallback text.
func (c *Client) GenerateSummary(ctx context.Context, content string, length SummaryLength, format SummaryFormat, model string) string {
	req := SummaryRequest{Content: content, Length: length, Format: format, Model: model}
	out, err := c.Summarize(ctx, req)
	if err != nil {
		return c.fallback("summary", err, c.ResolveModel(model, content))
	}
	return out
}

func summaryPrompt(req SummaryRequest) string {
	var length string
	switch req.Length {
	case SummaryShort:
		length = "a short summary of 3 to 5 sentences"
	case SummaryLong:
		length = "a thorough summary that covers every major section"
	default:
		length = "a summary of 2 to 3 paragraphs"
	}

	var format string
	switch req.Format {
	case FormatBullets:
		format = "Use a bulleted list, one key idea per bullet."
	case FormatOutline:
		format = "Use a hierarchical outline with headings and sub-points."
	default:
		format = "Write in clear prose paragraphs."
	}

	return fmt.Sprintf(`You are a study assistant. Write %s of the material below for a student preparing for an exam.
%s Keep definitions, key terms and formulas exact.

Material:
%s`, length, format, util.TruncateRunes(req.Content, maxPromptRunes))
}

// =============================================================================
// STUDY MATERIAL
// =============================================================================

// CreateStudyMaterial generates flashcards, practice questions or notes.
func (c *Client) CreateStudyMaterial(ctx context.Context, req MaterialRequest) (string, error) {
	model := c.ResolveModel(req.Model, req.Content)
	return c.Generate(ctx, model, materialPrompt(req))
}

// GenerateStudyMaterial is CreateStudyMaterial with fallback text on failure.
func (c *Client) GenerateStudyMaterial(ctx context.Context, content string, kind MaterialKind, model string) string {
	out, err := c.CreateStudyMaterial(ctx, MaterialRequest{Content: content, Type: kind, Model: model})
	if err != nil {
		return c.fallback("study_material", err, c.ResolveModel(model, content))
	}
	return out
}

func materialPrompt(req MaterialRequest) string {
	var task string
	switch req.Type {
	case MaterialFlashcards:
		task = `Create 10 flashcards from the material. Format each card as:
Q: <question>
A: <answer>
Separate cards with a blank line.`
	case MaterialQuestions:
		task = `Write 8 practice exam questions from the material: a mix of multiple choice, short answer and one essay question.
Put an answer key at the end under the heading "Answers".`
	default:
		task = `Write structured study notes from the material using markdown headings, short bullet points and bold key terms.`
	}

	return fmt.Sprintf("You are a study assistant.\n%s\n\nMaterial:\n%s", task, util.TruncateRunes(req.Content, maxPromptRunes))
}

// =============================================================================
// QUESTIONS
// =============================================================================

// Answer responds to a question, grounded in the optional context.
func (c *Client) Answer(ctx context.Context, req QuestionRequest) (string, error) {
	model := c.ResolveModel(req.Model, req.Context+" "+req.Question)
	return c.Generate(ctx, model, questionPrompt(req))
}

// AskQuestion is Answer with fallback text on failure.
func (c *Client) AskQuestion(ctx context.Context, question, material, model string) string {
	out, err := c.Answer(ctx, QuestionRequest{Question: question, Context: material, Model: model})
	if err != nil {
		return c.fallback("question", err, c.ResolveModel(model, material+" "+question))
	}
	return out
}

func questionPrompt(req QuestionRequest) string {
	if strings.TrimSpace(req.Context) == "" {
		return fmt.Sprintf("You are a patient tutor. Answer the student's question clearly and concisely.\n\nQuestion: %s", req.Question)
	}
	return fmt.Sprintf(`You are a patient tutor. Answer the student's question using the study material below.
If the material does not contain the answer, say so and answer from general knowledge.

Material:
%s

Question: %s`, util.TruncateRunes(req.Context, maxPromptRunes), req.Question)
}

// =============================================================================
// TOPICS
// =============================================================================

var topicMarkers = map[TopicType]string{
	TopicDefinition:  "📖",
	TopicExample:     "💡",
	TopicExplanation: "🔍",
	TopicStudyGuide:  "📚",
}

// ExploreTopic generates an explanation of a topic and formats it.
func (c *Client) ExploreTopic(ctx context.Context, req TopicRequest) (string, error) {
	if req.Type == "" {
		req.Type = TopicExplanation
	}
	if req.Depth == "" {
		req.Depth = DepthDetailed
	}
	model := c.ResolveModel(req.Model, req.Context+" "+req.Topic)
	out, err := c.Generate(ctx, model, topicPrompt(req))
	if err != nil {
		return "", err
	}
	return FormatTopic(out, req.Type), nil
}

// GenerateTopic is ExploreTopic with fallback text on failure.
func (c *Client) GenerateTopic(ctx context.Context, req TopicRequest) string {
	out, err := c.ExploreTopic(ctx, req)
	if err != nil {
		return c.fallback("topic", err, c.ResolveModel(req.Model, req.Context+" "+req.Topic))
	}
	return out
}

// DepthParagraphs returns the paragraph range requested for a depth.
func DepthParagraphs(d TopicDepth) string {
	switch d {
	case DepthBrief:
		return "2-3"
	case DepthComprehensive:
		return "4-6"
	default:
		return "3-5"
	}
}

func topicPrompt(req TopicRequest) string {
	var task string
	switch req.Type {
	case TopicDefinition:
		task = "Give a precise definition of the topic, then explain each part of the definition."
	case TopicExample:
		task = "Explain the topic through concrete, worked examples a student can follow."
	case TopicStudyGuide:
		task = "Write a study guide for the topic: key ideas, common mistakes and a short self-check quiz."
	default:
		task = "Explain the topic clearly, building from the basics to the harder parts."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a patient tutor. Topic: %s\n%s\nWrite %s paragraphs.", req.Topic, task, DepthParagraphs(req.Depth))
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		fmt.Fprintf(&b, "\n\nRelate the explanation to this course material:\n%s", util.TruncateRunes(ctx, maxPromptRunes))
	}
	return b.String()
}

// FormatTopic prefixes the type's marker and collapses runs of blank lines.
func FormatTopic(text string, t TopicType) string {
	text = util.CollapseBlankLines(text)
	marker, ok := topicMarkers[t]
	if !ok {
		marker = topicMarkers[TopicExplanation]
	}
	if strings.HasPrefix(text, marker) {
		return text
	}
	return marker + " " + text
}

// SuggestTopics proposes study topics found in content. It does not call
// the model.
func (c *Client) SuggestTopics(content string, a *analyzer.ContentAnalysis) []analyzer.TopicSuggestion {
	return analyzer.SuggestTopics(content, a)
}
