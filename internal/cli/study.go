// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/des-work/Arcano-Desk-sub001/internal/analyzer"
	"github.com/des-work/Arcano-Desk-sub001/internal/extract"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/des-work/Arcano-Desk-sub001/internal/validation"
	"github.com/spf13/cobra"
)

// =============================================================================
// SOURCES
// =============================================================================

// source is the text a study command works on.
type source struct {
	name    string
	content string
	fileID  string // set when the text is a stored file
}

// readSource resolves arg as "-" (stdin), a stored file id, or a document
// path, in that order.
func readSource(app *App, arg string, stdin io.Reader) (source, error) {
	settings := app.Store.State().Settings
	limit := settings.MaxFileBytes()
	if arg == "-" {
		_, text, err := extract.ExtractReader("stdin.txt", stdin, limit)
		return source{name: "stdin", content: text}, err
	}
	if rec, err := app.Hooks.File(arg); err == nil {
		return source{name: rec.Name, content: rec.Content, fileID: rec.ID}, nil
	}
	f, err := os.Open(arg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return source{}, fmt.Errorf("%q is not a stored file id or a readable path", arg)
		}
		return source{}, err
	}
	defer f.Close()
	_, text, err := extract.ExtractReader(filepath.Base(arg), f, limit)
	if err != nil {
		return source{}, fmt.Errorf("%s: %w", arg, err)
	}
	return source{name: filepath.Base(arg), content: text}, nil
}

// checkRequest validates a generation request built from flags.
func checkRequest(req any) error {
	if problems := validation.Struct(req); len(problems) > 0 {
		return fmt.Errorf("invalid options: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GenerationResult is the --json payload of the generation commands.
type GenerationResult struct {
	Text     string `json:"text"`
	Source   string `json:"source,omitempty"`
	FileID   string `json:"fileId,omitempty"`
	Material string `json:"materialId,omitempty"`
}

// printGeneration prints model output. A failed call still prints its
// fallback text before the error is returned.
func (o *rootOptions) printGeneration(cmd *cobra.Command, res GenerationResult, err error) error {
	w := cmd.OutOrStdout()
	if o.jsonOut {
		if err != nil {
			if perr := NewJSONErrorResponse(cmd.CommandPath(), err, res).Print(w); perr != nil {
				return perr
			}
			return err
		}
		return NewJSONResponse(cmd.CommandPath(), res).Print(w)
	}
	if res.Text != "" {
		printGenerated(w, res.Text)
	}
	return err
}

// =============================================================================
// SUMMARIZE
// =============================================================================

func newSummarizeCmd(o *rootOptions) *cobra.Command {
	var length, format, modelName string
	cmd := &cobra.Command{
		Use:   "summarize <file-id|path|->",
		Short: "Summarize a document",
		Long: `Summarize a stored file, a document on disk or stdin.

Summaries of stored files are saved on the file record.`,
		Example: `  arcano summarize lecture-03.pdf --length short
  arcano summarize 5f1c0e2a-... --format outline
  cat notes.txt | arcano summarize - --format bullets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				src, err := readSource(app, args[0], cmd.InOrStdin())
				if err != nil {
					return err
				}
				l, f := ollama.SummaryLength(length), ollama.SummaryFormat(format)
				if err := checkRequest(ollama.SummaryRequest{Content: src.content, Length: l, Format: f}); err != nil {
					return err
				}
				if src.fileID != "" && modelName == "" {
					rec, err := app.Hooks.SummarizeFile(ctx, src.fileID, l, f)
					return o.printGeneration(cmd, GenerationResult{Text: rec.Summary, Source: src.name, FileID: rec.ID}, err)
				}
				text, err := app.Hooks.GenerateSummary(ctx, src.content, l, f, modelName)
				return o.printGeneration(cmd, GenerationResult{Text: text, Source: src.name}, err)
			})
		},
	}
	cmd.Flags().StringVarP(&length, "length", "l", string(ollama.SummaryMedium), "short, medium or long")
	cmd.Flags().StringVarP(&format, "format", "f", string(ollama.FormatParagraph), "paragraph, bullets or outline")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", `model to use, or "auto" to pick from the content`)
	return cmd
}

// =============================================================================
// STUDY MATERIAL
// =============================================================================

type materialOptions struct {
	kind      string
	modelName string
	save      bool
	course    string
}

func (o *rootOptions) runMaterial(cmd *cobra.Command, arg string, mo materialOptions) error {
	return o.withApp(cmd, func(ctx context.Context, app *App) error {
		src, err := readSource(app, arg, cmd.InOrStdin())
		if err != nil {
			return err
		}
		kind := ollama.MaterialKind(mo.kind)
		if err := checkRequest(ollama.MaterialRequest{Content: src.content, Type: kind}); err != nil {
			return err
		}
		if src.fileID != "" && mo.modelName == "" {
			m, err := app.Hooks.CreateStudyMaterialFromFile(ctx, src.fileID, kind)
			return o.printGeneration(cmd, GenerationResult{Text: m.Content, Source: src.name, FileID: src.fileID, Material: m.ID}, err)
		}

		text, err := app.Hooks.GenerateStudyMaterial(ctx, src.content, kind, mo.modelName)
		res := GenerationResult{Text: text, Source: src.name, FileID: src.fileID}
		if err == nil && mo.save {
			m := model.StudyMaterial{
				ID:        model.NewID(),
				Title:     fmt.Sprintf("%s: %s", titleCase(mo.kind), src.name),
				Type:      model.MaterialType(kind),
				Content:   text,
				CourseID:  mo.course,
				CreatedAt: app.now(),
				FileID:    src.fileID,
			}
			if err := app.Store.SaveStudyMaterial(ctx, m); err != nil {
				return err
			}
			res.Material = m.ID
		}
		return o.printGeneration(cmd, res, err)
	})
}

func newMaterialCmd(o *rootOptions) *cobra.Command {
	mo := materialOptions{}
	cmd := &cobra.Command{
		Use:     "material <file-id|path|->",
		Aliases: []string{"study"},
		Short:   "Generate flashcards, questions or notes",
		Long: `Generate study material from a document.

Material made from a stored file is saved and linked to it. Use --save to
keep material made from a path or stdin.`,
		Example: `  arcano material chapter2.docx --type flashcards --save --course <id>
  arcano material 5f1c0e2a-... --type notes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runMaterial(cmd, args[0], mo)
		},
	}
	cmd.Flags().StringVarP(&mo.kind, "type", "t", string(ollama.MaterialFlashcards), "flashcards, questions or notes")
	addMaterialFlags(cmd, &mo)
	return cmd
}

func newQuizCmd(o *rootOptions) *cobra.Command {
	mo := materialOptions{kind: string(ollama.MaterialQuestions)}
	cmd := &cobra.Command{
		Use:   "quiz <file-id|path|->",
		Short: "Generate practice questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runMaterial(cmd, args[0], mo)
		},
	}
	addMaterialFlags(cmd, &mo)
	return cmd
}

func addMaterialFlags(cmd *cobra.Command, mo *materialOptions) {
	cmd.Flags().StringVarP(&mo.modelName, "model", "m", "", `model to use, or "auto"`)
	cmd.Flags().BoolVar(&mo.save, "save", false, "save the generated material")
	cmd.Flags().StringVar(&mo.course, "course", "", "course id for saved material")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// =============================================================================
// ASK
// =============================================================================

func newAskCmd(o *rootOptions) *cobra.Command {
	var file, modelName string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question, optionally about a document",
		Example: `  arcano ask "What is a Nash equilibrium?"
  arcano ask "Which dates matter for the exam?" --file history.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				var src source
				if file != "" {
					var err error
					if src, err = readSource(app, file, cmd.InOrStdin()); err != nil {
						return err
					}
				}
				text, err := app.Hooks.AskQuestion(ctx, strings.Join(args, " "), src.content, modelName)
				return o.printGeneration(cmd, GenerationResult{Text: text, Source: src.name, FileID: src.fileID}, err)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file id or path to answer from")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", `model to use, or "auto"`)
	return cmd
}

// =============================================================================
// TOPIC
// =============================================================================

func newTopicCmd(o *rootOptions) *cobra.Command {
	var req ollama.TopicRequest
	var kind, depth, file string
	cmd := &cobra.Command{
		Use:   "topic <topic>",
		Short: "Explain a topic",
		Example: `  arcano topic "Krebs cycle" --type study_guide --depth comprehensive
  arcano topic "opportunity cost" --type example --file econ-week1.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				r := req
				r.Topic = strings.Join(args, " ")
				r.Type = ollama.TopicType(kind)
				r.Depth = ollama.TopicDepth(depth)
				var src source
				if file != "" {
					var err error
					if src, err = readSource(app, file, cmd.InOrStdin()); err != nil {
						return err
					}
					r.Context = src.content
				}
				if err := checkRequest(r); err != nil {
					return err
				}
				text, err := app.Hooks.GenerateTopic(ctx, r)
				return o.printGeneration(cmd, GenerationResult{Text: text, Source: src.name, FileID: src.fileID}, err)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", string(ollama.TopicExplanation), "definition, example, explanation or study_guide")
	cmd.Flags().StringVarP(&depth, "depth", "d", string(ollama.DepthDetailed), "brief, detailed or comprehensive")
	cmd.Flags().StringVarP(&file, "file", "f", "", "file id or path to use as context")
	cmd.Flags().StringVarP(&req.Model, "model", "m", "", `model to use, or "auto"`)
	return cmd
}

// =============================================================================
// ANALYZE
// =============================================================================

// AnalysisReport is the --json payload of analyze.
type AnalysisReport struct {
	Source      string                     `json:"source"`
	Analysis    analyzer.ContentAnalysis   `json:"analysis"`
	Metadata    model.FileMetadata         `json:"metadata"`
	Suggestions []analyzer.TopicSuggestion `json:"suggestions"`
}

func newAnalyzeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file-id|path|->",
		Short: "Score a document and suggest topics without calling the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				src, err := readSource(app, args[0], cmd.InOrStdin())
				if err != nil {
					return err
				}
				rep := AnalysisReport{
					Source:      src.name,
					Analysis:    app.Hooks.Analyze(src.content),
					Metadata:    analyzer.ExtractMetadata(src.content),
					Suggestions: app.Hooks.SuggestTopics(src.content),
				}
				return o.emit(cmd, rep, func(w io.Writer) { printAnalysis(w, rep) })
			})
		},
	}
}

func printAnalysis(w io.Writer, rep AnalysisReport) {
	a := rep.Analysis
	fmt.Fprintln(w, TitleStyle.Render("Analysis of "+rep.Source))
	printField(w, "Words", a.WordCount)
	printField(w, "Sentences", a.SentenceCount)
	printField(w, "Avg sentence", fmt.Sprintf("%.1f words", a.AvgSentenceLength))
	printField(w, "Topic density", fmt.Sprintf("%.1f%%", a.TopicDensity*100))
	printField(w, "Complexity", fmt.Sprintf("%d/10 (%s)", a.Complexity, a.Level()))
	printField(w, "Est. tokens", a.EstimatedTokens)
	printField(w, "Model", a.RecommendedModel)
	fmt.Fprintln(w, DimStyle.Render(a.Reasoning))

	if m := rep.Metadata; len(m.KeyTerms)+len(m.Dates)+len(m.Formulas) > 0 {
		fmt.Fprintln(w)
		if len(m.KeyTerms) > 0 {
			printField(w, "Key terms", strings.Join(m.KeyTerms, ", "))
		}
		if len(m.Dates) > 0 {
			printField(w, "Dates", strings.Join(m.Dates, ", "))
		}
		if len(m.Formulas) > 0 {
			printField(w, "Formulas", strings.Join(m.Formulas, "; "))
		}
	}

	if len(rep.Suggestions) == 0 {
		return
	}
	fmt.Fprintln(w)
	t := newTable("TOPIC", "KIND", "CONFIDENCE", "REASON")
	for _, s := range rep.Suggestions {
		t.add(s.Topic, string(s.Type), fmt.Sprintf("%.0f%%", s.Confidence*100), s.Reason)
	}
	t.render(w, GetTerminalWidth())
}

// notifyCLI mirrors a store notification on stderr, for commands that run
// long enough for notifications to matter.
func notifyCLI(w io.Writer) func(store.State) {
	var mu sync.Mutex
	seen := map[string]bool{}
	return func(s store.State) {
		mu.Lock()
		defer mu.Unlock()
		for _, n := range s.UI.Notifications {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			fmt.Fprintf(w, "%s %s\n", RenderStatus(string(n.Type)), n.Message)
		}
	}
}
