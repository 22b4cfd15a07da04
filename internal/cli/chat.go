// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// historyReader is a liner-backed reader with history saved in the config
// directory.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader() *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	r := &historyReader{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(r.historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *historyReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (r *historyReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.line.Close()
}

// plainReader reads lines from a pipe or buffer.
type plainReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (r *plainReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *plainReader) Close() error { return nil }

func newLineReader(in io.Reader, out io.Writer) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		return newHistoryReader()
	}
	return &plainReader{sc: bufio.NewScanner(in), out: out}
}

// =============================================================================
// CHAT
// =============================================================================

const chatHelp = `Type a question and press Enter. Commands:
  /file <id|path>   use a document as context
  /clear            drop the current document
  /summary          summarize the current document
  /flashcards       make flashcards from the current document
  /quiz             make practice questions from the current document
  /topic <topic>    explain a topic, using the document as context
  /model <name>     switch model ("auto" picks from the content)
  /help             show this help
  /exit             leave the chat`

// chatSession is the state of one interactive chat.
type chatSession struct {
	app       *App
	out       io.Writer
	in        io.Reader
	doc       source
	modelName string
}

func newChatCmd(o *rootOptions) *cobra.Command {
	var file, modelName string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long:  "Start an interactive session for asking questions about a document.\n\n" + chatHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				s := &chatSession{app: app, out: cmd.OutOrStdout(), in: cmd.InOrStdin(), modelName: modelName}
				if file != "" {
					if err := s.load(file); err != nil {
						return err
					}
				}
				return s.run(ctx)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file id or path to use as context")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", `model to use, or "auto"`)
	return cmd
}

func (s *chatSession) load(arg string) error {
	doc, err := readSource(s.app, arg, s.in)
	if err != nil {
		return err
	}
	s.doc = doc
	fmt.Fprintf(s.out, "%s using %s as context\n", RenderStatus("ok"), doc.name)
	return nil
}

// prompt is plain text; liner miscounts the width of styled prompts.
func (s *chatSession) prompt() string {
	if s.doc.name != "" {
		return s.doc.name + " > "
	}
	return "> "
}

func (s *chatSession) run(ctx context.Context) error {
	input := newLineReader(s.in, s.out)
	defer input.Close()

	if res := s.app.Hooks.Connect(ctx); !res.Success {
		fmt.Fprintln(s.out, WarningStyle.Render("warning: "+res.Error))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, /exit to leave."))

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := input.Prompt(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			if done := s.command(ctx, line); done {
				return nil
			}
			continue
		}
		text, err := s.app.Hooks.AskQuestion(ctx, line, s.doc.content, s.modelName)
		s.show(text, err)
	}
}

// command runs a slash command and reports whether the chat should end.
func (s *chatSession) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit", "/q":
		return true
	case "/help", "/h", "/?":
		fmt.Fprintln(s.out, chatHelp)
	case "/file":
		if arg == "" {
			fmt.Fprintln(s.out, ErrorStyle.Render("usage: /file <id|path>"))
			break
		}
		if err := s.load(arg); err != nil {
			fmt.Fprintln(s.out, ErrorStyle.Render(describeError(err)))
		}
	case "/clear":
		s.doc = source{}
		fmt.Fprintln(s.out, DimStyle.Render("context cleared"))
	case "/model":
		if arg == "" {
			fmt.Fprintf(s.out, "model: %s\n", s.currentModel())
			break
		}
		s.modelName = arg
		fmt.Fprintf(s.out, "%s model set to %s\n", RenderStatus("ok"), arg)
	case "/summary":
		if s.requireDoc() {
			s.show(s.app.Hooks.GenerateSummary(ctx, s.doc.content, ollama.SummaryMedium, ollama.FormatBullets, s.modelName))
		}
	case "/flashcards":
		if s.requireDoc() {
			s.show(s.app.Hooks.GenerateStudyMaterial(ctx, s.doc.content, ollama.MaterialFlashcards, s.modelName))
		}
	case "/quiz":
		if s.requireDoc() {
			s.show(s.app.Hooks.GenerateStudyMaterial(ctx, s.doc.content, ollama.MaterialQuestions, s.modelName))
		}
	case "/topic":
		if arg == "" {
			fmt.Fprintln(s.out, ErrorStyle.Render("usage: /topic <topic>"))
			break
		}
		s.show(s.app.Hooks.GenerateTopic(ctx, ollama.TopicRequest{
			Topic:   arg,
			Type:    ollama.TopicExplanation,
			Depth:   ollama.DepthDetailed,
			Context: s.doc.content,
			Model:   s.modelName,
		}))
	default:
		fmt.Fprintf(s.out, "%s unknown command %s (try /help)\n", ErrorStyle.Render("!"), name)
	}
	return false
}

func (s *chatSession) currentModel() string {
	if s.modelName != "" {
		return s.modelName
	}
	return s.app.Store.State().Settings.AI.Model
}

func (s *chatSession) requireDoc() bool {
	if s.doc.content == "" {
		fmt.Fprintln(s.out, ErrorStyle.Render("no document loaded; use /file <id|path> first"))
		return false
	}
	return true
}

func (s *chatSession) show(text string, err error) {
	printGenerated(s.out, text)
	if err != nil {
		fmt.Fprintln(s.out, DimStyle.Render(describeError(err)))
	}
}
