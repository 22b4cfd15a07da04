// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/spf13/cobra"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags and the way commands get an App.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonOut    bool
	open       Opener
}

// loadConfig reads the config file named by --config, or the default one.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("warning: "+err.Error()+"; using defaults"))
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// withApp opens an App for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := o.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("warning: "+cerr.Error()))
		}
	}()
	return fn(ctx, app)
}

// emit prints data as a JSON envelope under --json, or calls human.
func (o *rootOptions) emit(cmd *cobra.Command, data any, human func(w io.Writer)) error {
	if o.jsonOut {
		return NewJSONResponse(cmd.CommandPath(), data).Print(cmd.OutOrStdout())
	}
	human(cmd.OutOrStdout())
	return nil
}

// NewRootCmd builds the arcano command tree. A nil opener uses Open.
func NewRootCmd(open Opener) *cobra.Command {
	if open == nil {
		open = Open
	}
	opts := &rootOptions{open: open}

	root := &cobra.Command{
		Use:   "arcano",
		Short: "Local study assistant backed by Ollama",
		Long: `arcano turns lecture notes and slides into summaries, flashcards,
practice questions and explanations using a model running on this machine.`,
		Version:       fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.arcano/config.toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddGroup(
		&cobra.Group{ID: "study", Title: "Study:"},
		&cobra.Group{ID: "library", Title: "Library:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	for _, c := range []*cobra.Command{
		newSummarizeCmd(opts),
		newMaterialCmd(opts),
		newQuizCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newTopicCmd(opts),
		newAnalyzeCmd(opts),
	} {
		c.GroupID = "study"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{
		newImportCmd(opts),
		newFilesCmd(opts),
		newCoursesCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newPackCmd(opts),
		newImportDataCmd(opts),
		newWatchCmd(opts),
	} {
		c.GroupID = "library"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{
		newServeCmd(opts),
		newModelsCmd(opts),
		newConfigCmd(opts),
		newDoctorCmd(opts),
	} {
		c.GroupID = "system"
		root.AddCommand(c)
	}
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(nil)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), describeError(err))
}
