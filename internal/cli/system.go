// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/server"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		addr        string
		startOllama bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API for the web interface",
		Example: `  arcano serve
  arcano serve --addr 127.0.0.1:9000 --start-ollama`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				if startOllama {
					if err := app.Client.EnsureRunning(ctx); err != nil {
						app.Logger.Warn("OLLAMA_START_FAILED", zap.Error(err))
					}
				}
				res := app.Hooks.Connect(ctx)
				if !res.Success {
					fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("warning: "+res.Error+"; generation requests will fail until Ollama is reachable"))
				}
				defer app.Store.Subscribe(notifyCLI(cmd.ErrOrStderr()))()

				cfg := app.Config.Server
				if addr != "" {
					cfg.Addr = addr
				}
				srv := server.New(cfg, app.Hooks, app.Storage, app.Logger)
				fmt.Fprintf(cmd.ErrOrStderr(), "Listening on http://%s (Ctrl+C to stop)\n", srv.Addr())
				return srv.ListenAndServe(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, "+server.DefaultAddr+")")
	cmd.Flags().BoolVar(&startOllama, "start-ollama", false, "start a local Ollama server if none is running")
	return cmd
}

// =============================================================================
// MODELS
// =============================================================================

func newModelsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List installed Ollama models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				models, err := app.Client.ListModels(ctx)
				if err != nil {
					return err
				}
				names := make([]string, len(models))
				for i, m := range models {
					names[i] = m.Name
				}
				app.Store.SetConnection(true, names, "")

				current := app.Store.State().Settings.AI.Model
				return o.emit(cmd, orEmpty(models), func(w io.Writer) {
					if len(models) == 0 {
						fmt.Fprintln(w, DimStyle.Render("No models installed. Install one with: ollama pull "+current))
						return
					}
					t := newTable("", "NAME", "SIZE", "PARAMS", "MODIFIED")
					for _, m := range models {
						mark := ""
						if m.Name == current {
							mark = "*"
						}
						t.add(mark, m.Name, m.FormatSize(), m.Details.ParameterSize, humanize.Time(m.ModifiedAt))
					}
					t.render(w, GetTerminalWidth())
				})
			})
		},
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the configuration file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			return o.emit(cmd, cfg, func(w io.Writer) { fmt.Fprint(w, cfg.String()) })
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.configFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", p)
			}
			if err := config.SaveTOML(config.Default(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", RenderStatus("ok"), p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	get := &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one value, for example ollama.url",
		Args:    cobra.ExactArgs(1),
		Example: `  arcano config get ollama.default_model`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Change one value and save the file",
		Args:    cobra.ExactArgs(2),
		Example: `  arcano config set storage.backend sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			p, err := o.configFile()
			if err != nil {
				return err
			}
			if err := config.SaveTOML(cfg, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", RenderStatus("ok"), args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(show, path, initCmd, get, set, newSettingsCmd(o))
	return cmd
}

// configFile is the file config commands read and write.
func (o *rootOptions) configFile() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPathTOML()
}

// newSettingsCmd manages the persisted user settings, which live in storage
// rather than in the config file.
func newSettingsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or reset the stored user settings",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				s := app.Store.State().Settings
				return o.emit(cmd, s, func(w io.Writer) {
					out, err := yaml.Marshal(s)
					if err != nil {
						fmt.Fprintln(w, err)
						return
					}
					_, _ = w.Write(out)
				})
			})
		},
	}
	var modelName string
	setModel := &cobra.Command{
		Use:   "model <name>",
		Short: "Set the default generation model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelName = args[0]
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Store.UpdateSettings(ctx, func(s *config.Settings) { s.AI.Model = modelName })
			})
		},
	}
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Store.UpdateSettings(ctx, func(s *config.Settings) { *s = config.DefaultSettings() })
			})
		},
	}
	cmd.AddCommand(show, setModel, reset)
	return cmd
}

// =============================================================================
// DOCTOR
// =============================================================================

// CheckStatus is the outcome of one doctor check.
type CheckStatus string

const (
	CheckPass CheckStatus = "ok"
	CheckWarn CheckStatus = "warning"
	CheckFail CheckStatus = "fail"
)

// HealthCheck is one doctor finding.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

var errChecksFailed = errors.New("one or more checks failed")

func newDoctorCmd(o *rootOptions) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Check Ollama, storage and configuration",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				if fix {
					if err := app.Client.EnsureRunning(ctx); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("could not start Ollama: "+err.Error()))
					}
				}
				checks := runChecks(ctx, app)
				failed := 0
				for _, c := range checks {
					if c.Status == CheckFail {
						failed++
					}
				}
				err := o.emit(cmd, checks, func(w io.Writer) {
					fmt.Fprintln(w, TitleStyle.Render("arcano doctor"))
					for _, c := range checks {
						fmt.Fprintf(w, "%s %s: %s\n", RenderStatus(string(c.Status)), c.Name, c.Message)
						if c.Fix != "" && c.Status != CheckPass {
							fmt.Fprintln(w, DimStyle.Render("       "+c.Fix))
						}
					}
				})
				if err != nil {
					return err
				}
				if failed > 0 {
					return errChecksFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "try to start Ollama before checking")
	return cmd
}

func runChecks(ctx context.Context, app *App) []HealthCheck {
	var checks []HealthCheck

	if err := app.Config.Validate(); err != nil {
		checks = append(checks, HealthCheck{Name: "Config", Status: CheckFail, Message: err.Error(), Fix: "arcano config init --force"})
	} else {
		checks = append(checks, HealthCheck{Name: "Config", Status: CheckPass, Message: "valid"})
	}

	if stats, err := app.Storage.GetStatistics(ctx); err != nil {
		checks = append(checks, HealthCheck{Name: "Storage", Status: CheckFail, Message: err.Error(), Fix: "check storage.backend and storage.path in the config"})
	} else {
		checks = append(checks, HealthCheck{Name: "Storage", Status: CheckPass,
			Message: fmt.Sprintf("%s backend, %d file(s)", app.Config.Storage.Backend, stats.TotalFiles)})
	}

	res := app.Hooks.Connect(ctx)
	if !res.Success {
		checks = append(checks,
			HealthCheck{Name: "Ollama", Status: CheckFail, Message: res.Error, Fix: "ollama serve   (or arcano doctor --fix)"},
			HealthCheck{Name: "Model", Status: CheckWarn, Message: "skipped, Ollama is unreachable"})
		return checks
	}
	checks = append(checks, HealthCheck{Name: "Ollama", Status: CheckPass,
		Message: fmt.Sprintf("running at %s, %d model(s)", app.Client.BaseURL(), len(res.Models))})

	want := app.Store.State().Settings.AI.Model
	for _, m := range res.Models {
		if m == want {
			return append(checks, HealthCheck{Name: "Model", Status: CheckPass, Message: want + " installed"})
		}
	}
	return append(checks, HealthCheck{Name: "Model", Status: CheckWarn,
		Message: want + " is not installed", Fix: "ollama pull " + want})
}
