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
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/export"
	"github.com/des-work/Arcano-Desk-sub001/internal/hooks"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// =============================================================================
// IMPORT
// =============================================================================

func newImportCmd(o *rootOptions) *cobra.Command {
	var course string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import documents into the library",
		Example: `  arcano import lecture-01.pdf lecture-02.pdf --course <course-id>
  arcano import slides/*.pptx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				if course != "" && !hasCourse(app.Store.State(), course) {
					return fmt.Errorf("unknown course %q (list courses with: arcano courses list)", course)
				}
				var (
					imported []model.FileRecord
					errs     []error
				)
				for _, path := range args {
					rec, err := importPath(ctx, app, path, course)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", path, err))
						continue
					}
					imported = append(imported, rec)
				}
				err := o.emit(cmd, orEmpty(imported), func(w io.Writer) {
					for _, rec := range imported {
						fmt.Fprintf(w, "%s %s  %s  %s\n", RenderStatus("ok"), rec.Name, DimStyle.Render(rec.ID), wordsOf(rec))
					}
				})
				return errors.Join(append([]error{err}, errs...)...)
			})
		},
	}
	cmd.Flags().StringVarP(&course, "course", "c", "", "course id to file the documents under")
	return cmd
}

func importPath(ctx context.Context, app *App, path, course string) (model.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.FileRecord{}, err
	}
	defer f.Close()
	return app.Hooks.ImportDocument(ctx, filepath.Base(path), f, course)
}

func hasCourse(s store.State, id string) bool {
	for _, c := range s.Courses.Items {
		if c.ID == id {
			return true
		}
	}
	return false
}

func wordsOf(f model.FileRecord) string {
	if f.Metadata == nil {
		return ""
	}
	return humanize.Comma(int64(f.Metadata.WordCount)) + " words"
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// =============================================================================
// FILES
// =============================================================================

func newFilesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List, show and remove stored files",
	}

	var course string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				st := app.Store.State()
				files := st.Files.Items
				if course != "" {
					files = app.Store.FilesByCourse(course)
				}
				return o.emit(cmd, orEmpty(files), func(w io.Writer) {
					if len(files) == 0 {
						fmt.Fprintln(w, DimStyle.Render("No files. Add some with: arcano import <file>"))
						return
					}
					t := newTable("ID", "NAME", "TYPE", "COURSE", "WORDS", "UPDATED", "SUMMARY")
					for _, f := range files {
						courseName := ""
						if f.CourseID != "" {
							courseName = st.CourseName(f.CourseID)
						}
						summarized := ""
						if f.Summary != "" {
							summarized = "yes"
						}
						t.add(f.ID, f.Name, string(f.Type), courseName, wordsOf(f), humanize.Time(f.LastTouched()), summarized)
					}
					t.render(w, GetTerminalWidth())
				})
			})
		},
	}
	list.Flags().StringVarP(&course, "course", "c", "", "only files of this course")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored file and its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				f, err := app.Hooks.File(args[0])
				if err != nil {
					return err
				}
				return o.emit(cmd, f, func(w io.Writer) { printFile(w, app.Store.State(), f) })
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Remove stored files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				for _, id := range args {
					if err := app.Store.DeleteFile(ctx, id); err != nil {
						return err
					}
				}
				return o.emit(cmd, map[string][]string{"deleted": args}, func(w io.Writer) {
					fmt.Fprintf(w, "%s removed %d file(s)\n", RenderStatus("ok"), len(args))
				})
			})
		},
	}

	cmd.AddCommand(list, show, rm)
	return cmd
}

func printFile(w io.Writer, st store.State, f model.FileRecord) {
	fmt.Fprintln(w, TitleStyle.Render(f.Name))
	printField(w, "ID", f.ID)
	printField(w, "Type", f.Type)
	if f.CourseID != "" {
		printField(w, "Course", st.CourseName(f.CourseID))
	}
	printField(w, "Uploaded", f.UploadedAt.Local().Format(time.DateTime))
	if f.LastProcessed != nil {
		printField(w, "Processed", humanize.Time(*f.LastProcessed))
	}
	if m := f.Metadata; m != nil {
		printField(w, "Words", humanize.Comma(int64(m.WordCount)))
		if len(m.KeyTerms) > 0 {
			printField(w, "Key terms", strings.Join(m.KeyTerms, ", "))
		}
	}
	fmt.Fprintln(w)
	if f.Summary == "" {
		fmt.Fprintln(w, DimStyle.Render(util.TruncateRunes(util.CollapseBlankLines(f.Content), 400)))
		return
	}
	printGenerated(w, f.Summary)
}

// =============================================================================
// COURSES
// =============================================================================

func newCoursesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Manage courses",
	}

	var code, color string
	add := &cobra.Command{
		Use:     "add <name>",
		Short:   "Create a course",
		Example: `  arcano courses add "Organic Chemistry" --code CHEM201 --color "#8b5cf6"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				c := model.Course{
					ID:        model.NewID(),
					Name:      strings.Join(args, " "),
					Code:      code,
					Color:     color,
					CreatedAt: app.now(),
				}
				if err := app.Store.SaveCourse(ctx, c); err != nil {
					return err
				}
				return o.emit(cmd, c, func(w io.Writer) {
					fmt.Fprintf(w, "%s created %s  %s\n", RenderStatus("ok"), c.Name, DimStyle.Render(c.ID))
				})
			})
		},
	}
	add.Flags().StringVar(&code, "code", "", "course code")
	add.Flags().StringVar(&color, "color", "#6366f1", "display color")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List courses",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				st := app.Store.State()
				courses := orEmpty(st.Courses.Items)
				return o.emit(cmd, courses, func(w io.Writer) {
					if len(courses) == 0 {
						fmt.Fprintln(w, DimStyle.Render(`No courses. Create one with: arcano courses add "<name>"`))
						return
					}
					t := newTable("ID", "NAME", "CODE", "FILES", "CREATED")
					for _, c := range courses {
						t.add(c.ID, c.Name, c.Code, fmt.Sprint(len(app.Store.FilesByCourse(c.ID))), humanize.Time(c.CreatedAt))
					}
					t.render(w, GetTerminalWidth())
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a course with its files and study material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				id := args[0]
				files := len(app.Store.FilesByCourse(id))
				if err := app.Store.DeleteCourse(ctx, id); err != nil {
					return err
				}
				return o.emit(cmd, map[string]any{"deleted": id, "files": files}, func(w io.Writer) {
					fmt.Fprintf(w, "%s deleted course and %d file(s)\n", RenderStatus("ok"), files)
				})
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}

// =============================================================================
// STATS
// =============================================================================

// StatsReport is the --json payload of stats.
type StatsReport struct {
	Storage     storage.Statistics  `json:"storage"`
	Activity    store.ActivityStats `json:"activity"`
	SuccessRate float64             `json:"successRate"`
}

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				stats, err := app.Storage.GetStatistics(ctx)
				if err != nil {
					return err
				}
				act := app.Store.State().Activity
				rep := StatsReport{Storage: stats, Activity: act, SuccessRate: act.SuccessRate()}
				return o.emit(cmd, rep, func(w io.Writer) {
					fmt.Fprintln(w, TitleStyle.Render("Library"))
					printField(w, "Files", stats.TotalFiles)
					printField(w, "Courses", stats.TotalCourses)
					printField(w, "Study materials", stats.TotalMaterials)
					printField(w, "Content", humanize.Comma(int64(stats.TotalContentSize))+" characters")
					if stats.LastActivity != nil {
						printField(w, "Last activity", humanize.Time(*stats.LastActivity))
					} else {
						printField(w, "Last activity", "never")
					}
				})
			})
		},
	}
}

// =============================================================================
// EXPORT / IMPORT DATA
// =============================================================================

func parseFormat(s string) (storage.Format, error) {
	switch f := storage.Format(strings.ToLower(s)); f {
	case storage.FormatJSON, storage.FormatYAML:
		return f, nil
	case "yml":
		return storage.FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (use json or yaml)", s)
}

// formatFromPath guesses the format from a file extension.
func formatFromPath(path string) storage.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return storage.FormatYAML
	}
	return storage.FormatJSON
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export files, courses and study material",
		Example: `  arcano export -o backup.json
  arcano export --format yaml > backup.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = string(formatFromPath(output))
			}
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				bundle, err := app.Storage.ExportData(ctx)
				if err != nil {
					return err
				}
				data, err := bundle.Encode(f)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := util.AtomicWriteFile(output, data, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s exported %d file(s), %d course(s), %d material(s) to %s (%s)\n",
					RenderStatus("ok"), len(bundle.Files), len(bundle.Courses), len(bundle.Materials),
					output, humanize.Bytes(uint64(len(data))))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from the output extension, else json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// newPackCmd renders summaries and study material as a readable document.
func newPackCmd(o *rootOptions) *cobra.Command {
	var course, format, output string
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Export summaries and study material as Markdown or HTML",
		Example: `  arcano pack --course 3f2a... -o biology.md
  arcano pack --format html -o library.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			exp, err := export.ForFormat(format, export.DefaultOptions())
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				pack, err := export.NewPack(app.Store.State(), course, app.now())
				if err != nil {
					return err
				}
				data, err := exp.Export(pack)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := util.AtomicWriteFile(output, data, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s wrote %q: %d file(s), %d summarized, %d material(s) to %s (%s)\n",
					RenderStatus("ok"), pack.Title, len(pack.Files), pack.Summarized(), len(pack.Materials),
					output, humanize.Bytes(uint64(len(data))))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&course, "course", "c", "", "only this course (default: the whole library)")
	cmd.Flags().StringVar(&format, "format", "", "markdown or html (default from the output extension, else markdown)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newImportDataCmd(o *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import-data <file|->",
		Short: "Import an export bundle",
		Long: `Import an export bundle. Every record is validated first; an invalid
bundle writes nothing. Records with existing ids are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = string(formatFromPath(path))
			}
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			var data []byte
			if path == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(path)
			}
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				bundle, err := app.Storage.ImportData(ctx, data, f)
				if err != nil {
					return err
				}
				if err := app.Store.Refresh(ctx); err != nil {
					return err
				}
				res := map[string]int{"files": len(bundle.Files), "courses": len(bundle.Courses), "materials": len(bundle.Materials)}
				return o.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s imported %d file(s), %d course(s), %d material(s)\n",
						RenderStatus("ok"), res["files"], res["courses"], res["materials"])
				})
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from the file extension)")
	return cmd
}

// =============================================================================
// WATCH
// =============================================================================

func newWatchCmd(o *rootOptions) *cobra.Command {
	var (
		course   string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Import documents dropped into a folder",
		Long: `Watch a folder and import every document written to it. Runs until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				results, err := app.Hooks.WatchInbox(ctx, args[0], course, debounce)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", args[0])
				for res := range results {
					if o.jsonOut {
						if res.Err != nil {
							_ = NewJSONErrorResponse(cmd.CommandPath(), res.Err, map[string]string{"path": res.Path}).Print(w)
						} else {
							_ = NewJSONResponse(cmd.CommandPath(), res.File).Print(w)
						}
						continue
					}
					if res.Err != nil {
						fmt.Fprintf(w, "%s %s: %s\n", RenderStatus("fail"), filepath.Base(res.Path), describeError(res.Err))
						continue
					}
					fmt.Fprintf(w, "%s %s  %s  %s\n", RenderStatus("ok"), res.File.Name, DimStyle.Render(res.File.ID), wordsOf(res.File))
				}
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil
				}
				return ctx.Err()
			})
		},
	}
	cmd.Flags().StringVarP(&course, "course", "c", "", "course id for imported documents")
	cmd.Flags().DurationVar(&debounce, "debounce", hooks.DefaultDebounce, "quiet period before a changed file is imported")
	return cmd
}
