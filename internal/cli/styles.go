// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141")) // Violet

	// LabelStyle is used for left-hand field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	// ValueStyle is used for plain values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for hints and secondary details.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// HeaderStyle is used for table headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))
)

// RenderStatus renders a bracketed status tag.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "connected":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// printField prints one "label value" line.
func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s%s\n", LabelStyle.Render(label), ValueStyle.Render(fmt.Sprint(value)))
}

// =============================================================================
// TABLES
// =============================================================================

// table renders rows in aligned columns. Cells are measured by display
// width so CJK text and emoji line up; the widest columns are truncated to
// fit the terminal.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths(maxTotal int) []int {
	w := make([]int, len(t.headers))
	for i, h := range t.headers {
		w[i] = util.DisplayWidth(h)
	}
	for _, row := range t.rows {
		for i := range w {
			if i < len(row) {
				w[i] = max(w[i], util.DisplayWidth(row[i]))
			}
		}
	}

	gaps := 2 * (len(w) - 1)
	for {
		total := gaps
		widest := 0
		for i, cw := range w {
			total += cw
			if cw > w[widest] {
				widest = i
			}
		}
		if total <= maxTotal || w[widest] <= 8 {
			return w
		}
		w[widest] -= total - maxTotal
		w[widest] = max(w[widest], 8)
	}
}

func (t *table) render(out io.Writer, maxWidth int) {
	w := t.widths(maxWidth)
	line := func(cells []string, style func(string) string) {
		parts := make([]string, len(w))
		for i := range w {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			cell = util.TruncateWidth(cell, w[i])
			if i < len(w)-1 {
				cell = util.PadWidth(cell, w[i])
			}
			parts[i] = style(cell)
		}
		fmt.Fprintln(out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(t.headers, func(s string) string { return HeaderStyle.Render(s) })
	for _, row := range t.rows {
		line(row, func(s string) string { return s })
	}
}

// =============================================================================
// MARKDOWN
// =============================================================================

// renderMarkdown renders model output for a terminal. Non-terminal writers
// get the raw text so piped output stays clean.
func renderMarkdown(w io.Writer, content string) string {
	if !isTerminalWriter(w) {
		return content
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(GetTerminalWidth()-4, 100)),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// printGenerated prints model output, rendered when w is a terminal.
func printGenerated(w io.Writer, content string) {
	out := renderMarkdown(w, content)
	fmt.Fprint(w, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(w)
	}
}
