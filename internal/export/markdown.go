// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders packs as Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders pack.
func (e *MarkdownExporter) Export(pack *Pack) ([]byte, error) {
	if pack == nil || len(pack.Files)+len(pack.Materials) == 0 {
		return nil, ErrEmptyPack
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(pack.Title))
		if pack.Course != nil {
			fmt.Fprintf(&sb, "course: %s\n", escapeYAML(pack.Course.Name))
			if pack.Course.Code != "" {
				fmt.Fprintf(&sb, "code: %s\n", escapeYAML(pack.Course.Code))
			}
		}
		fmt.Fprintf(&sb, "files: %d\n", len(pack.Files))
		fmt.Fprintf(&sb, "materials: %d\n", len(pack.Materials))
		fmt.Fprintf(&sb, "generated: %s\n", pack.GeneratedAt.Format(time.RFC3339))
		sb.WriteString("generator: arcano\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(pack.Title))

	if len(pack.Files) > 0 {
		sb.WriteString("## Documents\n\n")
		for _, f := range pack.Files {
			e.writeFile(&sb, pack, f)
		}
	}

	if len(pack.Materials) > 0 {
		sb.WriteString("## Study Material\n\n")
		for i, m := range pack.Materials {
			e.writeMaterial(&sb, pack, m)
			if i < len(pack.Materials)-1 {
				sb.WriteString("---\n\n")
			}
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Generated by arcano on %s*\n", formatTimestamp(pack.GeneratedAt))

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeFile(sb *strings.Builder, pack *Pack, f model.FileRecord) {
	fmt.Fprintf(sb, "### %s\n\n", escapeMarkdown(f.Name))

	if e.options.IncludeMetadata {
		if pack.Course == nil && f.CourseID != "" {
			fmt.Fprintf(sb, "- **Course**: %s\n", pack.CourseName(f.CourseID))
		}
		fmt.Fprintf(sb, "- **Uploaded**: %s\n", formatTimestamp(f.UploadedAt))
		if m := f.Metadata; m != nil {
			fmt.Fprintf(sb, "- **Words**: %d\n", m.WordCount)
			if len(m.KeyTerms) > 0 {
				fmt.Fprintf(sb, "- **Key terms**: %s\n", strings.Join(m.KeyTerms, ", "))
			}
			if len(m.Dates) > 0 {
				fmt.Fprintf(sb, "- **Dates**: %s\n", strings.Join(m.Dates, ", "))
			}
			if len(m.Formulas) > 0 {
				sb.WriteString("- **Formulas**:\n")
				for _, formula := range m.Formulas {
					fmt.Fprintf(sb, "  - `%s`\n", formula)
				}
			}
		}
		sb.WriteString("\n")
	}

	switch {
	case f.Summary != "":
		sb.WriteString("#### Summary\n\n")
		sb.WriteString(strings.TrimSpace(f.Summary))
		sb.WriteString("\n\n")
	case e.options.ExcerptRunes > 0 && f.Content != "":
		sb.WriteString("> ")
		excerpt := util.TruncateRunes(util.CollapseBlankLines(f.Content), e.options.ExcerptRunes)
		sb.WriteString(strings.ReplaceAll(strings.TrimSpace(excerpt), "\n", "\n> "))
		sb.WriteString("\n\n")
	}
}

func (e *MarkdownExporter) writeMaterial(sb *strings.Builder, pack *Pack, m model.StudyMaterial) {
	fmt.Fprintf(sb, "### %s\n\n", escapeMarkdown(m.Title))
	if e.options.IncludeMetadata {
		fmt.Fprintf(sb, "<sub>%s", materialLabel(m.Type))
		if name := pack.fileName(m.FileID); name != "" {
			fmt.Fprintf(sb, " from %s", name)
		}
		fmt.Fprintf(sb, " | %s</sub>\n\n", formatTimestamp(m.CreatedAt))
	}
	sb.WriteString(strings.TrimSpace(m.Content))
	sb.WriteString("\n\n")
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown; charset=utf-8"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(`#`, `\#`, `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// escapeYAML quotes a front matter value when it needs it.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}
