// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders packs as a self-contained HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

type htmlPage struct {
	Pack     *Pack
	Theme    string
	Meta     bool
	Files    []htmlFile
	Material []htmlMaterial
	CSS      template.CSS
}

type htmlFile struct {
	model.FileRecord
	Course  string
	Body    template.HTML
	Excerpt string
}

type htmlMaterial struct {
	model.StudyMaterial
	Label  string
	Source string
	Body   template.HTML
}

// Export renders pack.
func (e *HTMLExporter) Export(pack *Pack) ([]byte, error) {
	if pack == nil || len(pack.Files)+len(pack.Materials) == 0 {
		return nil, ErrEmptyPack
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	page := htmlPage{Pack: pack, Theme: theme, Meta: e.options.IncludeMetadata, CSS: template.CSS(pageCSS)}

	for _, f := range pack.Files {
		hf := htmlFile{FileRecord: f}
		if pack.Course == nil {
			hf.Course = pack.CourseName(f.CourseID)
		}
		switch {
		case f.Summary != "":
			hf.Body = formatContent(f.Summary)
		case e.options.ExcerptRunes > 0:
			hf.Excerpt = util.TruncateRunes(util.CollapseBlankLines(f.Content), e.options.ExcerptRunes)
		}
		page.Files = append(page.Files, hf)
	}
	for _, m := range pack.Materials {
		page.Material = append(page.Material, htmlMaterial{
			StudyMaterial: m,
			Label:         materialLabel(m.Type),
			Source:        pack.fileName(m.FileID),
			Body:          formatContent(m.Content),
		})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// FileExtension returns ".html".
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html; charset=utf-8"
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var (
	headingLine  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletLine   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
	boldSpan     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	flashcardTag = regexp.MustCompile(`^(Q|A|Question|Answer|Front|Back):\s*`)
)

// formatContent turns the light Markdown models produce (headings, lists,
// bold, inline code) into HTML. Everything else is escaped text.
func formatContent(content string) template.HTML {
	var out []string
	inList, inPara := false, false
	closeBlocks := func() {
		if inList {
			out = append(out, "</ul>")
			inList = false
		}
		if inPara {
			out = append(out, "</p>")
			inPara = false
		}
	}

	for _, raw := range strings.Split(strings.TrimSpace(content), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			closeBlocks()
		case headingLine.MatchString(line):
			closeBlocks()
			m := headingLine.FindStringSubmatch(line)
			level := min(len(m[1])+3, 6)
			out = append(out, fmt.Sprintf("<h%d>%s</h%d>", level, inline(m[2]), level))
		case bulletLine.MatchString(line):
			if inPara {
				out = append(out, "</p>")
				inPara = false
			}
			if !inList {
				out = append(out, "<ul>")
				inList = true
			}
			out = append(out, "<li>"+inline(bulletLine.FindStringSubmatch(line)[1])+"</li>")
		default:
			if inList {
				out = append(out, "</ul>")
				inList = false
			}
			if tag := flashcardTag.FindString(line); tag != "" {
				line = "**" + strings.TrimSpace(tag) + "** " + strings.TrimPrefix(line, tag)
			}
			if !inPara {
				out = append(out, "<p>"+inline(line))
				inPara = true
			} else {
				out = append(out, "<br>"+inline(line))
			}
		}
	}
	closeBlocks()
	return template.HTML(strings.Join(out, "\n"))
}

// inline escapes s and applies bold and code spans.
func inline(s string) string {
	s = html.EscapeString(s)
	s = boldSpan.ReplaceAllString(s, "<strong>$1</strong>")
	return inlineCode.ReplaceAllString(s, "<code>$1</code>")
}

// =============================================================================
// TEMPLATE
// =============================================================================

var pageTemplate = template.Must(template.New("pack").Funcs(template.FuncMap{
	"when": formatTimestamp,
	"join": strings.Join,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta name="generator" content="arcano">
<title>{{.Pack.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body class="{{.Theme}}-theme">
<div class="container">
<header class="header">
<h1>{{.Pack.Title}}</h1>
{{- if .Meta}}
<div class="metadata">
<span>{{len .Pack.Files}} document(s)</span>
<span>{{len .Pack.Materials}} study material(s)</span>
<span>Generated {{when .Pack.GeneratedAt}}</span>
</div>
{{- end}}
</header>
{{- if .Files}}
<section>
<h2>Documents</h2>
{{- range .Files}}
<article class="card">
<h3>{{.Name}}</h3>
{{- if $.Meta}}
<div class="metadata">
{{- if .Course}}<span>{{.Course}}</span>{{end}}
<span>Uploaded {{when .UploadedAt}}</span>
{{- with .Metadata}}
<span>{{.WordCount}} words</span>
{{- end}}
</div>
{{- with .Metadata}}{{if .KeyTerms}}
<p class="terms">{{join .KeyTerms ", "}}</p>
{{- end}}{{end}}
{{- end}}
{{- if .Body}}
<div class="content">{{.Body}}</div>
{{- else if .Excerpt}}
<blockquote>{{.Excerpt}}</blockquote>
{{- end}}
</article>
{{- end}}
</section>
{{- end}}
{{- if .Material}}
<section>
<h2>Study Material</h2>
{{- range .Material}}
<article class="card material">
<h3>{{.Title}}</h3>
{{- if $.Meta}}
<div class="metadata"><span>{{.Label}}</span>{{if .Source}}<span>from {{.Source}}</span>{{end}}<span>{{when .CreatedAt}}</span></div>
{{- end}}
<div class="content">{{.Body}}</div>
</article>
{{- end}}
</section>
{{- end}}
<footer class="footer">Generated by <strong>arcano</strong> on {{when .Pack.GeneratedAt}}</footer>
</div>
</body>
</html>
`))

const pageCSS = `
* { margin: 0; padding: 0; box-sizing: border-box; }
:root { --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif; --font-mono: "SF Mono", Menlo, Consolas, monospace; }
.dark-theme { --bg: #1a1b26; --card: #24283b; --text: #c0caf5; --muted: #565f89; --border: #414868; --accent: #bb9af7; }
.light-theme { --bg: #f8f8fc; --card: #ffffff; --text: #24283b; --muted: #6b7089; --border: #dcdde8; --accent: #7c3aed; }
body { background: var(--bg); color: var(--text); font-family: var(--font-sans); line-height: 1.6; }
.container { max-width: 860px; margin: 0 auto; padding: 2rem 1.25rem; }
.header { border-bottom: 2px solid var(--border); margin-bottom: 1.5rem; padding-bottom: 1rem; }
h1 { color: var(--accent); font-size: 2rem; }
h2 { font-size: 1.4rem; margin: 1.5rem 0 0.75rem; }
h3 { font-size: 1.15rem; margin-bottom: 0.4rem; }
h4, h5, h6 { margin: 0.75rem 0 0.25rem; }
.metadata { color: var(--muted); font-size: 0.85rem; display: flex; flex-wrap: wrap; gap: 1rem; margin-bottom: 0.5rem; }
.card { background: var(--card); border: 1px solid var(--border); border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 1rem; }
.material { border-left: 4px solid var(--accent); }
.terms { font-size: 0.85rem; color: var(--muted); font-style: italic; }
.content p { margin: 0.5rem 0; }
.content ul { margin: 0.5rem 0 0.5rem 1.5rem; }
code { font-family: var(--font-mono); background: var(--bg); padding: 0.1rem 0.3rem; border-radius: 4px; }
blockquote { color: var(--muted); border-left: 3px solid var(--border); padding-left: 0.75rem; white-space: pre-wrap; }
.footer { color: var(--muted); font-size: 0.8rem; text-align: center; margin-top: 2rem; }
@media print { body { background: #fff; color: #000; } .card { break-inside: avoid; } }
`
