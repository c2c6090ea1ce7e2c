package docs

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/config"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/writer/latex"
	plaintext "github.com/matzehuels/docdiag/pkg/writer/text"
)

// ImageDir is the directory HTML builders write images to.
const ImageDir = "_images"

// Format selects how extension nodes are rendered.
type Format string

const (
	HTML  Format = "html"
	LaTeX Format = "latex"
	// Generic covers every other builder. Extensions replace their nodes
	// with standard Markdown nodes before such builders render a page.
	Generic Format = "generic"
)

// Builder writes a project in one output format.
type Builder interface {
	Name() string
	Format() Format
	OutDir() string
	// TargetURI returns the output path of a document relative to OutDir.
	TargetURI(docname string) string
	// RelativeURI returns the URI of document to as seen from document from.
	RelativeURI(from, to string) string
	// Renderer returns a goldmark renderer for the builder's standard nodes
	// plus the given extension renderers.
	Renderer(ext []util.PrioritizedValue) renderer.Renderer
	// WritePage writes one rendered document.
	WritePage(p *Page, body []byte) error
	// Finish writes build-wide output.
	Finish(p *Project) error
}

// NewBuilder creates a builder by name.
func NewBuilder(name, outDir, title string) (Builder, error) {
	base := baseBuilder{outDir: outDir, title: title}
	switch name {
	case config.BuilderHTML:
		return &htmlBuilder{baseBuilder: base}, nil
	case config.BuilderLaTeX:
		return &latexBuilder{baseBuilder: base}, nil
	case config.BuilderText:
		return &textBuilder{baseBuilder: base}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown builder: %s", name)
}

type baseBuilder struct {
	outDir string
	title  string
}

func (b *baseBuilder) OutDir() string { return b.outDir }

func (b *baseBuilder) write(rel string, data []byte) error {
	p := filepath.Join(b.outDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", filepath.Dir(p))
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p)
	}
	return nil
}

func (b *baseBuilder) pageTitle(p *Page) string {
	if p.Doc != nil && p.Doc.Title != "" {
		return p.Doc.Title
	}
	return b.title
}

// =============================================================================
// HTML
// =============================================================================

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}{{if .Project}} - {{.Project}}{{end}}</title>
</head>
<body>
<div class="document">
{{.Body}}</div>
</body>
</html>
`))

type htmlBuilder struct {
	baseBuilder
}

func (b *htmlBuilder) Name() string   { return config.BuilderHTML }
func (b *htmlBuilder) Format() Format { return HTML }

func (b *htmlBuilder) TargetURI(docname string) string {
	return docname + ".html"
}

func (b *htmlBuilder) RelativeURI(from, to string) string {
	return relativeURI(b.TargetURI(from), b.TargetURI(to))
}

func (b *htmlBuilder) Renderer(ext []util.PrioritizedValue) renderer.Renderer {
	nodes := append([]util.PrioritizedValue{util.Prioritized(html.NewRenderer(html.WithUnsafe()), 1000)}, ext...)
	return renderer.NewRenderer(renderer.WithNodeRenderers(nodes...))
}

func (b *htmlBuilder) WritePage(p *Page, body []byte) error {
	project := b.title
	if project == b.pageTitle(p) {
		project = ""
	}
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title   string
		Project string
		Body    template.HTML
	}{b.pageTitle(p), project, template.HTML(body)})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "page template")
	}
	return b.write(b.TargetURI(p.DocName()), buf.Bytes())
}

func (b *htmlBuilder) Finish(*Project) error { return nil }

// =============================================================================
// LaTeX
// =============================================================================

// MainDocument is the LaTeX file that includes every document.
const MainDocument = "main.tex"

type latexBuilder struct {
	baseBuilder
}

func (b *latexBuilder) Name() string   { return config.BuilderLaTeX }
func (b *latexBuilder) Format() Format { return LaTeX }

func (b *latexBuilder) TargetURI(string) string { return "" }

// RelativeURI is empty: all documents end up in one LaTeX document.
func (b *latexBuilder) RelativeURI(string, string) string { return "" }

func (b *latexBuilder) Renderer(ext []util.PrioritizedValue) renderer.Renderer {
	nodes := append([]util.PrioritizedValue{util.Prioritized(latex.NewRenderer(), 1000)}, ext...)
	return renderer.NewRenderer(renderer.WithNodeRenderers(nodes...))
}

func (b *latexBuilder) WritePage(p *Page, body []byte) error {
	return b.write(p.DocName()+".tex", body)
}

func (b *latexBuilder) Finish(p *Project) error {
	var sb strings.Builder
	sb.WriteString("\\documentclass{article}\n")
	sb.WriteString("\\usepackage[utf8]{inputenc}\n")
	sb.WriteString("\\usepackage{graphicx}\n")
	sb.WriteString("\\usepackage{hyperref}\n")
	fmt.Fprintf(&sb, "\\title{%s}\n", latex.Escape(b.title))
	sb.WriteString("\\begin{document}\n\\maketitle\n")
	for _, name := range p.DocNames() {
		fmt.Fprintf(&sb, "\\input{%s}\n", name)
	}
	sb.WriteString("\\end{document}\n")
	return b.write(MainDocument, []byte(sb.String()))
}

// =============================================================================
// Text
// =============================================================================

type textBuilder struct {
	baseBuilder
}

func (b *textBuilder) Name() string   { return config.BuilderText }
func (b *textBuilder) Format() Format { return Generic }

func (b *textBuilder) TargetURI(docname string) string {
	return docname + ".txt"
}

func (b *textBuilder) RelativeURI(from, to string) string {
	return relativeURI(b.TargetURI(from), b.TargetURI(to))
}

func (b *textBuilder) Renderer(ext []util.PrioritizedValue) renderer.Renderer {
	nodes := append([]util.PrioritizedValue{util.Prioritized(plaintext.NewRenderer(), 1000)}, ext...)
	return renderer.NewRenderer(renderer.WithNodeRenderers(nodes...))
}

func (b *textBuilder) WritePage(p *Page, body []byte) error {
	return b.write(b.TargetURI(p.DocName()), body)
}

func (b *textBuilder) Finish(*Project) error { return nil }
