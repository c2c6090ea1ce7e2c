package docs

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// Document is one parsed Markdown source.
type Document struct {
	// Name is the slash-separated path without extension.
	Name string
	// Path is the source file path.
	Path string
	// Meta is the YAML front matter, if any.
	Meta map[string]any
	// Title is the front matter title or the text of the first heading.
	Title string
	// Source is the Markdown text after the front matter.
	Source []byte
	// AST is the parsed document.
	AST ast.Node
	// Targets lists the anchor ids defined by the document, in order.
	Targets []string
}

var frontMatterDelim = []byte("---")

// splitFrontMatter separates a leading "---" delimited YAML block from the
// Markdown body.
func splitFrontMatter(src []byte) (meta map[string]any, body []byte, err error) {
	if !bytes.HasPrefix(src, frontMatterDelim) {
		return nil, src, nil
	}
	rest := src[len(frontMatterDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, src, nil
	}
	rest = rest[nl+1:]

	var block []byte
	for len(rest) > 0 {
		line := rest
		next := len(rest)
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, next = rest[:i], i+1
		}
		if bytes.Equal(bytes.TrimRight(line, " \r"), frontMatterDelim) {
			meta = map[string]any{}
			if err := yaml.Unmarshal(block, &meta); err != nil {
				return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "front matter")
			}
			return meta, rest[next:], nil
		}
		block = append(block, rest[:next]...)
		rest = rest[next:]
	}
	return nil, src, nil
}

// collect fills the targets and title from the parsed AST.
func (d *Document) collect() {
	d.Targets = nil
	title := ""
	ast.Walk(d.AST, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok && len(b) > 0 {
				d.Targets = append(d.Targets, string(b))
			}
		}
		if title == "" {
			title = PlainText(h, d.Source)
		}
		return ast.WalkSkipChildren, nil
	})

	if t, ok := d.Meta["title"].(string); ok && t != "" {
		title = t
	}
	d.Title = title
}

// PlainText returns the text content of n and its descendants.
func PlainText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
