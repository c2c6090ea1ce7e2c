package docs

import (
	"fmt"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/writer/latex"
)

// warningRenderer writes inline warnings left by failed directives.
type warningRenderer struct {
	format Format
}

func (r *warningRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWarning, r.render)
}

func (r *warningRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*WarningNode)
	title := fmt.Sprintf("System Message: WARNING (%s, line %d)", n.DocName, n.Line)

	switch r.format {
	case HTML:
		_, _ = w.WriteString(`<div class="system-message">` + "\n")
		_, _ = w.WriteString(`<p class="system-message-title">`)
		_, _ = w.Write(util.EscapeHTML([]byte(title)))
		_, _ = w.WriteString("</p>\n<pre>")
		_, _ = w.Write(util.EscapeHTML([]byte(n.Message)))
		_, _ = w.WriteString("</pre>\n</div>\n")
	case LaTeX:
		_, _ = w.WriteString("\\par\\textbf{" + latex.Escape(title) + "}\n")
		_, _ = w.WriteString("\\begin{verbatim}\n" + n.Message + "\n\\end{verbatim}\n\n")
	default:
		_, _ = w.WriteString(title + "\n\n" + n.Message + "\n\n")
	}
	return ast.WalkSkipChildren, nil
}
