package docs

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/matzehuels/docdiag/pkg/errors"
)

var (
	docNameKey = parser.NewContextKey()
	srcDirKey  = parser.NewContextKey()
)

// Directive turns the content of a fenced block into an AST node.
//
// A block is handed to a directive when the first word of its info string
// is the directive name; the rest of the info string holds the options:
//
//	```blockdiag maxwidth=300 alt="Overview"
//	blockdiag { A -> B }
//	```
type Directive interface {
	Run(dc *DirectiveContext) (ast.Node, error)
}

// DirectiveFunc adapts a function to the Directive interface.
type DirectiveFunc func(dc *DirectiveContext) (ast.Node, error)

// Run calls f.
func (f DirectiveFunc) Run(dc *DirectiveContext) (ast.Node, error) { return f(dc) }

// DirectiveContext describes one directive occurrence.
type DirectiveContext struct {
	Name      string
	DocName   string
	SourceDir string
	Options   map[string]string
	Content   string
	// Line is the 1-based line of the opening fence.
	Line int
}

// Include reads a file named relative to the document's directory.
func (dc *DirectiveContext) Include(rel string) ([]byte, error) {
	if err := errors.ValidatePath(rel); err != nil {
		return nil, err
	}
	name := path.Join(path.Dir(dc.DocName), rel)
	data, err := os.ReadFile(filepath.Join(dc.SourceDir, filepath.FromSlash(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "file not found: %s", rel)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %s", rel)
	}
	return data, nil
}

// WarningNode is an inline warning left in place of a failed directive.
type WarningNode struct {
	ast.BaseBlock
	DocName string
	Line    int
	Message string
}

// KindWarning is the node kind of WarningNode.
var KindWarning = ast.NewNodeKind("Warning")

// NewWarningNode creates a warning node.
func NewWarningNode(docname string, line int, msg string) *WarningNode {
	return &WarningNode{DocName: docname, Line: line, Message: msg}
}

// Kind implements ast.Node.
func (n *WarningNode) Kind() ast.NodeKind { return KindWarning }

// Dump implements ast.Node.
func (n *WarningNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Message": n.Message}, nil)
}

// directiveTransformer hands fenced blocks to the registered directives.
type directiveTransformer struct {
	app *App
}

func (t *directiveTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	if len(t.app.directives) == 0 {
		return
	}
	source := reader.Source()
	docname, _ := pc.Get(docNameKey).(string)
	srcDir, _ := pc.Get(srcDirKey).(string)

	var blocks []*ast.FencedCodeBlock
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if fb, ok := n.(*ast.FencedCodeBlock); ok && entering {
			blocks = append(blocks, fb)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, fb := range blocks {
		name := string(fb.Language(source))
		d, ok := t.app.directive(name)
		if !ok {
			continue
		}
		dc := &DirectiveContext{
			Name:      name,
			DocName:   docname,
			SourceDir: srcDir,
			Content:   blockContent(fb, source),
			Line:      fenceLine(fb, source),
		}

		var info string
		if fb.Info != nil {
			info = string(fb.Info.Segment.Value(source))
		}
		node, err := t.run(d, dc, info)
		if err != nil {
			msg := fmt.Sprintf("[%s] %s\n%s", name, errors.UserMessage(err), dc.Content)
			t.app.Warnings().Warn("directive failed", "doc", docname, "line", dc.Line, "err", errors.UserMessage(err))
			node = NewWarningNode(docname, dc.Line, strings.TrimRight(msg, "\n"))
		}
		fb.Parent().ReplaceChild(fb.Parent(), fb, node)
	}
}

func (t *directiveTransformer) run(d Directive, dc *DirectiveContext, info string) (ast.Node, error) {
	args := strings.TrimSpace(info)
	if i := strings.IndexAny(args, " \t"); i >= 0 {
		args = args[i+1:]
	} else {
		args = ""
	}
	opts, err := ParseOptions(args)
	if err != nil {
		return nil, err
	}
	dc.Options = opts
	return d.Run(dc)
}

func blockContent(fb *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := fb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func fenceLine(fb *ast.FencedCodeBlock, source []byte) int {
	switch {
	case fb.Info != nil:
		return lineOf(source, fb.Info.Segment.Start)
	case fb.Lines().Len() > 0:
		return lineOf(source, fb.Lines().At(0).Start) - 1
	}
	return 0
}

func lineOf(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1
}

// ParseOptions parses directive options: whitespace-separated key=value
// pairs where values may be double- or single-quoted. A bare key is a flag
// with an empty value.
func ParseOptions(s string) (map[string]string, error) {
	opts := map[string]string{}
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			return opts, nil
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ' ' && s[i] != '\t' {
			i++
		}
		key := s[start:i]
		if key == "" {
			return nil, errors.New(errors.ErrCodeInvalidOption, "option without a name at column %d", start+1)
		}
		if _, dup := opts[key]; dup {
			return nil, errors.New(errors.ErrCodeInvalidOption, "duplicate option: %s", key)
		}
		if i >= len(s) || s[i] != '=' {
			opts[key] = ""
			continue
		}
		i++

		var value strings.Builder
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			quote := s[i]
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					value.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
				if c == quote {
					closed = true
					break
				}
				value.WriteByte(c)
			}
			if !closed {
				return nil, errors.New(errors.ErrCodeInvalidOption, "unterminated quote in option %s", key)
			}
		} else {
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				value.WriteByte(s[i])
				i++
			}
		}
		opts[key] = value.String()
	}
}
