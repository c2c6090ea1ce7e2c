package blockdiag

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"

	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/docs"
	"github.com/matzehuels/docdiag/pkg/errors"
)

// Name is the directive name.
const Name = "blockdiag"

// Node is a diagram occurrence in a document.
type Node struct {
	ast.BaseBlock
	Source  string
	Options diagram.Options
}

// KindNode is the node kind of Node.
var KindNode = ast.NewNodeKind("Blockdiag")

// NewNode creates a diagram node.
func NewNode(source string, opts diagram.Options) *Node {
	return &Node{Source: source, Options: opts}
}

// Kind implements ast.Node.
func (n *Node) Kind() ast.NodeKind { return KindNode }

// Dump implements ast.Node.
func (n *Node) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Source":   n.Source,
		"MaxWidth": strconv.Itoa(n.Options.MaxWidth),
	}, nil)
}

// directive builds a Node from a blockdiag block. The source is checked
// for syntax errors so they can be shown in place.
func directive(dc *docs.DirectiveContext) (ast.Node, error) {
	var opts diagram.Options
	source := dc.Content
	for key, value := range dc.Options {
		switch key {
		case "maxwidth":
			w, err := strconv.Atoi(value)
			if err != nil || w <= 0 {
				return nil, errors.New(errors.ErrCodeInvalidOption, "maxwidth must be a positive integer: %q", value)
			}
			opts.MaxWidth = w
		case "alt":
			opts.Alt = value
		case "class":
			opts.Class = value
		case "src":
			if strings.TrimSpace(source) != "" {
				return nil, errors.New(errors.ErrCodeInvalidOption, "src and inline content are mutually exclusive")
			}
			data, err := dc.Include(value)
			if err != nil {
				return nil, err
			}
			source = string(data)
		default:
			return nil, errors.New(errors.ErrCodeInvalidOption, "unknown option: %s", key)
		}
	}

	if strings.TrimSpace(source) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "diagram source is empty")
	}
	if _, err := diagram.Translate(source, diagram.TranslateOptions{}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDiagram, err, "ParseError")
	}
	return NewNode(source, opts), nil
}
