package blockdiag

import (
	"context"

	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/docs"
)

// Strategy renders diagrams for one output format.
type Strategy interface {
	// Resolve runs on every page before it is rendered.
	Resolve(ctx context.Context, e *Extension, page *docs.Page) error
	// Emit writes the markup of one diagram. An error drops the diagram
	// with a warning; nothing must have been written to w.
	Emit(ctx context.Context, e *Extension, w util.BufWriter, page *docs.Page, n *Node) error
}

var strategies = map[docs.Format]Strategy{
	docs.HTML:    htmlStrategy{},
	docs.LaTeX:   latexStrategy{},
	docs.Generic: genericStrategy{},
}

func strategyFor(f docs.Format) Strategy {
	if s, ok := strategies[f]; ok {
		return s
	}
	return strategies[docs.Generic]
}
