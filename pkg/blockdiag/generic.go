package blockdiag

import (
	"context"
	"path/filepath"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/docs"
)

// genericStrategy serves builders without blockdiag markup: each diagram
// is replaced by a Markdown image of the rendered PNG before the page is
// written.
type genericStrategy struct{}

func (genericStrategy) Resolve(ctx context.Context, e *Extension, page *docs.Page) error {
	if page.Doc == nil || page.Doc.AST == nil {
		return nil
	}
	var nodes []*Node
	_ = ast.Walk(page.Doc.AST, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if d, ok := n.(*Node); ok && entering {
			nodes = append(nodes, d)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, n := range nodes {
		parent := n.Parent()
		img, err := e.Image(ctx, page, n, string(diagram.PNG))
		if err != nil {
			e.fail(page, n, err)
			parent.RemoveChild(parent, n)
			continue
		}

		link := ast.NewLink()
		link.Destination = []byte(imageDestination(page, img))
		image := ast.NewImage(link)
		if n.Options.Alt != "" {
			image.AppendChild(image, ast.NewString([]byte(n.Options.Alt)))
		}
		para := ast.NewParagraph()
		para.AppendChild(para, image)
		parent.ReplaceChild(parent, n, para)
	}
	return nil
}

// Emit writes nothing: diagrams were replaced during Resolve, and the ones
// that failed were removed.
func (genericStrategy) Emit(context.Context, *Extension, util.BufWriter, *docs.Page, *Node) error {
	return nil
}

// imageDestination returns the image path relative to the page.
func imageDestination(page *docs.Page, img *Image) string {
	rel, err := filepath.Rel(page.OutDir(), img.Artifact.Path)
	if err != nil {
		return img.URL
	}
	return page.RootURI(filepath.ToSlash(rel))
}
