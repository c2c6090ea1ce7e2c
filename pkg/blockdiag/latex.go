package blockdiag

import (
	"context"
	"fmt"

	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/docs"
)

type latexStrategy struct{}

func (latexStrategy) Resolve(context.Context, *Extension, *docs.Page) error { return nil }

func (latexStrategy) Emit(ctx context.Context, e *Extension, w util.BufWriter, page *docs.Page, n *Node) error {
	img, err := e.Image(ctx, page, n, e.app.Config().GetString(ConfigTeXImageFormat))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\\par\\includegraphics{%s}\\par\n\n", img.URL)
	return err
}
