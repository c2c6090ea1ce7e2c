package docs

import (
	"context"
	"strings"
)

// Page is the unit a builder writes: one document of a project. Build-wide
// events get a page without a document.
type Page struct {
	ctx     context.Context
	App     *App
	Project *Project
	Builder Builder
	Doc     *Document
}

// NewPage creates a page.
func NewPage(ctx context.Context, app *App, project *Project, builder Builder, doc *Document) *Page {
	return &Page{ctx: ctx, App: app, Project: project, Builder: builder, Doc: doc}
}

// Context returns the build context.
func (p *Page) Context() context.Context {
	if p.ctx == nil {
		return context.Background()
	}
	return p.ctx
}

// DocName returns the document name, or "" for build-wide pages.
func (p *Page) DocName() string {
	if p.Doc == nil {
		return ""
	}
	return p.Doc.Name
}

// OutDir returns the builder output directory.
func (p *Page) OutDir() string {
	return p.Builder.OutDir()
}

// ImgPath returns the image directory relative to the page. It reports
// false for builders that do not write pages with an image directory.
func (p *Page) ImgPath() (string, bool) {
	if p.Builder.Format() != HTML {
		return "", false
	}
	return relativeURI(p.Builder.TargetURI(p.DocName()), ImageDir), true
}

// RelativeURI returns the URI of document to as seen from this page.
func (p *Page) RelativeURI(to string) string {
	return p.Builder.RelativeURI(p.DocName(), to)
}

// ImageURI returns the URI of document to as seen from the image files of
// this page's builder.
func (p *Page) ImageURI(to string) string {
	base := "image"
	if p.Builder.Format() == HTML {
		base = ImageDir + "/image"
	}
	return relativeURI(base, p.Builder.TargetURI(to))
}

// RootURI returns the URI of path, given relative to the output root, as
// seen from this page.
func (p *Page) RootURI(path string) string {
	return relativeURI(p.Builder.TargetURI(p.DocName()), path)
}

// relativeURI returns a relative URI from base to to, both relative to the
// output root.
func relativeURI(base, to string) string {
	if strings.HasPrefix(to, "/") {
		return to
	}
	b := strings.Split(strings.SplitN(base, "#", 2)[0], "/")
	t := strings.Split(strings.SplitN(to, "#", 2)[0], "/")
	for len(b) > 1 && len(t) > 1 && b[0] == t[0] {
		b, t = b[1:], t[1:]
	}
	if equalPaths(b, t) {
		return ""
	}
	if len(b) == 1 && len(t) == 1 && t[0] == "" {
		return "./"
	}
	return strings.Repeat("../", len(b)-1) + strings.Join(t, "/")
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
