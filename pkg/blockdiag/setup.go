package blockdiag

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/docs"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/xref"
)

// Config values.
const (
	ConfigFontPath        = "blockdiag_fontpath"
	ConfigFontMap         = "blockdiag_fontmap"
	ConfigAntialias       = "blockdiag_antialias"
	ConfigDebug           = "blockdiag_debug"
	ConfigHTMLImageFormat = "blockdiag_html_image_format"
	ConfigTeXImageFormat  = "blockdiag_tex_image_format"
)

// Build counters recorded with [docs.App.Count].
const (
	StatDiagrams = "blockdiag.diagrams"
	StatRendered = "blockdiag.rendered"
	StatCached   = "blockdiag.cached"
	StatFailed   = "blockdiag.failed"
)

// Extension is the per-build state of the blockdiag extension.
type Extension struct {
	app      *docs.App
	engine   *diagram.Engine
	renderer *diagram.Renderer
	resolver *xref.Resolver
	maps     int
}

// Setup registers the blockdiag directive, its node renderers, config
// values and event handlers.
func Setup(app *docs.App) error {
	ext := &Extension{app: app}
	if err := app.AddDirective(Name, docs.DirectiveFunc(directive)); err != nil {
		return err
	}
	for format, s := range strategies {
		app.AddNodeRenderer(format, &nodeRenderer{ext: ext, strategy: s}, 100)
	}

	app.AddConfigValue(ConfigFontPath, "")
	app.AddConfigValue(ConfigFontMap, "")
	app.AddConfigValue(ConfigAntialias, false)
	app.AddConfigValue(ConfigDebug, false)
	app.AddConfigValue(ConfigHTMLImageFormat, string(diagram.PNG))
	app.AddConfigValue(ConfigTeXImageFormat, string(diagram.PNG))

	app.Connect(docs.EventBuilderInited, ext.init)
	app.Connect(docs.EventDoctreeResolved, func(ctx context.Context, page *docs.Page) error {
		return strategyFor(page.Builder.Format()).Resolve(ctx, ext, page)
	})
	return nil
}

// init sets up the engine and renderer once the configuration is final.
func (e *Extension) init(ctx context.Context, page *docs.Page) error {
	cfg := e.app.Config()
	settings := diagram.Settings{
		Fonts:     e.loadFonts(),
		Antialias: cfg.GetBool(ConfigAntialias),
		Debug:     cfg.GetBool(ConfigDebug),
	}
	logger := e.app.Logger().WithPrefix(Name)

	e.engine = diagram.NewEngine(diagram.EngineOptions{
		Settings: settings,
		Cache:    e.app.Cache(),
		Keyer:    e.app.Keyer(),
		Logger:   logger,
	})
	store := diagram.NewStore(e.app.Cache(), e.app.Keyer(), e.app.Verify(), logger)
	store.SetWarner(e.app.Warnings().Warn)
	e.renderer = diagram.NewRenderer(settings, store, logger)
	e.resolver = xref.NewResolver(page.Project, page.Builder.RelativeURI)
	e.maps = 0
	return nil
}

// loadFonts reads the font settings. Failures are reported once and fall
// back to the built-in font.
func (e *Extension) loadFonts() *diagram.FontMap {
	cfg := e.app.Config()
	warnings := e.app.Warnings()

	mapPath := cfg.GetString(ConfigFontMap)
	fonts, err := diagram.LoadFontMap(mapPath)
	if err != nil {
		warnings.Once("fontmap", mapPath, fmt.Sprintf(
			"blockdiag cannot load %q as fontmap file, check the %s setting", mapPath, ConfigFontMap))
	}

	paths := fontPaths(cfg.Get(ConfigFontPath))
	if len(paths) == 0 {
		return fonts
	}
	font, err := diagram.DetectFont(paths)
	if err != nil {
		warnings.Once("fontpath", strings.Join(paths, ","), fmt.Sprintf(
			"blockdiag cannot load %q as truetype font, check the %s setting", strings.Join(paths, ", "), ConfigFontPath))
		return fonts
	}
	fonts.SetDefaultFont(font)
	return fonts
}

// fontPaths accepts a single path or a list of candidate paths.
func fontPaths(v any) []string {
	switch p := v.(type) {
	case string:
		if p == "" {
			return nil
		}
		return []string{p}
	case []string:
		return p
	case []any:
		var out []string
		for _, x := range p {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Image is a rendered diagram occurrence.
type Image struct {
	Diagram  *diagram.Diagram
	Artifact *diagram.Artifact
	// URL is the image URL relative to the page.
	URL string
	// ThumbURL is the thumbnail URL, if a thumbnail was made.
	ThumbURL string
	Format   diagram.Format
}

// Image lays out and renders the diagram of n for the page.
func (e *Extension) Image(ctx context.Context, page *docs.Page, n *Node, format string) (*Image, error) {
	if e.engine == nil {
		return nil, errors.New(errors.ErrCodeInternal, "blockdiag extension used before the builder was initialized")
	}
	e.app.Count(StatDiagrams)

	f, err := diagram.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	d, err := e.engine.Build(ctx, n.Source)
	if err != nil {
		return nil, err
	}
	opts := n.Options
	opts.DocName = page.DocName()
	opts.Links = imageLinks(page, d, f)

	url, outPath, err := e.renderer.ImageFilename(page, n.Source, f, opts, diagram.DefaultPrefix)
	if err != nil {
		return nil, err
	}
	a, err := e.renderer.Render(ctx, d, f, outPath, opts)
	if err != nil {
		return nil, err
	}
	if a.Cached {
		e.app.Count(StatCached)
	} else {
		e.app.Count(StatRendered)
	}

	img := &Image{Diagram: d, Artifact: a, URL: url, Format: f}
	if a.Thumb != nil {
		img.ThumbURL = siblingURL(url, a.Thumb.Path)
	}
	return img, nil
}

// imageLinks returns the node links written into the image file. Bitmaps
// carry none and PDF files keep external links only. SVG files get every
// resolvable link, relative to the image directory.
func imageLinks(page *docs.Page, d *diagram.Diagram, f diagram.Format) map[string]string {
	var index xref.Index
	if page.Project != nil {
		index = page.Project
	}
	r := xref.NewResolver(index, func(_, to string) string { return page.ImageURI(to) })
	switch f {
	case diagram.SVG:
		return r.Links(d, page.DocName(), false)
	case diagram.PDF:
		return r.Links(d, page.DocName(), true)
	}
	return nil
}

// Regions resolves the node links of img as seen from the page. Unresolved
// references are reported once each.
func (e *Extension) Regions(page *docs.Page, img *Image) []diagram.Region {
	regions, unresolved := e.resolver.ResolveDiagram(img.Diagram, page.DocName())
	for _, ref := range unresolved {
		e.app.Warnings().Once("undefined-label", ref,
			fmt.Sprintf("blockdiag: undefined label: %s", ref), "doc", page.DocName())
	}
	return regions
}

// fail reports a diagram failure as a build warning.
func (e *Extension) fail(page *docs.Page, n *Node, err error) {
	e.app.Count(StatFailed)
	if errors.Is(err, errors.ErrCodeEncoding) {
		e.app.Warnings().Warn("blockdiag error: invalid text encoding (check your font settings)", "doc", page.DocName())
		return
	}
	e.app.Warnings().Warn(fmt.Sprintf("dot code %q: %s", n.Source, errors.UserMessage(err)), "doc", page.DocName())
}

// nextMap returns a new image map number.
func (e *Extension) nextMap() int {
	e.maps++
	return e.maps
}

// siblingURL returns the URL of the file next to url with the base name of
// path.
func siblingURL(url, path string) string {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[:i+1] + base
	}
	return base
}

// nodeRenderer adapts a strategy to goldmark.
type nodeRenderer struct {
	ext      *Extension
	strategy Strategy
}

func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindNode, r.render)
}

func (r *nodeRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	page := r.ext.app.Page()
	if page == nil {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*Node)
	if err := r.strategy.Emit(page.Context(), r.ext, w, page, n); err != nil {
		r.ext.fail(page, n, err)
	}
	return ast.WalkSkipChildren, nil
}
