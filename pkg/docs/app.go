package docs

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/cache"
	"github.com/matzehuels/docdiag/pkg/config"
	"github.com/matzehuels/docdiag/pkg/errors"
)

// Events emitted during a build.
const (
	// EventBuilderInited fires once before any document is written. The
	// page has no document.
	EventBuilderInited = "builder-inited"
	// EventDoctreeResolved fires for every document before it is rendered.
	EventDoctreeResolved = "doctree-resolved"
	// EventBuildFinished fires once after all documents are written.
	EventBuildFinished = "build-finished"
)

// Handler handles a build event.
type Handler func(ctx context.Context, page *Page) error

// Extension registers its directives, renderers, config values and event
// handlers with an app.
type Extension func(app *App) error

// AppOptions configures an App.
type AppOptions struct {
	Config *config.Config
	Logger *log.Logger
	// Cache stores laid-out diagrams and the artifact index.
	Cache cache.Cache
	Keyer cache.Keyer
	// Verify requires cached images to match their recorded digest.
	Verify bool
}

// App is the extension registry of one build.
type App struct {
	cfg      *config.Config
	logger   *log.Logger
	cache    cache.Cache
	keyer    cache.Keyer
	verify   bool
	warnings *Warnings

	directives map[string]Directive
	renderers  map[Format][]util.PrioritizedValue
	handlers   map[string][]Handler
	extensions []string

	mu     sync.Mutex
	page   *Page
	counts map[string]int
}

// NewApp creates an app. Missing options get defaults.
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	a := &App{
		cfg:        opts.Config,
		logger:     opts.Logger,
		cache:      opts.Cache,
		keyer:      opts.Keyer,
		verify:     opts.Verify,
		warnings:   NewWarnings(opts.Logger),
		directives: map[string]Directive{},
		renderers:  map[Format][]util.PrioritizedValue{},
		handlers:   map[string][]Handler{},
		counts:     map[string]int{},
	}
	for _, f := range []Format{HTML, LaTeX, Generic} {
		a.AddNodeRenderer(f, &warningRenderer{format: f}, 500)
	}
	return a
}

// Config returns the project configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the build logger.
func (a *App) Logger() *log.Logger { return a.logger }

// Cache returns the build cache.
func (a *App) Cache() cache.Cache { return a.cache }

// Keyer returns the cache key generator.
func (a *App) Keyer() cache.Keyer { return a.keyer }

// Verify reports whether cached images are digest-checked.
func (a *App) Verify() bool { return a.verify }

// Warnings returns the warning registry.
func (a *App) Warnings() *Warnings { return a.warnings }

// Setup runs an extension's registration.
func (a *App) Setup(name string, ext Extension) error {
	for _, e := range a.extensions {
		if e == name {
			return nil
		}
	}
	if err := ext(a); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "extension %s", name)
	}
	a.extensions = append(a.extensions, name)
	a.logger.Debug("extension loaded", "name", name)
	return nil
}

// Extensions returns the names of the loaded extensions.
func (a *App) Extensions() []string {
	return append([]string(nil), a.extensions...)
}

// AddDirective registers a directive for fenced blocks whose info string
// starts with name.
func (a *App) AddDirective(name string, d Directive) error {
	if _, ok := a.directives[name]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "directive %q already registered", name)
	}
	a.directives[name] = d
	return nil
}

func (a *App) directive(name string) (Directive, bool) {
	d, ok := a.directives[name]
	return d, ok
}

// AddNodeRenderer registers a goldmark node renderer for an output format.
func (a *App) AddNodeRenderer(format Format, r renderer.NodeRenderer, priority int) {
	a.renderers[format] = append(a.renderers[format], util.Prioritized(r, priority))
}

// AddConfigValue declares an extension config value and its default.
func (a *App) AddConfigValue(name string, def any) {
	a.cfg.SetDefault(name, def)
}

// Connect registers a handler for an event.
func (a *App) Connect(event string, h Handler) {
	a.handlers[event] = append(a.handlers[event], h)
}

// Emit runs the handlers of an event in registration order and stops at
// the first error.
func (a *App) Emit(ctx context.Context, event string, page *Page) error {
	for _, h := range a.handlers[event] {
		if err := h(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// Page returns the page being written, or nil outside rendering.
func (a *App) Page() *Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

func (a *App) setPage(p *Page) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.page = p
}

// Count increments a named build counter.
func (a *App) Count(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[name]++
}

// Counts returns a copy of the build counters.
func (a *App) Counts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// markdown returns a goldmark instance that runs the registered directives.
func (a *App) markdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
			parser.WithASTTransformers(util.Prioritized(&directiveTransformer{app: a}, 100)),
		),
	)
}
