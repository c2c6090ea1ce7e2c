package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/docdiag/pkg/blockdiag"
	"github.com/matzehuels/docdiag/pkg/cache"
	"github.com/matzehuels/docdiag/pkg/config"
	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/docs"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/observability"
	"github.com/matzehuels/docdiag/pkg/xref"
)

// Runner runs builds with a shared cache.
//
// When Cache is nil every build opens the backend named by its
// configuration and closes it afterwards. The preview server keeps one
// Runner with an open cache for all rebuilds.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer uses the DefaultKeyer; a nil
// logger discards output.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Build runs one documentation build.
func (r *Runner) Build(ctx context.Context, opts Options) (*Result, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	hooks := observability.Build()
	hooks.OnBuildStart(ctx, id, cfg.Builder)
	start := time.Now()

	res, err := r.build(ctx, cfg, opts)
	documents := 0
	if res != nil {
		res.BuildID = id
		res.Duration = time.Since(start)
		documents = res.Documents
	}
	hooks.OnBuildComplete(ctx, id, documents, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("build finished",
		"builder", res.Builder,
		"documents", res.Documents,
		"diagrams", res.Diagrams,
		"rendered", res.Rendered,
		"cached", res.Cached,
		"warnings", res.Warnings,
		"duration", res.Duration)
	return res, nil
}

func (r *Runner) build(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if opts.Clean {
		if err := os.RemoveAll(cfg.Output); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "clean %s", cfg.Output)
		}
	}

	c := r.Cache
	if c == nil {
		var err error
		if c, err = OpenCache(cfg); err != nil {
			return nil, err
		}
		defer c.Close()
	}
	keyer := r.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if cfg.Cache.Scope != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.Cache.Scope)
	}
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	app := docs.NewApp(docs.AppOptions{
		Config: cfg,
		Logger: logger,
		Cache:  c,
		Keyer:  keyer,
		Verify: cfg.Cache.Verify && cfg.Cache.Backend != cache.BackendNone,
	})
	for _, name := range cfg.Extensions {
		ext, ok := Extensions[name]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown extension: %s", name)
		}
		if err := app.Setup(name, ext); err != nil {
			return nil, err
		}
	}
	for k, v := range opts.Overrides {
		cfg.Set(k, v)
	}

	project, err := app.LoadProject(ctx, cfg.Source, cfg.Output)
	if err != nil {
		return nil, err
	}
	builder, err := docs.NewBuilder(cfg.Builder, cfg.Output, cfg.Project.Title)
	if err != nil {
		return nil, err
	}
	logger.Debug("building", "source", cfg.Source, "output", cfg.Output, "documents", len(project.Documents()))

	stats, err := app.Build(ctx, project, builder)
	if err != nil {
		return nil, err
	}
	return &Result{
		Builder:   builder.Name(),
		OutDir:    cfg.Output,
		Documents: stats.Documents,
		Diagrams:  stats.Counts[blockdiag.StatDiagrams],
		Rendered:  stats.Counts[blockdiag.StatRendered],
		Cached:    stats.Counts[blockdiag.StatCached],
		Failed:    stats.Counts[blockdiag.StatFailed],
		Warnings:  stats.Warnings,
	}, nil
}

// =============================================================================
// Single diagram rendering
// =============================================================================

// RenderOptions configures Render.
type RenderOptions struct {
	Source string
	// Format is png, svg or pdf (case-insensitive).
	Format  string
	OutPath string
	// MaxWidth, when below the image width, adds a thumbnail next to
	// OutPath.
	MaxWidth  int
	Antialias bool
	FontMap   string
	FontPath  []string
}

// Render lays out and renders one diagram to opts.OutPath.
func (r *Runner) Render(ctx context.Context, opts RenderOptions) (*diagram.Artifact, error) {
	format, err := diagram.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.OutPath == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "output path is required")
	}

	fonts, err := diagram.LoadFontMap(opts.FontMap)
	if err != nil {
		return nil, err
	}
	if len(opts.FontPath) > 0 {
		font, err := diagram.DetectFont(opts.FontPath)
		if err != nil {
			return nil, err
		}
		fonts.SetDefaultFont(font)
	}
	settings := diagram.Settings{Fonts: fonts, Antialias: opts.Antialias}

	c := r.Cache
	if c == nil {
		c = cache.NewNullCache()
	}
	engine := diagram.NewEngine(diagram.EngineOptions{Settings: settings, Cache: c, Keyer: r.Keyer, Logger: r.Logger})
	d, err := engine.Build(ctx, opts.Source)
	if err != nil {
		return nil, err
	}

	// An explicit output path is always redrawn.
	for _, p := range []string{opts.OutPath, diagram.ThumbPath(opts.OutPath)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "replace %s", p)
		}
	}
	renderer := diagram.NewRenderer(settings, diagram.NewStore(c, r.Keyer, false, r.Logger), r.Logger)
	// Without documents there is nothing to cross-reference: only external
	// links are kept.
	var links map[string]string
	if format != diagram.PNG {
		links = xref.NewResolver(nil, nil).Links(d, "", true)
	}
	return renderer.Render(ctx, d, format, opts.OutPath, diagram.Options{MaxWidth: opts.MaxWidth, Links: links})
}
