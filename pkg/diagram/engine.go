package diagram

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/docdiag/pkg/cache"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/observability"
)

// diagramTTL bounds how long laid-out diagrams stay in the cache.
const diagramTTL = 30 * 24 * time.Hour

// EngineOptions configures an Engine.
type EngineOptions struct {
	Settings Settings
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
}

// Engine parses and lays out blockdiag source.
//
// Each distinct source is laid out once per Engine; results are also kept
// in the cache across builds.
type Engine struct {
	settings Settings
	cache    cache.Cache
	keyer    cache.Keyer
	logger   *log.Logger

	mu   sync.Mutex
	memo map[string]*Diagram
}

// NewEngine creates an engine. Nil cache, keyer and logger get defaults.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Engine{
		settings: opts.Settings,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		logger:   opts.Logger,
		memo:     map[string]*Diagram{},
	}
}

// Settings returns the engine's rendering settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Reset forgets the diagrams laid out so far.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memo = map[string]*Diagram{}
}

// Build parses and lays out source.
//
// Invalid UTF-8 fails with ENCODING_ERROR. Any syntax or layout failure is
// reported as a single DIAGRAM_ERROR carrying the original message.
func (e *Engine) Build(ctx context.Context, source string) (*Diagram, error) {
	if !utf8.ValidString(source) {
		return nil, errors.New(errors.ErrCodeEncoding, "diagram source is not valid UTF-8 (check your font settings)")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := e.keyer.DiagramKey(cache.Hash([]byte(source)), cache.DiagramKeyOpts{
		Antialias:  e.settings.Antialias,
		FontDigest: e.settings.Fonts.Digest(),
	})

	e.mu.Lock()
	d, ok := e.memo[key]
	e.mu.Unlock()
	if ok {
		return d, nil
	}

	if d := e.cached(ctx, key); d != nil {
		e.remember(key, d)
		return d, nil
	}

	hooks := observability.Build()
	hooks.OnDiagramStart(ctx, key)
	start := time.Now()

	d, err := e.layout(ctx, source)
	if err != nil {
		hooks.OnDiagramComplete(ctx, key, 0, time.Since(start), err)
		return nil, e.fail(err)
	}
	hooks.OnDiagramComplete(ctx, key, len(d.Nodes), time.Since(start), nil)

	if data, err := json.Marshal(d); err == nil {
		if err := e.cache.Set(ctx, key, data, diagramTTL); err != nil {
			e.logger.Debug("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "diagram", len(data))
		}
	}
	e.remember(key, d)
	return d, nil
}

func (e *Engine) cached(ctx context.Context, key string) *Diagram {
	data, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Debug("cache read failed", "err", err)
		return nil
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "diagram")
		return nil
	}
	var d Diagram
	if err := json.Unmarshal(data, &d); err != nil {
		_ = e.cache.Delete(ctx, key)
		return nil
	}
	observability.Cache().OnCacheHit(ctx, "diagram")
	return &d
}

func (e *Engine) remember(key string, d *Diagram) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memo[key] = d
}

func (e *Engine) layout(ctx context.Context, source string) (*Diagram, error) {
	dot, err := Translate(source, TranslateOptions{Fonts: e.settings.Fonts})
	if err != nil {
		return nil, err
	}
	svg, err := renderDOT(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	d, err := parseSVG(svg)
	if err != nil {
		return nil, err
	}
	d.Source = source
	d.DOT = dot
	d.SVG = svg
	return d, nil
}

// fail converts a layout failure into a DIAGRAM_ERROR, logging the error
// chain and the stack first in debug mode.
func (e *Engine) fail(err error) error {
	if e.settings.Debug {
		e.logger.Error("blockdiag error", "chain", errorChain(err))
		e.logger.Print(string(debug.Stack()))
	}
	return errors.Wrap(errors.ErrCodeDiagram, err, "blockdiag error")
}

func errorChain(err error) string {
	var parts []string
	for ; err != nil; err = stderrors.Unwrap(err) {
		parts = append(parts, fmt.Sprintf("%T: %v", err, err))
	}
	return strings.Join(parts, " <- ")
}

// renderDOT lays out a DOT graph and renders it with Graphviz.
func renderDOT(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
