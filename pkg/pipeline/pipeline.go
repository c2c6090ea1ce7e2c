// Package pipeline runs documentation builds for the CLI and the preview
// server.
//
// A build loads the project configuration, sets up the enabled extensions,
// parses every document under the source directory and writes them with
// the configured builder. Laid-out diagrams and the index of rendered
// images live in the build cache, so unchanged diagrams are not drawn
// again on the next build.
//
// # Usage
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, err := runner.Build(ctx, pipeline.Options{Dir: "."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Documents, result.Rendered, result.Cached)
//
// A single diagram can be rendered without a project:
//
//	a, err := runner.Render(ctx, pipeline.RenderOptions{
//	    Source:  "blockdiag { A -> B }",
//	    Format:  "svg",
//	    OutPath: "flow.svg",
//	})
package pipeline

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/matzehuels/docdiag/pkg/blockdiag"
	"github.com/matzehuels/docdiag/pkg/cache"
	"github.com/matzehuels/docdiag/pkg/config"
	"github.com/matzehuels/docdiag/pkg/docs"
	"github.com/matzehuels/docdiag/pkg/errors"
)

// CacheDirName is the default cache directory inside the output directory.
const CacheDirName = ".docdiag"

// Extensions are the extensions a project can enable by name.
var Extensions = map[string]docs.Extension{
	blockdiag.Name: blockdiag.Setup,
}

// ExtensionNames returns the known extension names, sorted.
func ExtensionNames() []string {
	names := make([]string, 0, len(Extensions))
	for name := range Extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Options
// =============================================================================

// Options configures a build.
type Options struct {
	// Config is the project configuration. When nil it is loaded from
	// ConfigFile, or from docdiag.toml in Dir.
	Config     *config.Config
	ConfigFile string
	Dir        string
	Flags      *pflag.FlagSet

	// Builder overrides the configured builder.
	Builder string
	// Overrides are applied to the configuration after the extensions
	// registered their defaults.
	Overrides map[string]any
	// Clean removes the output directory before building.
	Clean bool
}

// LoadConfig returns the configuration for opts. Relative source, output
// and cache paths are resolved against the directory of the config file.
func (o Options) LoadConfig() (*config.Config, error) {
	cfg := o.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(config.LoadOptions{File: o.ConfigFile, Dir: o.Dir, Flags: o.Flags})
		if err != nil {
			return nil, err
		}
		resolvePaths(cfg)
	}
	if o.Builder != "" {
		cfg.Builder = strings.ToLower(o.Builder)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func resolvePaths(cfg *config.Config) {
	file := cfg.File()
	if file == "" {
		return
	}
	base := filepath.Dir(file)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	cfg.Source = abs(cfg.Source)
	cfg.Output = abs(cfg.Output)
	cfg.Cache.Dir = abs(cfg.Cache.Dir)
}

// CacheDir returns the directory of the file cache backend.
func CacheDir(cfg *config.Config) string {
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir
	}
	return filepath.Join(cfg.Output, CacheDirName)
}

// OpenCache opens the configured cache backend.
func OpenCache(cfg *config.Config) (cache.Cache, error) {
	target := cfg.Cache.URL
	if cfg.Cache.Backend == cache.BackendFile || cfg.Cache.Backend == "" {
		target = CacheDir(cfg)
	}
	c, err := cache.Open(cfg.Cache.Backend, target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open cache")
	}
	return c, nil
}

// =============================================================================
// Result
// =============================================================================

// Result summarizes a build.
type Result struct {
	// BuildID identifies the build in logs and hooks.
	BuildID string
	Builder string
	OutDir  string

	Documents int
	// Diagrams counts diagram occurrences; Rendered and Cached split the
	// successful ones by whether an image was drawn.
	Diagrams int
	Rendered int
	Cached   int
	Failed   int
	Warnings int

	Duration time.Duration
}
