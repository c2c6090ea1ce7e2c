package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/docdiag/pkg/buildinfo"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/pipeline"
)

// appName is the application name used for display.
const appName = "docdiag"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "docdiag builds Markdown documentation with blockdiag diagrams",
		Long: `docdiag builds a tree of Markdown documents into HTML, LaTeX or plain text.
Fenced blocks marked "blockdiag" are drawn as images; diagram nodes can link
to other pages with :ref:` + "`label`" + ` references.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Project Flags
// =============================================================================

// projectFlags are the flags shared by commands that read a project.
type projectFlags struct {
	config  string
	dir     string
	defines []string
}

// register adds the project flags to fs. The names of the flags bound to
// config keys must match those known to the config package.
func (p *projectFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&p.config, "config", "c", "", "config file (default: docdiag.toml in --dir)")
	fs.StringVarP(&p.dir, "dir", "C", ".", "project directory")
	fs.String("source", "", "source directory")
	fs.StringP("out", "o", "", "output directory")
	fs.StringP("builder", "b", "", "builder: html, latex or text")
	fs.String("cache-backend", "", "cache backend: file, redis or none")
	fs.String("cache-url", "", "redis URL for the redis cache backend")
	fs.StringArrayVarP(&p.defines, "define", "D", nil, "override a config value (name=value)")
}

// options returns the pipeline options for the flags.
func (p *projectFlags) options(fs *pflag.FlagSet) (pipeline.Options, error) {
	overrides, err := parseDefines(p.defines)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		ConfigFile: p.config,
		Dir:        p.dir,
		Flags:      fs,
		Overrides:  overrides,
	}, nil
}

// parseDefines parses name=value overrides. Values that look like booleans
// or integers are converted.
func parseDefines(defines []string) (map[string]any, error) {
	if len(defines) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(defines))
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.New(errors.ErrCodeInvalidOption, "invalid define %q (want name=value)", d)
		}
		out[name] = defineValue(value)
	}
	return out, nil
}

func defineValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
