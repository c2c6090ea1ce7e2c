package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string   // output file; defaults to the input name with the format extension
	format    string   // png, svg or pdf
	maxWidth  int      // thumbnail width, 0 for none
	antialias bool     // draw bitmaps at double resolution and downsample
	fontMap   string   // TOML font map file
	fonts     []string // candidate default font files
}

// renderCommand creates the render command for drawing a single diagram.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{format: "png"}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a single blockdiag diagram",
		Long: `Render a blockdiag source file (or stdin when the file is "-") to an image.

  docdiag render flow.diag --format svg
  echo 'blockdiag { A -> B }' | docdiag render - -o flow.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			out := opts.output
			if out == "" {
				out, err = defaultOutput(args[0], opts.format)
				if err != nil {
					return err
				}
			}

			logger := loggerFromContext(cmd.Context())
			runner := pipeline.NewRunner(nil, nil, logger)
			prog := newProgress(logger)
			a, err := runner.Render(cmd.Context(), pipeline.RenderOptions{
				Source:    source,
				Format:    opts.format,
				OutPath:   out,
				MaxWidth:  opts.maxWidth,
				Antialias: opts.antialias,
				FontMap:   opts.fontMap,
				FontPath:  opts.fonts,
			})
			if err != nil {
				return err
			}
			prog.done("Rendered " + out)

			printSuccess("Rendered %s (%.0f×%.0f)", a.Format, a.Width, a.Height)
			printFile(a.Path)
			if a.Thumb != nil {
				printFile(a.Thumb.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: "+strings.Join(formatNames(), ", "))
	cmd.Flags().IntVar(&opts.maxWidth, "maxwidth", 0, "also write a thumbnail scaled to this width")
	cmd.Flags().BoolVar(&opts.antialias, "antialias", false, "antialias bitmap output")
	cmd.Flags().StringVar(&opts.fontMap, "fontmap", "", "font map file")
	cmd.Flags().StringSliceVar(&opts.fonts, "font", nil, "default font file (first existing one is used)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return formatNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// formatNames lists the output formats as accepted by --format.
func formatNames() []string {
	names := make([]string, len(diagram.Formats))
	for i, f := range diagram.Formats {
		names[i] = f.Ext()
	}
	return names
}

// readSource reads a diagram from path, or from stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInternal, err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.ErrCodeFileNotFound, "file not found: %s", path)
		}
		return "", errors.Wrap(errors.ErrCodeInternal, err, "read %s", path)
	}
	return string(data), nil
}

// defaultOutput derives the output file from the input file.
func defaultOutput(input, format string) (string, error) {
	if input == "-" {
		return "", errors.New(errors.ErrCodeInvalidPath, "--output is required when reading stdin")
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "." + strings.ToLower(format), nil
}
