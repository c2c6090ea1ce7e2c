package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docdiag/pkg/pipeline"
)

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		project projectFlags
		clean   bool
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the documentation",
		Long: `Build every Markdown document under the source directory.

Configuration is read from docdiag.toml in the project directory. Flags
override the file, and -D overrides any config value, including extension
settings:

  docdiag build -b latex -D blockdiag_tex_image_format=PDF`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := project.options(cmd.Flags())
			if err != nil {
				return err
			}
			opts.Clean = clean

			logger := loggerFromContext(cmd.Context())
			runner := pipeline.NewRunner(nil, nil, logger)

			var spinner *Spinner
			if !quiet {
				spinner = newSpinnerWithContext(cmd.Context(), "Building documentation...")
				spinner.Start()
			}
			res, err := runner.Build(cmd.Context(), opts)
			if spinner != nil {
				if err != nil {
					spinner.StopWithError("Build failed")
				} else {
					spinner.Stop()
				}
			}
			if err != nil || quiet {
				return err
			}
			printBuildResult(res)
			printNextStep("Preview with", "docdiag serve -C "+displayDir(project.dir))
			return nil
		},
	}

	project.register(cmd.Flags())
	cmd.Flags().BoolVar(&clean, "clean", false, "remove the output directory first")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and errors")

	return cmd
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return filepath.Clean(dir)
}
