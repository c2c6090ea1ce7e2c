package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/docdiag/pkg/pipeline"
	"github.com/matzehuels/docdiag/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var project projectFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build, serve and rebuild the documentation on changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := project.options(cmd.Flags())
			if err != nil {
				return err
			}
			logger := loggerFromContext(cmd.Context())

			srv, err := server.New(server.Options{
				Build:  opts,
				Runner: pipeline.NewRunner(nil, nil, logger),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			cfg := srv.Config()
			printInfo("Serving %s", StyleLink.Render("http://"+cfg.Server.Addr()))
			printDetail("Watching %s", cfg.Source)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	project.register(cmd.Flags())
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().Int("port", 0, "listen port")

	return cmd
}
