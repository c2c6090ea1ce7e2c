package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docdiag/pkg/cache"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/pipeline"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the diagram cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var project projectFlags

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached diagrams and the image index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := project.options(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend != cache.BackendFile {
				return errors.New(errors.ErrCodeUnsupported, "cannot clear the %s cache backend", cfg.Cache.Backend)
			}

			dir := pipeline.CacheDir(cfg)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}
			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return err
			}
			count, err := fc.(*cache.FileCache).Clear()
			if err != nil {
				return err
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}
	project.register(cmd.Flags())
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var project projectFlags

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := project.options(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			switch cfg.Cache.Backend {
			case cache.BackendFile:
				fmt.Fprintln(cmd.OutOrStdout(), pipeline.CacheDir(cfg))
			case cache.BackendRedis:
				fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.URL)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Backend)
			}
			return nil
		},
	}
	project.register(cmd.Flags())
	return cmd
}
