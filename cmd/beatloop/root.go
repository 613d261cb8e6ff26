package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/beatloop/internal/config"
)

// commandContext carries state shared by subcommands.
type commandContext struct {
	verbose bool
	cfg     *config.Config
}

// ensureConfig loads the environment configuration once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.LogLevel = "debug"
	}
	c.cfg = cfg
	return cfg, nil
}

// logger writes to stderr so stdout stays free for command output.
func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	return c.cfg.NewLoggerTo(cmd.ErrOrStderr())
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "beatloop",
		Short:         "Loop a GIF in time with a soundtrack",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log ffmpeg output and pipeline details")

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))

	return rootCmd
}
