package main

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

var errToolsMissing = errors.New("required tools are missing")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that ffmpeg and ffprobe can be found",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			missing := false
			for _, tool := range []struct{ name, path string }{
				{"ffmpeg", cfg.FFmpegPath},
				{"ffprobe", cfg.FFprobePath},
			} {
				resolved, err := exec.LookPath(tool.path)
				if err != nil {
					missing = true
					fmt.Fprintf(out, "%-8s missing (%s)\n", tool.name, tool.path)
					continue
				}
				fmt.Fprintf(out, "%-8s %s\n", tool.name, resolved)
			}

			if missing {
				return errToolsMissing
			}
			return nil
		},
	}
}
