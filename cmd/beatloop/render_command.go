package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/beatloop/internal/audio"
	"github.com/maauso/beatloop/internal/bootstrap"
	"github.com/maauso/beatloop/internal/job"
)

type renderOptions struct {
	gifPath       string
	audioPath     string
	timePerBeat   float64
	audioDuration float64
	output        string
	pushToS3      bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a beat-synced MP4 from a GIF and an audio file",
		Example: `  beatloop render --gif dance.gif --audio song.mp3 --time-per-beat 0.5
  beatloop render --gif dance.gif --audio song.mp3 --time-per-beat 0.5 --audio-duration 30 -o loop.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.gifPath, "gif", "", "Animated GIF to loop")
	cmd.Flags().StringVar(&opts.audioPath, "audio", "", "Soundtrack")
	cmd.Flags().Float64Var(&opts.timePerBeat, "time-per-beat", 0, "Seconds per beat; one full animation cycle per beat")
	cmd.Flags().Float64Var(&opts.audioDuration, "audio-duration", 0, "Soundtrack length in seconds (probed with ffprobe when omitted)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (defaults to OUTPUT_FILENAME)")
	cmd.Flags().BoolVar(&opts.pushToS3, "push-to-s3", false, "Upload the result to the configured S3 bucket")
	_ = cmd.MarkFlagRequired("gif")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("time-per-beat")

	return cmd
}

func runRender(cmd *cobra.Command, ctx *commandContext, opts renderOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.logger(cmd)

	animation, err := os.ReadFile(opts.gifPath)
	if err != nil {
		return fmt.Errorf("read gif: %w", err)
	}
	soundtrack, err := os.ReadFile(opts.audioPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	duration := opts.audioDuration
	if !cmd.Flags().Changed("audio-duration") {
		duration, err = audio.NewFFprobeProber(cfg.FFprobePath).Duration(cmd.Context(), opts.audioPath)
		if err != nil {
			return fmt.Errorf("probe audio duration: %w", err)
		}
		logger.Debug("probed audio duration", slog.Float64("seconds", duration))
	}

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return err
	}

	res, err := deps.RenderService.Render(cmd.Context(), job.Request{
		Animation:     animation,
		Audio:         soundtrack,
		TimePerBeat:   opts.timePerBeat,
		AudioDuration: duration,
		PushToS3:      opts.pushToS3,
	})
	if err != nil {
		return err
	}
	defer func() { _ = res.Close() }()

	out := cmd.OutOrStdout()
	if res.VideoURL != "" {
		fmt.Fprintln(out, res.VideoURL)
		return nil
	}

	dest := opts.output
	if dest == "" {
		dest = cfg.OutputFilename
	}
	size, err := copyFile(res.OutputPath, dest)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "wrote %s (%s, %d frames x %d beats) in %s\n",
		dest, humanize.IBytes(uint64(size)), res.FrameCount, res.BeatCount, res.Elapsed.Round(time.Millisecond))
	return nil
}

// copyFile copies src to dst. The scratch directory may be on another device,
// so a rename is not enough.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src) // #nosec G304 - path comes from the render result
	if err != nil {
		return 0, fmt.Errorf("open rendered video: %w", err)
	}
	defer func() { _ = in.Close() }()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}

	out, err := os.Create(dst) // #nosec G304 - user-chosen output path
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("write output: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("close output: %w", err)
	}
	return n, nil
}
