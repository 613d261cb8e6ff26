// Package audio provides audio inspection used when the caller does not
// supply the audio duration.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for audio probing.
var (
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoDuration is returned when ffprobe reports no usable duration.
	ErrNoDuration = errors.New("no duration reported")
)

// Prober reports the playback length of a media file.
type Prober interface {
	// Duration returns the duration of the file at path in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobeProber implements Prober using the ffprobe CLI.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a new FFprobeProber.
// If ffprobePath is empty, it defaults to "ffprobe" (found in PATH).
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: ffprobePath}
}

// Duration returns the container duration of path in seconds.
func (p *FFprobeProber) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	return parseDuration(stdout.String())
}

// parseDuration reads the single value printed by ffprobe. ffprobe prints
// "N/A" for streams without a known duration.
func parseDuration(output string) (float64, error) {
	value := strings.TrimSpace(output)
	if value == "" || value == "N/A" {
		return 0, ErrNoDuration
	}
	// Some builds print one line per format entry; the first one wins.
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrNoDuration, d)
	}
	return d, nil
}

// Verify interface implementation at compile time.
var _ Prober = (*FFprobeProber)(nil)
