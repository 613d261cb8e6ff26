package media

import (
	"context"
)

// assembleFilter converts to RGBA first so transparent GIF areas flatten
// predictably, then rounds both dimensions down to even numbers because
// libx264 with yuv420p rejects odd sizes.
const assembleFilter = "format=rgba,scale=trunc(iw/2)*2:trunc(ih/2)*2:flags=lanczos,format=yuv420p"

// Pipeline implements Encoder on top of a Runner.
type Pipeline struct {
	runner Runner
}

// NewPipeline creates a Pipeline that executes stages through runner.
func NewPipeline(runner Runner) *Pipeline {
	return &Pipeline{runner: runner}
}

// Assemble runs stage 1.
func (p *Pipeline) Assemble(ctx context.Context, editList, output string) error {
	return p.runner.Run(ctx, StageAssemble, AssembleArgs(editList, output))
}

// Mux runs stage 2.
func (p *Pipeline) Mux(ctx context.Context, video, audio, output string) error {
	return p.runner.Run(ctx, StageMux, MuxArgs(video, audio, output))
}

// AssembleArgs builds the ffmpeg arguments that turn a concat script into a
// silent video.
func AssembleArgs(editList, output string) []string {
	return []string{
		"-hide_banner",
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", editList, // Edit-decision list
		"-vsync", "vfr", // Keep the per-frame durations from the list
		"-pix_fmt", "yuv420p", // Pixel format for compatibility
		"-c:v", "libx264", // Video codec
		"-movflags", "faststart", // Move moov atom to the front for progressive playback
		"-vf", assembleFilter,
		"-y", // Overwrite output file
		output,
	}
}

// MuxArgs builds the ffmpeg arguments that add the audio track to the
// assembled video. -shortest trims the overshoot of the last beat.
func MuxArgs(video, audio, output string) []string {
	return []string{
		"-hide_banner",
		"-i", video,
		"-i", audio,
		"-c:v", "copy", // Video is already encoded
		"-c:a", "aac", // Audio codec
		"-shortest",
		"-y",
		output,
	}
}

// Verify interface implementation at compile time.
var _ Encoder = (*Pipeline)(nil)
