// Package media drives the two ffmpeg stages of a render: assembling the
// frame timeline into a silent video, then muxing that video with the audio.
package media

import "context"

// Stage numbers reported in EncodeError.
const (
	// StageAssemble turns the concat script into a silent H.264 video.
	StageAssemble = 1
	// StageMux combines the silent video with the audio track.
	StageMux = 2
)

// Encoder defines the encode stages of the render pipeline.
// Implementations should use ffmpeg or a compatible tool.
type Encoder interface {
	// Assemble reads the concat script at editList and writes a silent,
	// web-friendly MP4 to output.
	Assemble(ctx context.Context, editList, output string) error

	// Mux copies the video stream of video, transcodes audio to AAC and
	// writes the result to output, truncated to the shorter input.
	Mux(ctx context.Context, video, audio, output string) error
}

// Runner executes a single encoder invocation.
type Runner interface {
	// Run invokes the encoder with args and blocks until it exits or ctx is
	// done. A non-zero exit is reported as *EncodeError carrying stage.
	Run(ctx context.Context, stage int, args []string) error
}
