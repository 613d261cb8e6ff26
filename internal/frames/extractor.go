// Package frames turns an animated GIF into an ordered set of still PNG
// frames on disk, ready to be referenced from an ffmpeg concat script.
package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrDecode is matched by every DecodeError via errors.Is.
var ErrDecode = errors.New("decode animation")

// ErrNoFrames is wrapped by DecodeError when the animation has no frames.
var ErrNoFrames = errors.New("animation contains no frames")

// ErrTooManyFrames is wrapped by DecodeError when the frame ceiling is exceeded.
var ErrTooManyFrames = errors.New("animation exceeds the frame limit")

// DecodeError reports an input that is not a usable animation.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode animation: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Frame is a single decoded still image.
type Frame struct {
	// Index is the 0-based position in the animation's playback order.
	Index int
	// Path is where the lossless PNG for this frame was written.
	Path string
}

// FrameSet is the ordered, non-empty list of frames of one animation.
type FrameSet []Frame

// Paths returns the frame file paths in playback order.
func (fs FrameSet) Paths() []string {
	paths := make([]string, len(fs))
	for i, f := range fs {
		paths[i] = f.Path
	}
	return paths
}

// Extractor decodes an animation into frame files.
type Extractor interface {
	// Extract decodes every frame of src and writes each one into dir.
	// File names sort in playback order. Returns a *DecodeError when src is
	// malformed or empty.
	Extract(ctx context.Context, src io.Reader, dir string) (FrameSet, error)
}

// FrameName returns the file name used for the frame at index.
func FrameName(index int) string {
	return fmt.Sprintf("frame-%05d.png", index)
}
