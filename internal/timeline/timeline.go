// Package timeline computes how long each animation frame is shown so that one
// full animation cycle fills exactly one beat, and serializes the result as an
// ffmpeg concat script (the edit-decision list).
package timeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// durationFormat is the fixed precision used for every duration line.
// ffmpeg's concat parser rejects exponent notation, so %g is not an option.
const durationFormat = "%.4f"

// ErrInvalidTimeline is matched by every InvalidTimelineError via errors.Is.
var ErrInvalidTimeline = errors.New("invalid timeline")

// InvalidTimelineError reports parameters that make the timeline undefined.
type InvalidTimelineError struct {
	Reason string
}

func (e *InvalidTimelineError) Error() string {
	return fmt.Sprintf("invalid timeline: %s", e.Reason)
}

// Is reports whether target is ErrInvalidTimeline.
func (e *InvalidTimelineError) Is(target error) bool {
	return target == ErrInvalidTimeline
}

// Entry is a single line pair of the edit-decision list.
type Entry struct {
	// Path is the on-disk location of the frame image.
	Path string
	// Duration is how long the frame is displayed, in seconds.
	Duration float64
}

// Timeline is the ordered edit-decision list for the assemble stage.
type Timeline struct {
	// Entries holds BeatCount full passes over the frames in native order.
	Entries []Entry
	// BeatCount is the number of animation cycles needed to cover the audio.
	BeatCount int
	// FrameDuration is the display time of every frame, in seconds.
	FrameDuration float64
}

// Validate checks the numeric parameters of a render before any work is done.
// Both values must be finite and positive and the beat may not be longer than
// the audio.
func Validate(timePerBeat, audioDuration float64) error {
	if !isFinite(timePerBeat) || timePerBeat <= 0 {
		return &InvalidTimelineError{Reason: fmt.Sprintf("time per beat must be a positive number, got %v", timePerBeat)}
	}
	if !isFinite(audioDuration) || audioDuration <= 0 {
		return &InvalidTimelineError{Reason: fmt.Sprintf("audio duration must be a positive number, got %v", audioDuration)}
	}
	if timePerBeat > audioDuration {
		return &InvalidTimelineError{Reason: fmt.Sprintf("time per beat %v exceeds audio duration %v", timePerBeat, audioDuration)}
	}
	return nil
}

// Build lays out beatCount = ceil(audioDuration/timePerBeat) repetitions of
// frames, each frame lasting timePerBeat/len(frames) seconds. The last cycle
// may run past the end of the audio; the mux stage trims it.
func Build(frames []string, timePerBeat, audioDuration float64) (*Timeline, error) {
	if len(frames) == 0 {
		return nil, &InvalidTimelineError{Reason: "no frames"}
	}
	if err := Validate(timePerBeat, audioDuration); err != nil {
		return nil, err
	}

	frameDuration := timePerBeat / float64(len(frames))
	beats := BeatCount(timePerBeat, audioDuration)

	entries := make([]Entry, 0, beats*len(frames))
	for beat := 0; beat < beats; beat++ {
		for _, path := range frames {
			entries = append(entries, Entry{Path: path, Duration: frameDuration})
		}
	}

	return &Timeline{
		Entries:       entries,
		BeatCount:     beats,
		FrameDuration: frameDuration,
	}, nil
}

// BeatCount returns how many whole beats are needed to cover audioDuration.
// Callers must validate the inputs first.
func BeatCount(timePerBeat, audioDuration float64) int {
	return int(math.Ceil(audioDuration / timePerBeat))
}

// Duration returns the total playback length of the timeline in seconds,
// computed from the rounded values that ffmpeg will actually read.
func (t *Timeline) Duration() float64 {
	rounded, _ := strconv.ParseFloat(FormatDuration(t.FrameDuration), 64)
	return rounded * float64(len(t.Entries))
}

// WriteTo writes the concat script: a quoted "file" line followed by a
// "duration" line for every entry. The output is deterministic for identical input.
func (t *Timeline) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, e := range t.Entries {
		n, err := fmt.Fprintf(bw, "file %s\nduration %s\n", QuotePath(e.Path), FormatDuration(e.Duration))
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush edit list: %w", err)
	}
	return written, nil
}

// Write stores the concat script at path.
func (t *Timeline) Write(path string) error {
	f, err := os.Create(path) // #nosec G304 - path is built from the job's scratch dir
	if err != nil {
		return fmt.Errorf("create edit list: %w", err)
	}
	if _, err := t.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close edit list: %w", err)
	}
	return nil
}

// QuotePath wraps path in single quotes for the concat demuxer. Embedded
// single quotes close the string, are escaped, and reopen it.
func QuotePath(path string) string {
	return "'" + strings.ReplaceAll(path, "'", "'\\''") + "'"
}

// FormatDuration renders seconds with the fixed 4 digit precision.
func FormatDuration(seconds float64) string {
	return fmt.Sprintf(durationFormat, seconds)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
