package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrEncode is matched by every EncodeError via errors.Is.
var ErrEncode = errors.New("encode failed")

// stderrTailBytes is how much of the encoder's diagnostics an EncodeError keeps.
const stderrTailBytes = 4096

// waitDelay bounds how long Run waits for stderr to close after the process
// was killed.
const waitDelay = 5 * time.Second

// FFmpegRunner implements Runner using the ffmpeg CLI.
type FFmpegRunner struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	logger     *slog.Logger
}

// NewFFmpegRunner creates a new FFmpegRunner.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegRunner(ffmpegPath string, logger *slog.Logger) *FFmpegRunner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegRunner{ffmpegPath: ffmpegPath, logger: logger}
}

// Run executes ffmpeg with the given arguments. Diagnostics written to stderr
// are streamed to the logger at debug level line by line; the tail is kept for
// the error. The process is killed when ctx is done.
func (r *FFmpegRunner) Run(ctx context.Context, stage int, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	cmd.WaitDelay = waitDelay

	tail := &tailBuffer{limit: stderrTailBytes}
	lines := &lineLogger{logger: r.logger.With(slog.Int("stage", stage))}
	cmd.Stderr = io.MultiWriter(tail, lines)

	r.logger.Debug("running ffmpeg",
		slog.Int("stage", stage),
		slog.String("args", strings.Join(args, " ")),
	)

	err := cmd.Run()
	lines.flush()
	if err == nil {
		return nil
	}

	// Check if context was cancelled
	if ctx.Err() != nil {
		return fmt.Errorf("ffmpeg stage %d cancelled: %w", stage, ctx.Err())
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &EncodeError{
		Stage:    stage,
		ExitCode: exitCode,
		Args:     args,
		Stderr:   tail.String(),
		Err:      err,
	}
}

// EncodeError represents a failed encoder stage, including the exit code and
// the tail of the stderr output.
type EncodeError struct {
	Stage    int
	ExitCode int
	Args     []string
	Stderr   string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("ffmpeg stage %d exited with code %d: %v", e.Stage, e.ExitCode, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEncode.
func (e *EncodeError) Is(target error) bool {
	return target == ErrEncode
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

// lineLogger forwards complete stderr lines to a logger. ffmpeg rewrites its
// progress line with carriage returns, so both \r and \n end a line.
type lineLogger struct {
	logger  *slog.Logger
	partial []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' || b == '\r' {
			l.emit()
			continue
		}
		l.partial = append(l.partial, b)
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.emit()
}

func (l *lineLogger) emit() {
	line := strings.TrimSpace(string(l.partial))
	l.partial = l.partial[:0]
	if line == "" {
		return
	}
	l.logger.Debug("ffmpeg", slog.String("line", line))
}

// Verify interface implementation at compile time.
var _ Runner = (*FFmpegRunner)(nil)
