package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFFmpeg writes its last argument, which is always the output file.
const stubFFmpeg = `for last; do :; done
printf 'video' > "$last"`

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not supported on windows")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writeGIF(t *testing.T, path string, frames int) {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 2, 2), pal)
		img.Pix[0] = uint8(i % 2)
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 5)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

type cliEnv struct {
	dir     string
	gif     string
	audio   string
	scratch string
}

func setupCLIEnv(t *testing.T, ffprobeBody string) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		dir:     dir,
		gif:     filepath.Join(dir, "dance.gif"),
		audio:   filepath.Join(dir, "song.mp3"),
		scratch: filepath.Join(dir, "scratch"),
	}
	writeGIF(t, env.gif, 3)
	require.NoError(t, os.WriteFile(env.audio, []byte("ID3"), 0o600))

	t.Setenv("TEMP_DIR", env.scratch)
	t.Setenv("FFMPEG_PATH", writeStub(t, dir, "ffmpeg", stubFFmpeg))
	t.Setenv("FFPROBE_PATH", writeStub(t, dir, "ffprobe", ffprobeBody))
	t.Setenv("S3_BUCKET", "")
	t.Setenv("S3_REGION", "")
	return env
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRender_WithExplicitDuration(t *testing.T) {
	env := setupCLIEnv(t, "exit 1")
	output := filepath.Join(env.dir, "out", "loop.mp4")

	stdout, _, err := execute(t, "render",
		"--gif", env.gif,
		"--audio", env.audio,
		"--time-per-beat", "0.5",
		"--audio-duration", "2",
		"-o", output,
	)
	require.NoError(t, err)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "video", string(content))
	assert.Contains(t, stdout, "wrote "+output)
	assert.Contains(t, stdout, "3 frames x 4 beats")

	entries, err := os.ReadDir(env.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory should be cleaned up")
}

func TestRender_ProbesDuration(t *testing.T) {
	env := setupCLIEnv(t, "echo 1.200000")
	output := filepath.Join(env.dir, "probed.mp4")

	stdout, _, err := execute(t, "render",
		"--gif", env.gif,
		"--audio", env.audio,
		"--time-per-beat", "0.5",
		"-o", output,
	)
	require.NoError(t, err)
	// ceil(1.2 / 0.5) = 3
	assert.Contains(t, stdout, "3 frames x 3 beats")
}

func TestRender_Errors(t *testing.T) {
	env := setupCLIEnv(t, "exit 1")

	t.Run("missing flags", func(t *testing.T) {
		_, _, err := execute(t, "render", "--gif", env.gif)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required flag")
	})

	t.Run("missing gif file", func(t *testing.T) {
		_, _, err := execute(t, "render", "--gif", filepath.Join(env.dir, "nope.gif"),
			"--audio", env.audio, "--time-per-beat", "1", "--audio-duration", "2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read gif")
	})

	t.Run("probe failure", func(t *testing.T) {
		_, _, err := execute(t, "render", "--gif", env.gif, "--audio", env.audio, "--time-per-beat", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "probe audio duration")
	})

	t.Run("beat longer than audio", func(t *testing.T) {
		_, _, err := execute(t, "render", "--gif", env.gif, "--audio", env.audio,
			"--time-per-beat", "5", "--audio-duration", "2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds audio duration")
	})
}

func TestCheck(t *testing.T) {
	env := setupCLIEnv(t, "exit 0")

	stdout, _, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join(env.dir, "ffmpeg"))
	assert.Contains(t, stdout, filepath.Join(env.dir, "ffprobe"))

	t.Setenv("FFPROBE_PATH", filepath.Join(env.dir, "missing-ffprobe"))
	stdout, _, err = execute(t, "check")
	assert.ErrorIs(t, err, errToolsMissing)
	assert.True(t, strings.Contains(stdout, "ffprobe  missing"), stdout)
}
