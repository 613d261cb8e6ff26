package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr error
	}{
		{name: "plain", output: "12.345000\n", want: 12.345},
		{name: "multiple lines", output: "3.5\n4.0\n", want: 3.5},
		{name: "not available", output: "N/A\n", wantErr: ErrNoDuration},
		{name: "empty", output: "", wantErr: ErrNoDuration},
		{name: "zero", output: "0.000000", wantErr: ErrNoDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration(tt.output)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := parseDuration("abc")
	assert.Error(t, err)
}

func TestNewFFprobeProber(t *testing.T) {
	assert.Equal(t, "ffprobe", NewFFprobeProber("").ffprobePath)
	assert.Equal(t, "/opt/ffprobe", NewFFprobeProber("/opt/ffprobe").ffprobePath)
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestFFprobeProber_Duration(t *testing.T) {
	stub := writeStub(t, "echo 7.250000")

	d, err := NewFFprobeProber(stub).Duration(context.Background(), "audio.mp3")
	require.NoError(t, err)
	assert.InDelta(t, 7.25, d, 1e-9)
}

func TestFFprobeProber_Failure(t *testing.T) {
	stub := writeStub(t, "echo 'audio.mp3: No such file or directory' >&2\nexit 1")

	_, err := NewFFprobeProber(stub).Duration(context.Background(), "audio.mp3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFFprobeExecution))
	assert.Contains(t, err.Error(), "No such file")
}

func TestFFprobeProber_WithFFprobe(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=2", path)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}

	d, err := NewFFprobeProber("").Duration(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.05)
}
