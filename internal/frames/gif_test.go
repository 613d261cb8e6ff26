package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPalette = color.Palette{
	color.RGBA{0, 0, 0, 0},
	color.RGBA{255, 0, 0, 255},
	color.RGBA{0, 0, 255, 255},
	color.RGBA{0, 255, 0, 255},
}

// solidFrame returns a paletted image of rect filled with palette index idx.
func solidFrame(rect image.Rectangle, idx uint8) *image.Paletted {
	img := image.NewPaletted(rect, testPalette)
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	return img
}

func encodeGIF(t *testing.T, g *gif.GIF) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func assertColor(t *testing.T, img image.Image, x, y int, want color.RGBA) {
	t.Helper()
	r, g, b, a := img.At(x, y).RGBA()
	got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	assert.Equal(t, want, got, "pixel (%d,%d)", x, y)
}

func TestGIFExtractor_WritesEveryFrameInOrder(t *testing.T) {
	full := image.Rect(0, 0, 4, 4)
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{solidFrame(full, 1), solidFrame(full, 2), solidFrame(full, 3)},
		Delay: []int{10, 10, 10},
	})

	dir := t.TempDir()
	set, err := NewGIFExtractor().Extract(context.Background(), bytes.NewReader(data), dir)
	require.NoError(t, err)
	require.Len(t, set, 3)

	for i, f := range set {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, filepath.Join(dir, FrameName(i)), f.Path)
		assert.FileExists(t, f.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "frame-00000.png"),
		filepath.Join(dir, "frame-00001.png"),
		filepath.Join(dir, "frame-00002.png"),
	}, set.Paths())

	assertColor(t, readPNG(t, set[0].Path), 0, 0, color.RGBA{255, 0, 0, 255})
	assertColor(t, readPNG(t, set[1].Path), 0, 0, color.RGBA{0, 0, 255, 255})
	assertColor(t, readPNG(t, set[2].Path), 3, 3, color.RGBA{0, 255, 0, 255})
}

func TestGIFExtractor_CompositesPartialFrames(t *testing.T) {
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{
			solidFrame(image.Rect(0, 0, 4, 4), 1),
			solidFrame(image.Rect(0, 0, 2, 2), 2),
		},
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalNone},
	})

	set, err := NewGIFExtractor().Extract(context.Background(), bytes.NewReader(data), t.TempDir())
	require.NoError(t, err)
	require.Len(t, set, 2)

	second := readPNG(t, set[1].Path)
	assert.Equal(t, image.Rect(0, 0, 4, 4), second.Bounds())
	assertColor(t, second, 0, 0, color.RGBA{0, 0, 255, 255})
	assertColor(t, second, 3, 3, color.RGBA{255, 0, 0, 255})
}

func TestGIFExtractor_BackgroundDisposalClearsArea(t *testing.T) {
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{
			solidFrame(image.Rect(0, 0, 4, 4), 1),
			solidFrame(image.Rect(0, 0, 1, 1), 2),
		},
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalBackground, gif.DisposalNone},
	})

	set, err := NewGIFExtractor().Extract(context.Background(), bytes.NewReader(data), t.TempDir())
	require.NoError(t, err)

	second := readPNG(t, set[1].Path)
	assertColor(t, second, 0, 0, color.RGBA{0, 0, 255, 255})
	assertColor(t, second, 3, 3, color.RGBA{0, 0, 0, 0})
}

func TestGIFExtractor_PreviousDisposalRestoresCanvas(t *testing.T) {
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{
			solidFrame(image.Rect(0, 0, 4, 4), 1),
			solidFrame(image.Rect(0, 0, 2, 2), 2),
			solidFrame(image.Rect(3, 3, 4, 4), 3),
		},
		Delay:    []int{10, 10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalNone},
	})

	set, err := NewGIFExtractor().Extract(context.Background(), bytes.NewReader(data), t.TempDir())
	require.NoError(t, err)

	third := readPNG(t, set[2].Path)
	assertColor(t, third, 0, 0, color.RGBA{255, 0, 0, 255})
	assertColor(t, third, 3, 3, color.RGBA{0, 255, 0, 255})
}

func TestGIFExtractor_MalformedInput(t *testing.T) {
	_, err := NewGIFExtractor().Extract(context.Background(), bytes.NewReader([]byte("not a gif")), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestGIFExtractor_NoFrames(t *testing.T) {
	// Header, 1x1 logical screen without a color table, trailer.
	data := []byte{'G', 'I', 'F', '8', '9', 'a', 1, 0, 1, 0, 0, 0, 0, 0x3b}

	dir := t.TempDir()
	_, err := NewGIFExtractor().Extract(context.Background(), bytes.NewReader(data), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGIFExtractor_FrameLimit(t *testing.T) {
	full := image.Rect(0, 0, 2, 2)
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{solidFrame(full, 1), solidFrame(full, 2), solidFrame(full, 3)},
		Delay: []int{1, 1, 1},
	})

	_, err := NewGIFExtractor(WithMaxFrames(2)).Extract(context.Background(), bytes.NewReader(data), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.True(t, errors.Is(err, ErrTooManyFrames))
}

func TestGIFExtractor_ContextCancelled(t *testing.T) {
	full := image.Rect(0, 0, 2, 2)
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{solidFrame(full, 1)},
		Delay: []int{1},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGIFExtractor().Extract(ctx, bytes.NewReader(data), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrDecode))
}

func TestWithMaxFrames_IgnoresNonPositive(t *testing.T) {
	e := NewGIFExtractor(WithMaxFrames(0))
	assert.Equal(t, DefaultMaxFrames, e.maxFrames)
}
