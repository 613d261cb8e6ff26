package frames

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

// DefaultMaxFrames bounds how many frames a single animation may expand to.
const DefaultMaxFrames = 2000

// GIFExtractor implements Extractor for animated GIFs.
type GIFExtractor struct {
	maxFrames int
	encoder   *png.Encoder
}

// GIFOption configures a GIFExtractor.
type GIFOption func(*GIFExtractor)

// WithMaxFrames sets the frame ceiling. Non-positive values keep the default.
func WithMaxFrames(n int) GIFOption {
	return func(e *GIFExtractor) {
		if n > 0 {
			e.maxFrames = n
		}
	}
}

// NewGIFExtractor creates a GIFExtractor.
func NewGIFExtractor(opts ...GIFOption) *GIFExtractor {
	e := &GIFExtractor{
		maxFrames: DefaultMaxFrames,
		encoder:   &png.Encoder{CompressionLevel: png.BestSpeed},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract decodes all frames of a GIF and writes each fully composited frame
// as a PNG. Sub-rectangle frames are drawn over the previous canvas and the
// GIF disposal methods are honored, so every output file is a complete
// picture at the animation's logical screen size.
func (e *GIFExtractor) Extract(ctx context.Context, src io.Reader, dir string) (FrameSet, error) {
	g, err := gif.DecodeAll(src)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(g.Image) == 0 {
		return nil, &DecodeError{Err: ErrNoFrames}
	}
	if len(g.Image) > e.maxFrames {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %d > %d", ErrTooManyFrames, len(g.Image), e.maxFrames)}
	}

	canvas := image.NewRGBA(screenBounds(g))
	var previous *image.RGBA

	set := make(FrameSet, 0, len(g.Image))
	for i, img := range g.Image {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract frames: %w", err)
		}

		disposal := disposalAt(g, i)
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, img.Bounds(), img, img.Bounds().Min, draw.Over)

		path := filepath.Join(dir, FrameName(i))
		if err := e.writePNG(path, canvas); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", i, err)
		}
		set = append(set, Frame{Index: i, Path: path})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, img.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			if previous != nil {
				draw.Draw(canvas, canvas.Bounds(), previous, image.Point{}, draw.Src)
			}
		}
	}

	return set, nil
}

func (e *GIFExtractor) writePNG(path string, img image.Image) error {
	f, err := os.Create(path) // #nosec G304 - path is built from the job's scratch dir
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	if err := e.encoder.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// screenBounds returns the logical screen of the GIF, falling back to the
// union of the frame rectangles when the header does not declare one.
func screenBounds(g *gif.GIF) image.Rectangle {
	if g.Config.Width > 0 && g.Config.Height > 0 {
		return image.Rect(0, 0, g.Config.Width, g.Config.Height)
	}
	var r image.Rectangle
	for _, img := range g.Image {
		r = r.Union(img.Bounds())
	}
	return image.Rect(0, 0, r.Max.X, r.Max.Y)
}

func disposalAt(g *gif.GIF, i int) byte {
	if i < len(g.Disposal) {
		return g.Disposal[i]
	}
	return gif.DisposalNone
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Verify interface implementation at compile time.
var _ Extractor = (*GIFExtractor)(nil)
