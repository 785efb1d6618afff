package imagetrack

import (
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
)

// defaultDelay is the effective per-frame delay, in hundredths of a second,
// when a frame carries none
const defaultDelay = 10

// Frame is one fully composed frame of a track with its animation delay in
// hundredths of a second. Still frames carry delay 0.
type Frame struct {
	Pix   *image.NRGBA
	Delay int
}

// Track is an ordered, cyclic sequence of frames for one side of the panel.
// Tracks are immutable after Load.
type Track struct {
	frames []Frame
}

// Load decodes the file at path into a track, coalescing animation frames
// and scaling every frame to fit within width x height while preserving
// aspect ratio. GIF, PNG, JPEG and SVG inputs are supported.
func Load(fs afero.Fs, path string, width, height int) (*Track, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer file.Close()

	var frames []Frame
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		frames, err = decodeGIF(file)
	case ".svg":
		frames, err = decodeSVG(file, width, height)
	default:
		frames, err = decodeStill(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no image found in %s", path)
	}

	for i := range frames {
		frames[i].Pix = scaleToFit(frames[i].Pix, width, height, len(frames) > 1)
	}

	log.Info().Str("path", path).Int("frames", len(frames)).
		Int("width", width).Int("height", height).Msg("loaded image track")

	return &Track{frames: frames}, nil
}

// Len returns the number of frames in the track
func (t *Track) Len() int {
	return len(t.frames)
}

// Animated reports whether the track has more than one frame
func (t *Track) Animated() bool {
	return len(t.frames) > 1
}

// Frame returns the frame pixels at index i modulo the track length
func (t *Track) Frame(i int) *image.NRGBA {
	return t.frames[i%len(t.frames)].Pix
}

// Delay returns the animation delay, in hundredths of a second, of the frame
// at index i modulo the track length
func (t *Track) Delay(i int) int {
	return t.frames[i%len(t.frames)].Delay
}

// CompositeDelay derives the sleep for composited frame f from the two
// tracks: the average when both sides contribute a delay, otherwise
// whichever is present, with a 100ms floor for delay-less frames.
func CompositeDelay(left, right *Track, f int) int {
	delay := 0
	if f < left.Len() {
		delay = left.Delay(f)
	}
	if f < right.Len() {
		rightDelay := right.Delay(f)
		if delay > 0 {
			delay = (delay + rightDelay) / 2
		} else {
			delay = rightDelay
		}
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	return delay
}

func decodeStill(file afero.File) ([]Frame, error) {
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return []Frame{{Pix: toNRGBA(img)}}, nil
}

// decodeGIF decodes all frames and coalesces the disposal-based deltas into
// full self-contained frames.
func decodeGIF(file afero.File) ([]Frame, error) {
	g, err := gif.DecodeAll(file)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(bounds)

	frames := make([]Frame, 0, len(g.Image))
	for i, src := range g.Image {
		var restore *image.NRGBA
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalPrevious {
			restore = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)

		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i]
		}
		frames = append(frames, Frame{Pix: cloneNRGBA(canvas), Delay: delay})

		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				canvas = restore
			}
		}
	}

	// A single-frame GIF is a still image
	if len(frames) == 1 {
		frames[0].Delay = 0
	}

	return frames, nil
}

// decodeSVG rasterizes the icon into the target box, preserving the view
// box aspect ratio.
func decodeSVG(file afero.File, width, height int) ([]Frame, error) {
	icon, err := oksvg.ReadIconStream(file)
	if err != nil {
		return nil, err
	}

	w, h := fitWithin(icon.ViewBox.W, icon.ViewBox.H, width, height)
	icon.SetTarget(0, 0, float64(w), float64(h))

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	return []Frame{{Pix: toNRGBA(rgba)}}, nil
}

// scaleToFit scales src to the largest size fitting within maxW x maxH that
// preserves its aspect ratio. Animated frames use the cheaper interpolator.
func scaleToFit(src *image.NRGBA, maxW, maxH int, animated bool) *image.NRGBA {
	b := src.Bounds()
	w, h := fitWithin(float64(b.Dx()), float64(b.Dy()), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return src
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	scaler := xdraw.Scaler(xdraw.CatmullRom)
	if animated {
		scaler = xdraw.ApproxBiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func fitWithin(srcW, srcH float64, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return maxW, maxH
	}
	scale := float64(maxW) / srcW
	if s := float64(maxH) / srcH; s < scale {
		scale = s
	}
	w := int(srcW*scale + 0.5)
	h := int(srcH*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	dst := image.NewNRGBA(img.Bounds())
	draw.Draw(dst, img.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
