package display

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/fkcurrie/infopanel-golang/internal/clock"
	"github.com/fkcurrie/infopanel-golang/internal/config"
	"github.com/fkcurrie/infopanel-golang/internal/types"
)

var (
	timeColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	dateColor = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	factColor = color.RGBA{R: 100, G: 255, B: 100, A: 255}
)

// copyFrame copies a track frame onto the canvas at the given offset. Pixels
// below full opacity are skipped so the back-buffer shows through; rows past
// the image band are clipped.
func copyFrame(c types.FrameCanvas, frame *image.NRGBA, offsetX, offsetY int) {
	b := frame.Bounds()
	for y := 0; y < b.Dy() && y+offsetY < config.ImageY+config.ImageHeight; y++ {
		for x := 0; x < b.Dx(); x++ {
			px := frame.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if px.A < 0xFF {
				continue
			}
			c.SetPixel(x+offsetX, y+offsetY, color.RGBA{R: px.R, G: px.G, B: px.B, A: 255})
		}
	}
}

// drawText rasterizes text onto the canvas with the baseline at (x, y).
// Off-canvas pixels are clipped by the canvas.
func drawText(c types.FrameCanvas, face font.Face, x, y int, col color.RGBA, text string) {
	dot := fixed.P(x, y)
	prev := rune(-1)
	for _, r := range text {
		if prev >= 0 {
			dot.X += face.Kern(prev, r)
		}
		dr, mask, maskp, advance, ok := face.Glyph(dot, r)
		if !ok {
			prev = r
			continue
		}
		for yy := dr.Min.Y; yy < dr.Max.Y; yy++ {
			for xx := dr.Min.X; xx < dr.Max.X; xx++ {
				_, _, _, a := mask.At(maskp.X+xx-dr.Min.X, maskp.Y+yy-dr.Min.Y).RGBA()
				if a == 0 {
					continue
				}
				c.SetPixel(xx, yy, col)
			}
		}
		dot.X += advance
		prev = r
	}
}

// stringWidth returns the pixel width of text in the given face
func stringWidth(face font.Face, text string) int {
	return font.MeasureString(face, text).Ceil()
}

// drawClock draws the time and date centered in the middle gap. Centering
// assumes the nominal glyph advance of the clock font.
func drawClock(c types.FrameCanvas, face font.Face, snap clock.Snapshot) {
	timeX := config.ClockX + (config.ClockWidth-len(snap.HHMM)*config.ClockGlyphAdvance)/2 - 2
	dateX := config.ClockX + (config.ClockWidth-len(snap.DateShort)*config.ClockGlyphAdvance)/2 - 2

	drawText(c, face, timeX, config.TimeBaselineY, timeColor, snap.HHMM)
	drawText(c, face, dateX, config.DateBaselineY, dateColor, snap.DateShort)
}

// drawFact draws the scrolling fact on its baseline inside the scroll region
func drawFact(c types.FrameCanvas, face font.Face, fact string, scrollOffset int) {
	drawText(c, face, scrollOffset, config.FactBaselineY, factColor, fact)
}

// clearScrollRegion blanks only the bottom rows owned by the fact scroller
func clearScrollRegion(c types.FrameCanvas) {
	w, h := c.Size()
	for y := config.ScrollTop; y < h; y++ {
		for x := 0; x < w; x++ {
			c.SetPixel(x, y, color.RGBA{A: 255})
		}
	}
}

// nextScroll advances the scroll offset one pixel leftward, wrapping back to
// the right edge once the text has fully exited on the left. The result
// always stays within [-factWidth, matrixWidth].
func nextScroll(offset, factWidth, matrixWidth int) int {
	offset--
	if offset < -factWidth {
		return matrixWidth
	}
	return offset
}
