package hub75

import "image/color"

// Canvas is an offscreen RGB frame buffer sized for one panel. Out-of-range
// writes are clipped so callers can draw without bounds checks.
type Canvas struct {
	width  int
	height int
	pix    []color.RGBA
}

// NewCanvas allocates a cleared canvas
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		width:  width,
		height: height,
		pix:    make([]color.RGBA, width*height),
	}
}

// Size returns the canvas dimensions
func (c *Canvas) Size() (int, int) { return c.width, c.height }

// SetPixel writes one pixel, ignoring coordinates outside the canvas
func (c *Canvas) SetPixel(x, y int, col color.RGBA) {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return
	}
	c.pix[y*c.width+x] = col
}

// At reads one pixel. Out-of-range coordinates read as black.
func (c *Canvas) At(x, y int) color.RGBA {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return color.RGBA{}
	}
	return c.pix[y*c.width+x]
}

// Clear blanks the canvas
func (c *Canvas) Clear() {
	for i := range c.pix {
		c.pix[i] = color.RGBA{}
	}
}

// channelBits reduces a pixel to the panel's one bit per color channel
func channelBits(c color.RGBA) [3]int {
	var bits [3]int
	if c.R >= 0x80 {
		bits[0] = 1
	}
	if c.G >= 0x80 {
		bits[1] = 1
	}
	if c.B >= 0x80 {
		bits[2] = 1
	}
	return bits
}
