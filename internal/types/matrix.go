package types

import "image/color"

// FrameCanvas is an offscreen frame buffer. The compositor draws a complete
// frame into it and hands it to the matrix for presentation.
type FrameCanvas interface {
	// Size returns the canvas dimensions in pixels
	Size() (width, height int)
	// SetPixel sets the pixel at the given coordinates to the given color
	SetPixel(x, y int, c color.RGBA)
	// Clear sets every pixel to black
	Clear()
}

// Matrix represents a double-buffered RGB LED matrix display
type Matrix interface {
	// CreateFrameCanvas allocates an offscreen canvas matching the display
	CreateFrameCanvas() FrameCanvas
	// SwapOnVSync presents the given canvas on the next vertical sync and
	// returns the canvas that was previously on screen, for reuse
	SwapOnVSync(c FrameCanvas) FrameCanvas
	// SetBrightness sets the display brightness as a percentage (0-100)
	SetBrightness(percent int) error
	// Width returns the display width in pixels
	Width() int
	// Height returns the display height in pixels
	Height() int
	// Clear blanks the display immediately
	Clear()
	// Close releases the underlying hardware
	Close() error
}
