package hub75

import (
	"fmt"
	"sync"

	"github.com/fkcurrie/infopanel-golang/internal/types"
)

// NullMatrix is a matrix without hardware behind it. It accepts the full
// canvas protocol so the panel binary can run on a development machine.
type NullMatrix struct {
	width  int
	height int

	mu         sync.Mutex
	front      *Canvas
	brightness int
}

// NewNullMatrix creates a hardware-free matrix of the given size
func NewNullMatrix(width, height int) *NullMatrix {
	return &NullMatrix{
		width:      width,
		height:     height,
		front:      NewCanvas(width, height),
		brightness: 100,
	}
}

// CreateFrameCanvas returns a new offscreen canvas
func (m *NullMatrix) CreateFrameCanvas() types.FrameCanvas {
	return NewCanvas(m.width, m.height)
}

// SwapOnVSync adopts the canvas as the front buffer and returns the old one
func (m *NullMatrix) SwapOnVSync(c types.FrameCanvas) types.FrameCanvas {
	canvas, ok := c.(*Canvas)
	if !ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.front
	m.front = canvas
	return prev
}

// SetBrightness records the requested duty cycle
func (m *NullMatrix) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness %d out of range", percent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brightness = percent
	return nil
}

// Brightness returns the last applied duty cycle
func (m *NullMatrix) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// Front returns the canvas most recently presented
func (m *NullMatrix) Front() *Canvas {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.front
}

// Width returns the panel width in pixels
func (m *NullMatrix) Width() int { return m.width }

// Height returns the panel height in pixels
func (m *NullMatrix) Height() int { return m.height }

// Clear blanks the front buffer
func (m *NullMatrix) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.front.Clear()
}

// Close is a no-op
func (m *NullMatrix) Close() error { return nil }
