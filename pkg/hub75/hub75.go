// Package hub75 drives a HUB75 RGB LED matrix through the Linux GPIO
// character device. The driver bit-bangs the panel's shift registers from a
// background refresh goroutine and exposes the double-buffered canvas API
// consumed by the display compositor.
package hub75

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"

	"github.com/fkcurrie/infopanel-golang/internal/types"
)

// Config describes the panel geometry and the GPIO pin assignment. The
// defaults match the Adafruit RGB Matrix Bonnet pinout.
type Config struct {
	Chip   string
	Width  int
	Height int

	R1Pin  int // Red data, upper half
	G1Pin  int // Green data, upper half
	B1Pin  int // Blue data, upper half
	R2Pin  int // Red data, lower half
	G2Pin  int // Green data, lower half
	B2Pin  int // Blue data, lower half
	CLKPin int // Column clock
	OEPin  int // Output enable, active low
	LATPin int // Row latch
	APin   int // Address bit A
	BPin   int // Address bit B
	CPin   int // Address bit C
	DPin   int // Address bit D
	EPin   int // Address bit E, unused on 32-high panels
}

// DefaultConfig returns the Adafruit RGB Matrix Bonnet wiring for a 64x32
// panel on the Pi's primary GPIO chip.
func DefaultConfig() Config {
	return Config{
		Chip:   "gpiochip0",
		Width:  64,
		Height: 32,
		R1Pin:  5,
		G1Pin:  13,
		B1Pin:  6,
		R2Pin:  12,
		G2Pin:  16,
		B2Pin:  23,
		CLKPin: 17,
		OEPin:  4,
		LATPin: 21,
		APin:   22,
		BPin:   26,
		CPin:   27,
		DPin:   20,
		EPin:   24,
	}
}

func (c Config) pins() []int {
	return []int{
		c.R1Pin, c.G1Pin, c.B1Pin,
		c.R2Pin, c.G2Pin, c.B2Pin,
		c.CLKPin, c.OEPin, c.LATPin,
		c.APin, c.BPin, c.CPin, c.DPin, c.EPin,
	}
}

// Validate checks the geometry and that no GPIO pin is assigned twice
func (c Config) Validate() error {
	if c.Chip == "" {
		return fmt.Errorf("gpio chip name is required")
	}
	if c.Width <= 0 || c.Height <= 0 || c.Height%2 != 0 {
		return fmt.Errorf("invalid panel geometry %dx%d", c.Width, c.Height)
	}
	seen := make(map[int]bool)
	for _, pin := range c.pins() {
		if pin < 0 {
			return fmt.Errorf("negative gpio pin %d", pin)
		}
		if seen[pin] {
			return fmt.Errorf("gpio pin %d assigned twice", pin)
		}
		seen[pin] = true
	}
	return nil
}

// swapRequest carries a back buffer into the refresh loop. The loop replies
// on done once the buffer became the front buffer, which serves as vsync.
type swapRequest struct {
	canvas *Canvas
	done   chan *Canvas
}

// Matrix is a HUB75 panel driven over gpiocdev. It satisfies types.Matrix.
type Matrix struct {
	cfg   Config
	lines map[int]*gpiocdev.Line

	swaps      chan swapRequest
	brightness chan int
	stop       chan struct{}
	stopped    chan struct{}
}

// Open requests all configured GPIO lines and starts the refresh goroutine
func Open(cfg Config) (*Matrix, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hub75 config: %w", err)
	}

	m := &Matrix{
		cfg:        cfg,
		lines:      make(map[int]*gpiocdev.Line),
		swaps:      make(chan swapRequest),
		brightness: make(chan int),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	for _, pin := range cfg.pins() {
		line, err := gpiocdev.RequestLine(cfg.Chip, pin, gpiocdev.AsOutput(0))
		if err != nil {
			m.releaseLines()
			return nil, fmt.Errorf("requesting gpio pin %d on %s: %w", pin, cfg.Chip, err)
		}
		m.lines[pin] = line
	}
	log.Info().Str("chip", cfg.Chip).Int("width", cfg.Width).Int("height", cfg.Height).
		Msg("hub75 matrix opened")

	go m.refresh()
	return m, nil
}

// CreateFrameCanvas returns a new offscreen canvas matching the panel size
func (m *Matrix) CreateFrameCanvas() types.FrameCanvas {
	return NewCanvas(m.cfg.Width, m.cfg.Height)
}

// SwapOnVSync hands the canvas to the refresh loop and blocks until it is on
// glass, returning the previous front buffer for reuse.
func (m *Matrix) SwapOnVSync(c types.FrameCanvas) types.FrameCanvas {
	canvas, ok := c.(*Canvas)
	if !ok {
		return c
	}
	req := swapRequest{canvas: canvas, done: make(chan *Canvas, 1)}
	select {
	case m.swaps <- req:
		return <-req.done
	case <-m.stop:
		return c
	case <-m.stopped:
		return c
	}
}

// SetBrightness sets the panel duty cycle as a percentage
func (m *Matrix) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness %d out of range", percent)
	}
	select {
	case m.brightness <- percent:
		return nil
	case <-m.stop:
		return fmt.Errorf("matrix is closed")
	case <-m.stopped:
		return fmt.Errorf("matrix refresh has stopped")
	}
}

// Width returns the panel width in pixels
func (m *Matrix) Width() int { return m.cfg.Width }

// Height returns the panel height in pixels
func (m *Matrix) Height() int { return m.cfg.Height }

// Clear blanks the panel by swapping in an empty canvas
func (m *Matrix) Clear() {
	m.SwapOnVSync(NewCanvas(m.cfg.Width, m.cfg.Height))
}

// Close stops the refresh goroutine, blanks the output and releases all
// GPIO lines.
func (m *Matrix) Close() error {
	close(m.stop)
	<-m.stopped

	// Hold output disabled before letting the lines go
	if err := m.setPin(m.cfg.OEPin, 1); err != nil {
		log.Warn().Err(err).Msg("failed to blank panel on close")
	}
	m.releaseLines()
	log.Info().Msg("hub75 matrix closed")
	return nil
}

func (m *Matrix) releaseLines() {
	for pin, line := range m.lines {
		if err := line.Close(); err != nil {
			log.Warn().Err(err).Int("pin", pin).Msg("failed to release gpio line")
		}
	}
	m.lines = nil
}

func (m *Matrix) setPin(pin, value int) error {
	line, ok := m.lines[pin]
	if !ok {
		return nil
	}
	return line.SetValue(value)
}

// refresh scans the front buffer onto the panel until Close. Software
// dimming blanks whole scan passes: with brightness N the panel lights N
// out of every 100 passes.
func (m *Matrix) refresh() {
	defer close(m.stopped)

	front := NewCanvas(m.cfg.Width, m.cfg.Height)
	brightness := 100
	cycle := 0

	for {
		select {
		case <-m.stop:
			return
		case req := <-m.swaps:
			req.done <- front
			front = req.canvas
		case brightness = <-m.brightness:
		default:
		}

		lit := cycle%100 < brightness
		cycle++
		for row := 0; row < m.cfg.Height/2; row++ {
			if err := m.scanRow(front, row, lit); err != nil {
				log.Error().Err(err).Int("row", row).Msg("row scan failed")
				return
			}
			time.Sleep(50 * time.Microsecond)
		}
	}
}

// scanRow shifts one address row out to the panel. Each column carries the
// pixel for the upper half and the one half a panel below it.
func (m *Matrix) scanRow(front *Canvas, row int, lit bool) error {
	if err := m.setPin(m.cfg.OEPin, 1); err != nil {
		return err
	}

	addrPins := []int{m.cfg.APin, m.cfg.BPin, m.cfg.CPin, m.cfg.DPin, m.cfg.EPin}
	for bit, pin := range addrPins {
		if err := m.setPin(pin, (row>>bit)&1); err != nil {
			return err
		}
	}

	half := m.cfg.Height / 2
	for col := 0; col < m.cfg.Width; col++ {
		upper := channelBits(front.At(col, row))
		lower := channelBits(front.At(col, row+half))

		dataPins := [6]int{m.cfg.R1Pin, m.cfg.G1Pin, m.cfg.B1Pin, m.cfg.R2Pin, m.cfg.G2Pin, m.cfg.B2Pin}
		values := [6]int{upper[0], upper[1], upper[2], lower[0], lower[1], lower[2]}
		for i, pin := range dataPins {
			if err := m.setPin(pin, values[i]); err != nil {
				return err
			}
		}

		if err := m.setPin(m.cfg.CLKPin, 1); err != nil {
			return err
		}
		if err := m.setPin(m.cfg.CLKPin, 0); err != nil {
			return err
		}
	}

	if err := m.setPin(m.cfg.LATPin, 1); err != nil {
		return err
	}
	if err := m.setPin(m.cfg.LATPin, 0); err != nil {
		return err
	}

	if lit {
		return m.setPin(m.cfg.OEPin, 0)
	}
	return nil
}
