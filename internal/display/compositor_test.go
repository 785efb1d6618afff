package display

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/infopanel-golang/internal/clock"
	"github.com/fkcurrie/infopanel-golang/internal/config"
	"github.com/fkcurrie/infopanel-golang/internal/imagetrack"
	"github.com/fkcurrie/infopanel-golang/internal/types"
)

type fakeCanvas struct {
	w, h   int
	pix    []color.RGBA
	clears int
}

func newFakeCanvas(w, h int) *fakeCanvas {
	return &fakeCanvas{w: w, h: h, pix: make([]color.RGBA, w*h)}
}

func (c *fakeCanvas) Size() (int, int) { return c.w, c.h }

func (c *fakeCanvas) SetPixel(x, y int, col color.RGBA) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	c.pix[y*c.w+x] = col
}

func (c *fakeCanvas) Clear() {
	c.clears++
	for i := range c.pix {
		c.pix[i] = color.RGBA{}
	}
}

func (c *fakeCanvas) at(x, y int) color.RGBA { return c.pix[y*c.w+x] }

func (c *fakeCanvas) snapshot() *fakeCanvas {
	cp := &fakeCanvas{w: c.w, h: c.h, clears: c.clears}
	cp.pix = append([]color.RGBA(nil), c.pix...)
	return cp
}

type fakeMatrix struct {
	w, h       int
	mu         sync.Mutex
	brightness []int
	swaps      chan *fakeCanvas
}

func newFakeMatrix(w, h int) *fakeMatrix {
	return &fakeMatrix{w: w, h: h, swaps: make(chan *fakeCanvas, 64)}
}

func (m *fakeMatrix) CreateFrameCanvas() types.FrameCanvas { return newFakeCanvas(m.w, m.h) }

func (m *fakeMatrix) SwapOnVSync(c types.FrameCanvas) types.FrameCanvas {
	fc := c.(*fakeCanvas)
	m.swaps <- fc.snapshot()
	return fc
}

func (m *fakeMatrix) SetBrightness(percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brightness = append(m.brightness, percent)
	return nil
}

func (m *fakeMatrix) Width() int  { return m.w }
func (m *fakeMatrix) Height() int { return m.h }
func (m *fakeMatrix) Clear()      {}
func (m *fakeMatrix) Close() error { return nil }

func (m *fakeMatrix) applied() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.brightness...)
}

type staticFact string

func (f staticFact) Fact() string { return string(f) }

func defaultSchedule() clock.Schedule {
	return clock.Schedule{Start: 23*60 + 30, End: 8 * 60, Dim: 10, Bright: 100}
}

func stillTrack(t *testing.T, c color.NRGBA) *imagetrack.Track {
	t.Helper()
	fs := afero.NewMemMapFs()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidFrame(2, 2, c)))
	require.NoError(t, afero.WriteFile(fs, "/still.png", buf.Bytes(), 0o644))
	track, err := imagetrack.Load(fs, "/still.png", 2, 2)
	require.NoError(t, err)
	return track
}

func animatedTrack(t *testing.T, delays []int, colors ...color.RGBA) *imagetrack.Track {
	t.Helper()
	g := &gif.GIF{Config: image.Config{Width: 2, Height: 2}}
	for i, c := range colors {
		p := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Transparent, c})
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				p.SetColorIndex(x, y, 1)
			}
		}
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, delays[i])
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/anim.gif", buf.Bytes(), 0o644))
	track, err := imagetrack.Load(fs, "/anim.gif", 2, 2)
	require.NoError(t, err)
	return track
}

func startCompositor(t *testing.T, m *fakeMatrix, clk *clockwork.FakeClock, left, right *imagetrack.Track, fact string) (cancel func()) {
	t.Helper()
	comp := New(Params{
		Matrix:    m,
		Facts:     staticFact(fact),
		Source:    clock.NewSource(clk),
		Clock:     clk,
		Schedule:  defaultSchedule(),
		Left:      left,
		Right:     right,
		ClockFace: blockFace{},
		FactFace:  blockFace{},
	})

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		comp.Run(ctx)
		close(done)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("compositor did not stop")
		}
	}
}

// tick releases the compositor from its post-present sleep
func tick(t *testing.T, ctx context.Context, clk *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	clk.Advance(d)
}

func TestCompositorStaticFirstFrame(t *testing.T) {
	t.Parallel()

	m := newFakeMatrix(config.MatrixWidth, config.MatrixHeight)
	clk := clockwork.NewFakeClockAt(time.Date(2025, time.March, 7, 14, 41, 30, 0, time.Local))
	left := stillTrack(t, color.NRGBA{R: 255, A: 255})
	right := stillTrack(t, color.NRGBA{B: 255, A: 255})

	cancel := startCompositor(t, m, clk, left, right, "Today's fact: Honey never spoils.")
	defer cancel()

	first := <-m.swaps

	// Both images sit at their fixed positions
	assert.Equal(t, color.RGBA{R: 255, A: 255}, first.at(config.LeftImageX, config.ImageY))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, first.at(config.RightImageX, config.ImageY))

	// Time in white and date in gray inside the clock gap
	foundTime, foundDate := false, false
	for y := 0; y < config.ScrollTop; y++ {
		for x := config.ClockX; x < config.ClockX+config.ClockWidth; x++ {
			switch first.at(x, y) {
			case timeColor:
				foundTime = true
			case dateColor:
				foundDate = true
			}
		}
	}
	assert.True(t, foundTime)
	assert.True(t, foundDate)

	// The fact starts fully off the right edge
	for y := config.ScrollTop; y < config.MatrixHeight; y++ {
		for x := 0; x < config.MatrixWidth; x++ {
			assert.NotEqual(t, factColor, first.at(x, y))
		}
	}

	// Daytime brightness was applied exactly once
	assert.Equal(t, []int{100}, m.applied())
}

func TestCompositorScrollsFactInFromRightEdge(t *testing.T) {
	t.Parallel()

	m := newFakeMatrix(config.MatrixWidth, config.MatrixHeight)
	clk := clockwork.NewFakeClockAt(time.Date(2025, time.March, 7, 14, 41, 30, 0, time.Local))
	left := stillTrack(t, color.NRGBA{R: 255, A: 255})
	right := stillTrack(t, color.NRGBA{B: 255, A: 255})

	cancel := startCompositor(t, m, clk, left, right, "Today's fact: Honey never spoils.")
	defer cancel()

	<-m.swaps
	tick(t, context.Background(), clk, 8*time.Millisecond)
	second := <-m.swaps

	// After one tick the leftmost glyph peeks in at the right edge
	factMinX := -1
	for y := config.ScrollTop; y < config.MatrixHeight; y++ {
		for x := 0; x < config.MatrixWidth; x++ {
			if second.at(x, y) == factColor && (factMinX < 0 || x < factMinX) {
				factMinX = x
			}
		}
	}
	assert.Equal(t, config.MatrixWidth-1, factMinX)

	// Every lit pixel lies inside a layout region
	for y := 0; y < config.MatrixHeight; y++ {
		for x := 0; x < config.MatrixWidth; x++ {
			if !isLit(second.at(x, y)) {
				continue
			}
			inImages := y >= config.ImageY && y < config.ImageY+config.ImageHeight &&
				(x < config.ImageWidth || x >= config.RightImageX)
			inClock := x >= config.ClockX && x < config.ClockX+config.ClockWidth && y < config.ScrollTop
			inScroll := y >= config.ScrollTop
			assert.True(t, inImages || inClock || inScroll, "stray pixel at (%d,%d)", x, y)
		}
	}
}

func TestCompositorStaticClearsOnlyOnMinuteChange(t *testing.T) {
	t.Parallel()

	m := newFakeMatrix(config.MatrixWidth, config.MatrixHeight)
	clk := clockwork.NewFakeClockAt(time.Date(2025, time.March, 7, 14, 41, 59, 990_000_000, time.Local))
	left := stillTrack(t, color.NRGBA{R: 255, A: 255})
	right := stillTrack(t, color.NRGBA{B: 255, A: 255})

	cancel := startCompositor(t, m, clk, left, right, "Today's fact: x")
	defer cancel()

	first := <-m.swaps
	assert.Equal(t, 1, first.clears)

	// Same minute: no full clear
	tick(t, context.Background(), clk, 8*time.Millisecond)
	second := <-m.swaps
	assert.Equal(t, 1, second.clears)

	// Crossing into 14:42 forces a full clear
	tick(t, context.Background(), clk, 8*time.Millisecond)
	third := <-m.swaps
	assert.Equal(t, 2, third.clears)
}

func TestCompositorAnimatedIndexesFramesModulo(t *testing.T) {
	t.Parallel()

	m := newFakeMatrix(config.MatrixWidth, config.MatrixHeight)
	clk := clockwork.NewFakeClockAt(time.Date(2025, time.March, 7, 14, 41, 30, 0, time.Local))

	red := color.RGBA{R: 255, A: 255}
	yellow := color.RGBA{R: 255, G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	magenta := color.RGBA{R: 255, B: 255, A: 255}
	cyan := color.RGBA{G: 255, B: 255, A: 255}

	left := animatedTrack(t, []int{20, 20}, red, yellow)
	right := animatedTrack(t, []int{40, 40, 40}, blue, magenta, cyan)

	cancel := startCompositor(t, m, clk, left, right, "Today's fact: x")
	defer cancel()

	wantLeft := []color.RGBA{red, yellow, red}
	wantRight := []color.RGBA{blue, magenta, cyan}
	for i := 0; i < 3; i++ {
		frame := <-m.swaps
		assert.Equal(t, wantLeft[i], frame.at(config.LeftImageX, config.ImageY), "left frame %d", i)
		assert.Equal(t, wantRight[i], frame.at(config.RightImageX, config.ImageY), "right frame %d", i)
		tick(t, context.Background(), clk, time.Second)
	}
}

func TestBrightnessGateAppliesOnlyOnChange(t *testing.T) {
	t.Parallel()

	m := newFakeMatrix(config.MatrixWidth, config.MatrixHeight)
	gate := newBrightnessGate(defaultSchedule(), 60*time.Second)
	base := time.Date(2025, time.March, 7, 23, 29, 0, 0, time.Local)

	gate.apply(m, base, 23*60+29)
	assert.Equal(t, []int{100}, m.applied())

	// Within the gate interval nothing is rechecked
	gate.apply(m, base.Add(10*time.Second), 23*60+30)
	assert.Equal(t, []int{100}, m.applied())

	// Crossing 23:30 transitions to dim exactly once
	gate.apply(m, base.Add(61*time.Second), 23*60+30)
	gate.apply(m, base.Add(122*time.Second), 23*60+31)
	assert.Equal(t, []int{100, 10}, m.applied())
}
