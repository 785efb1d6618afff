package display

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"

	"github.com/fkcurrie/infopanel-golang/internal/clock"
	"github.com/fkcurrie/infopanel-golang/internal/config"
	"github.com/fkcurrie/infopanel-golang/internal/imagetrack"
	"github.com/fkcurrie/infopanel-golang/internal/types"
)

const (
	// staticTickSleep paces the scroll when both tracks are stills
	staticTickSleep = 8 * time.Millisecond
	// delayQuantum converts animation delays (1/100s) into sleeps
	delayQuantum = 10 * time.Millisecond
	// Brightness recheck intervals per mode
	staticGateInterval   = 1800 * time.Second
	animatedGateInterval = 60 * time.Second
)

// FactSource supplies the current fact of the day. Reads must be safe for
// concurrent use with the fact service's writes.
type FactSource interface {
	Fact() string
}

// brightnessGate applies the dim schedule to the hardware, rechecking at
// most once per interval and writing only when the computed level changes.
type brightnessGate struct {
	sched     clock.Schedule
	interval  time.Duration
	lastCheck time.Time
	lastLevel int
	checked   bool
}

func newBrightnessGate(sched clock.Schedule, interval time.Duration) *brightnessGate {
	return &brightnessGate{sched: sched, interval: interval, lastLevel: -1}
}

func (g *brightnessGate) apply(m types.Matrix, now time.Time, minuteOfDay int) {
	if g.checked && now.Sub(g.lastCheck) < g.interval {
		return
	}
	g.checked = true
	g.lastCheck = now

	level := g.sched.Level(minuteOfDay)
	if level == g.lastLevel {
		return
	}
	if err := m.SetBrightness(level); err != nil {
		log.Error().Err(err).Int("level", level).Msg("failed to set brightness")
		return
	}
	log.Info().Int("level", level).Msg("brightness changed")
	g.lastLevel = level
}

// Params wires a compositor
type Params struct {
	Matrix    types.Matrix
	Facts     FactSource
	Source    *clock.Source
	Clock     clockwork.Clock
	Schedule  clock.Schedule
	Left      *imagetrack.Track
	Right     *imagetrack.Track
	ClockFace font.Face
	FactFace  font.Face
}

// Compositor owns the offscreen frame buffer and drives one vsynced swap
// per tick, composing the two image tracks, the clock and the scrolling
// fact. It is the only component that touches the hardware canvas.
type Compositor struct {
	matrix    types.Matrix
	facts     FactSource
	source    *clock.Source
	clock     clockwork.Clock
	sched     clock.Schedule
	left      *imagetrack.Track
	right     *imagetrack.Track
	clockFace font.Face
	factFace  font.Face
}

// New creates a compositor
func New(p Params) *Compositor {
	return &Compositor{
		matrix:    p.Matrix,
		facts:     p.Facts,
		source:    p.Source,
		clock:     p.Clock,
		sched:     p.Schedule,
		left:      p.Left,
		right:     p.Right,
		clockFace: p.ClockFace,
		factFace:  p.FactFace,
	}
}

// Run drives the render loop until the context is cancelled. A still image
// is just a one-frame track; the mode only selects the clear strategy, the
// brightness gate interval and the sleep computation.
func (c *Compositor) Run(ctx context.Context) {
	offscreen := c.matrix.CreateFrameCanvas()
	width := c.matrix.Width()
	animated := c.left.Animated() || c.right.Animated()

	maxFrames := c.left.Len()
	if r := c.right.Len(); r > maxFrames {
		maxFrames = r
	}
	gateInterval := staticGateInterval
	if animated {
		gateInterval = animatedGateInterval
	}
	gate := newBrightnessGate(c.sched, gateInterval)

	scroll := width
	factWidth := 0
	lastFact := ""
	lastTime := ""
	lastScroll := -1
	frame := 0

	log.Info().Bool("animated", animated).Int("frames", maxFrames).Msg("compositor starting")

	for ctx.Err() == nil {
		snap := c.source.Now()
		gate.apply(c.matrix, c.clock.Now(), snap.MinuteOfDay)

		fact := c.facts.Fact()
		// The width is measured in the same step that detects the change,
		// so the scroll reset can never pair with a stale width.
		if fact != lastFact {
			lastFact = fact
			factWidth = stringWidth(c.factFace, fact)
			scroll = width
		}

		var sleep time.Duration
		if animated {
			if snap.HHMM != lastTime || scroll != lastScroll {
				offscreen.Clear()
				copyFrame(offscreen, c.left.Frame(frame), config.LeftImageX, config.ImageY)
				copyFrame(offscreen, c.right.Frame(frame), config.RightImageX, config.ImageY)
				drawClock(offscreen, c.clockFace, snap)
				drawFact(offscreen, c.factFace, fact, scroll)
				offscreen = c.matrix.SwapOnVSync(offscreen)
				lastTime = snap.HHMM
				lastScroll = scroll
			}
			sleep = time.Duration(imagetrack.CompositeDelay(c.left, c.right, frame)) * delayQuantum
			frame = (frame + 1) % maxFrames
		} else {
			// Full clear only when the minute rolls over; the images and
			// clock are cheap to redraw in place every tick
			if snap.HHMM != lastTime {
				offscreen.Clear()
				lastTime = snap.HHMM
			}
			copyFrame(offscreen, c.left.Frame(0), config.LeftImageX, config.ImageY)
			copyFrame(offscreen, c.right.Frame(0), config.RightImageX, config.ImageY)
			drawClock(offscreen, c.clockFace, snap)
			clearScrollRegion(offscreen)
			drawFact(offscreen, c.factFace, fact, scroll)
			offscreen = c.matrix.SwapOnVSync(offscreen)
			sleep = staticTickSleep
		}

		scroll = nextScroll(scroll, factWidth, width)

		select {
		case <-ctx.Done():
		case <-c.clock.After(sleep):
		}
	}

	log.Info().Msg("compositor stopped")
}
