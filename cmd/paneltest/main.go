// Command paneltest cycles test patterns on the panel to verify wiring and
// refresh before deploying the info panel itself.
package main

import (
	"context"
	"flag"
	"image/color"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fkcurrie/infopanel-golang/internal/config"
	"github.com/fkcurrie/infopanel-golang/internal/types"
	"github.com/fkcurrie/infopanel-golang/pkg/hub75"
)

func main() {
	gpioChip := flag.String("gpiochip", "gpiochip0", "GPIO character device")
	noHardware := flag.Bool("no-hardware", false, "Run against an in-memory matrix instead of GPIO")
	hold := flag.Duration("hold", 2*time.Second, "How long to hold each pattern")
	brightness := flag.Int("brightness", 100, "Panel brightness percentage")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var matrix types.Matrix
	if *noHardware {
		matrix = hub75.NewNullMatrix(config.MatrixWidth, config.MatrixHeight)
	} else {
		cfg := hub75.DefaultConfig()
		cfg.Chip = *gpioChip
		m, err := hub75.Open(cfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to open matrix")
			os.Exit(1)
		}
		matrix = m
	}
	defer func() {
		matrix.Clear()
		matrix.Close()
	}()

	if err := matrix.SetBrightness(*brightness); err != nil {
		log.Error().Err(err).Msg("failed to set brightness")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	patterns := []struct {
		name string
		draw func(types.FrameCanvas, int)
	}{
		{"red fill", fill(color.RGBA{R: 255, A: 255})},
		{"green fill", fill(color.RGBA{G: 255, A: 255})},
		{"blue fill", fill(color.RGBA{B: 255, A: 255})},
		{"white fill", fill(color.RGBA{R: 255, G: 255, B: 255, A: 255})},
		{"border", border},
		{"checkerboard", checkerboard},
		{"column sweep", columnSweep},
	}

	canvas := matrix.CreateFrameCanvas()
	step := 0
	for ctx.Err() == nil {
		for _, p := range patterns {
			if ctx.Err() != nil {
				break
			}
			log.Info().Str("pattern", p.name).Msg("showing pattern")
			canvas.Clear()
			p.draw(canvas, step)
			canvas = matrix.SwapOnVSync(canvas)
			select {
			case <-ctx.Done():
			case <-time.After(*hold):
			}
		}
		step++
	}
	log.Info().Msg("paneltest stopped")
}

func fill(c color.RGBA) func(types.FrameCanvas, int) {
	return func(canvas types.FrameCanvas, _ int) {
		w, h := canvas.Size()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				canvas.SetPixel(x, y, c)
			}
		}
	}
}

// border lights the outermost pixel ring to reveal panel edge misalignment
func border(canvas types.FrameCanvas, _ int) {
	w, h := canvas.Size()
	c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for x := 0; x < w; x++ {
		canvas.SetPixel(x, 0, c)
		canvas.SetPixel(x, h-1, c)
	}
	for y := 0; y < h; y++ {
		canvas.SetPixel(0, y, c)
		canvas.SetPixel(w-1, y, c)
	}
}

func checkerboard(canvas types.FrameCanvas, step int) {
	w, h := canvas.Size()
	const cell = 4
	on := color.RGBA{R: 255, G: 255, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell+step)%2 == 0 {
				canvas.SetPixel(x, y, on)
			}
		}
	}
}

// columnSweep lights one column per eight so row addressing faults show up
// as repeated or shifted stripes.
func columnSweep(canvas types.FrameCanvas, step int) {
	w, h := canvas.Size()
	c := color.RGBA{G: 255, B: 255, A: 255}
	for y := 0; y < h; y++ {
		for x := step % 8; x < w; x += 8 {
			canvas.SetPixel(x, y, c)
		}
	}
}
