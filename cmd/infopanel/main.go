package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fkcurrie/infopanel-golang/internal/clock"
	"github.com/fkcurrie/infopanel-golang/internal/config"
	"github.com/fkcurrie/infopanel-golang/internal/display"
	"github.com/fkcurrie/infopanel-golang/internal/facts"
	"github.com/fkcurrie/infopanel-golang/internal/fonts"
	"github.com/fkcurrie/infopanel-golang/internal/imagetrack"
	"github.com/fkcurrie/infopanel-golang/internal/types"
	"github.com/fkcurrie/infopanel-golang/pkg/hub75"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to JSON configuration file")
	logFile := flag.String("log-file", "", "Write logs to this file as well as stderr")
	cacheDir := flag.String("cache-dir", "", "Override the fact cache directory")
	fontDir := flag.String("font-dir", "", "Override the BDF font directory")
	gpioChip := flag.String("gpiochip", "", "Override the GPIO character device")
	dimStart := flag.String("dim-start", "", "Override the dim window start as HH:MM")
	dimEnd := flag.String("dim-end", "", "Override the dim window end as HH:MM")
	noHardware := flag.Bool("no-hardware", false, "Run against an in-memory matrix instead of GPIO")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] <left-image> <right-image>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return 1
	}
	leftPath, rightPath := flag.Arg(0), flag.Arg(1)

	setupLogging(*logFile, *debug)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("failed to load configuration")
			return 1
		}
		cfg = loaded
	}
	if *cacheDir != "" {
		cfg.Facts.CacheDir = *cacheDir
	}
	if *fontDir != "" {
		cfg.Display.FontDir = *fontDir
	}
	if *gpioChip != "" {
		cfg.Display.GPIOChip = *gpioChip
	}
	if *dimStart != "" {
		minute, err := parseMinuteOfDay(*dimStart)
		if err != nil {
			log.Error().Err(err).Str("value", *dimStart).Msg("invalid -dim-start")
			return 1
		}
		cfg.Display.DimStartMinute = minute
	}
	if *dimEnd != "" {
		minute, err := parseMinuteOfDay(*dimEnd)
		if err != nil {
			log.Error().Err(err).Str("value", *dimEnd).Msg("invalid -dim-end")
			return 1
		}
		cfg.Display.DimEndMinute = minute
	}

	fs := afero.NewOsFs()
	clk := clockwork.NewRealClock()

	faces, err := fonts.Load(fs, cfg.Display)
	if err != nil {
		log.Error().Err(err).Msg("failed to load fonts")
		return 1
	}

	left, err := imagetrack.Load(fs, leftPath, config.ImageWidth, config.ImageHeight)
	if err != nil {
		log.Error().Err(err).Str("path", leftPath).Msg("failed to load left image")
		return 1
	}
	right, err := imagetrack.Load(fs, rightPath, config.ImageWidth, config.ImageHeight)
	if err != nil {
		log.Error().Err(err).Str("path", rightPath).Msg("failed to load right image")
		return 1
	}

	matrix, err := openMatrix(cfg.Display, *noHardware)
	if err != nil {
		log.Error().Err(err).Msg("failed to open matrix")
		return 1
	}
	defer func() {
		matrix.Clear()
		if err := matrix.Close(); err != nil {
			log.Warn().Err(err).Msg("matrix close failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source := clock.NewSource(clk)
	store := facts.NewStore(fs, cfg.Facts.CacheDir)
	fetcher := facts.NewFetcher(nil, store, clk, cfg.Facts)
	service := facts.NewService(fetcher, source, clk, time.Duration(cfg.Facts.PollMinutes)*time.Minute)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		service.Run(ctx)
	}()

	comp := display.New(display.Params{
		Matrix: matrix,
		Facts:  service,
		Source: source,
		Clock:  clk,
		Schedule: clock.Schedule{
			Start:  cfg.Display.DimStartMinute,
			End:    cfg.Display.DimEndMinute,
			Dim:    cfg.Display.DimBrightness,
			Bright: cfg.Display.BrightBrightness,
		},
		Left:      left,
		Right:     right,
		ClockFace: faces.Clock,
		FactFace:  faces.Fact,
	})
	comp.Run(ctx)

	wg.Wait()
	log.Info().Msg("shut down cleanly")
	return 0
}

func openMatrix(cfg config.DisplayConfig, noHardware bool) (types.Matrix, error) {
	if noHardware {
		log.Info().Msg("running without hardware")
		return hub75.NewNullMatrix(config.MatrixWidth, config.MatrixHeight), nil
	}
	hcfg := hub75.DefaultConfig()
	if cfg.GPIOChip != "" {
		hcfg.Chip = cfg.GPIOChip
	}
	return hub75.Open(hcfg)
}

// parseMinuteOfDay converts an HH:MM string to a minute of the local day
func parseMinuteOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM: %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func setupLogging(logFile string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var out io.Writer = console
	if logFile != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
		})
	}
	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
