package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Layout constants for the supported 64x32 panel. The two image slots sit at
// the edges, the clock owns the middle gap and the fact scrolls across the
// bottom rows.
const (
	MatrixWidth  = 64
	MatrixHeight = 32

	LeftImageX  = 0
	RightImageX = 46
	ImageWidth  = 18
	ImageY      = 1
	ImageHeight = 21

	ClockX     = 18
	ClockWidth = 28
	// Text baselines inside the clock gap
	TimeBaselineY = 10
	DateBaselineY = 18
	// Nominal glyph advance used to center clock text
	ClockGlyphAdvance = 4

	// The scroll region spans rows ScrollTop..MatrixHeight-1
	ScrollTop     = 20
	FactBaselineY = 30
)

// FactsConfig configures the daily fact subsystem
type FactsConfig struct {
	URL              string `json:"url"`
	UserAgent        string `json:"user_agent"`
	CacheDir         string `json:"cache_dir"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	Retries          int    `json:"retries"`
	RetryWaitSeconds int    `json:"retry_wait_seconds"`
	PollMinutes      int    `json:"poll_minutes"`
}

// DisplayConfig configures the panel, fonts and the brightness schedule.
// DimStartMinute/DimEndMinute are minutes of the local day; the dim window
// may wrap past midnight.
type DisplayConfig struct {
	GPIOChip         string   `json:"gpio_chip"`
	FontDir          string   `json:"font_dir"`
	ClockFont        string   `json:"clock_font"`
	FactFonts        []string `json:"fact_fonts"`
	DimStartMinute   int      `json:"dim_start_minute"`
	DimEndMinute     int      `json:"dim_end_minute"`
	DimBrightness    int      `json:"dim_brightness"`
	BrightBrightness int      `json:"bright_brightness"`
}

// Config represents the application configuration
type Config struct {
	Display DisplayConfig `json:"display"`
	Facts   FactsConfig   `json:"facts"`
}

// Default returns the configuration for the supported deployment
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			GPIOChip:         "gpiochip0",
			FontDir:          "/opt/infopanel/fonts",
			ClockFont:        "5x7.bdf",
			FactFonts:        []string{"6x13.bdf", "6x9.bdf", "5x8.bdf"},
			DimStartMinute:   23*60 + 30,
			DimEndMinute:     8 * 60,
			DimBrightness:    10,
			BrightBrightness: 100,
		},
		Facts: FactsConfig{
			URL:              "https://uselessfacts.jsph.pl/api/v2/facts/today",
			UserAgent:        "LED-Matrix-Facts/1.0",
			CacheDir:         filepath.Join(os.TempDir(), "infopanel-cache"),
			TimeoutSeconds:   30,
			Retries:          6,
			RetryWaitSeconds: 10,
			PollMinutes:      30,
		},
	}
}

// Load reads a JSON configuration file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}
