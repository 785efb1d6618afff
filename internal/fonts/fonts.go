package fonts

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/zachomedia/go-bdf"
	"golang.org/x/image/font"

	"github.com/fkcurrie/infopanel-golang/internal/config"
)

// Fonts holds the loaded faces for the panel. Clock is required; Fact falls
// back down the configured chain and finally to the clock face.
type Fonts struct {
	Clock font.Face
	Fact  font.Face
	// FactPath is the font file the fact face came from, empty when the
	// clock face is reused
	FactPath string
}

// Load reads the clock and fact fonts from the configured font directory.
// A missing clock font is a startup-fatal error; fact font misses walk the
// fallback chain.
func Load(fs afero.Fs, cfg config.DisplayConfig) (*Fonts, error) {
	clockPath := filepath.Join(cfg.FontDir, cfg.ClockFont)
	clockFace, err := loadFace(fs, clockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load clock font: %w", err)
	}

	f := &Fonts{Clock: clockFace, Fact: clockFace}
	for _, name := range cfg.FactFonts {
		path := filepath.Join(cfg.FontDir, name)
		face, err := loadFace(fs, path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("fact font unavailable, trying next")
			continue
		}
		f.Fact = face
		f.FactPath = path
		break
	}
	if f.FactPath == "" {
		log.Warn().Msg("no fact font loaded, reusing clock font")
	}

	return f, nil
}

func loadFace(fs afero.Fs, path string) (font.Face, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	parsed, err := bdf.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	return parsed.NewFace(), nil
}
