// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wudi/pdfmark/autosave"
	"github.com/wudi/pdfmark/coords"
	"github.com/wudi/pdfmark/history"
	"github.com/wudi/pdfmark/observability"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PDFMARK_"

// Config holds every tunable of the server and CLI.
type Config struct {
	// Listen address of the HTTP server. Default: ":8080".
	Addr string

	// Zoom bounds and increment. Default: 0.5 / 3.0 / 0.25.
	Zoom coords.ZoomRange

	// Undo depth. Default: 50.
	HistoryLimit int

	// Initial brush size. Default: 5.
	BrushSize float64

	// Autosave backends. A DSN takes precedence over a directory; both empty
	// disables autosave.
	AutosaveDir string
	AutosaveDSN string

	// How long an autosave stays recoverable. Default: 24h.
	AutosaveWindow time.Duration

	// Tesseract languages. Default: eng.
	OCRLanguages []string

	LogLevel slog.Level
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:           ":8080",
		Zoom:           coords.DefaultZoomRange(),
		HistoryLimit:   history.DefaultLimit,
		BrushSize:      5,
		AutosaveWindow: autosave.DefaultWindow,
		OCRLanguages:   []string{"eng"},
		LogLevel:       slog.LevelInfo,
	}
}

// Load reads the given .env files (".env" when none are named; missing files
// are ignored) and then overlays PDFMARK_* variables on Default.
// Variables already present in the process environment win over .env entries.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(Prefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	float := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", Prefix, name, err))
				return
			}
			*dst = f
		}
	}

	if v, ok := get("ADDR"); ok {
		c.Addr = v
	}
	float("ZOOM_MIN", &c.Zoom.Min)
	float("ZOOM_MAX", &c.Zoom.Max)
	float("ZOOM_STEP", &c.Zoom.Step)
	float("BRUSH_SIZE", &c.BrushSize)
	if v, ok := get("HISTORY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHISTORY_LIMIT: %w", Prefix, err))
		} else {
			c.HistoryLimit = n
		}
	}
	if v, ok := get("AUTOSAVE_DIR"); ok {
		c.AutosaveDir = v
	}
	if v, ok := get("AUTOSAVE_DSN"); ok {
		c.AutosaveDSN = v
	}
	if v, ok := get("AUTOSAVE_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sAUTOSAVE_WINDOW: %w", Prefix, err))
		} else {
			c.AutosaveWindow = d
		}
	}
	if v, ok := get("OCR_LANGUAGES"); ok {
		c.OCRLanguages = splitList(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = observability.ParseLevel(v)
	}

	if len(errs) == 0 {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return c, nil
}

// Validate checks the relationships between settings.
func (c Config) Validate() error {
	switch {
	case c.Zoom.Min <= 0:
		return errors.New("zoom minimum must be positive")
	case c.Zoom.Max < c.Zoom.Min:
		return errors.New("zoom maximum is below the minimum")
	case c.Zoom.Step <= 0:
		return errors.New("zoom step must be positive")
	case c.HistoryLimit <= 0:
		return errors.New("history limit must be positive")
	case c.BrushSize <= 0:
		return errors.New("brush size must be positive")
	case c.AutosaveWindow <= 0:
		return errors.New("autosave window must be positive")
	}
	return nil
}

func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '+' || r == ' ' })
}
