package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	if c.HistoryLimit != 50 || c.Zoom.Min != 0.5 || c.Zoom.Max != 3 || c.Zoom.Step != 0.25 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(lookupFrom(map[string]string{
		"PDFMARK_ADDR":            "127.0.0.1:9000",
		"PDFMARK_ZOOM_MAX":        "4",
		"PDFMARK_HISTORY_LIMIT":   "10",
		"PDFMARK_BRUSH_SIZE":      "8",
		"PDFMARK_AUTOSAVE_DIR":    "/tmp/marks",
		"PDFMARK_AUTOSAVE_WINDOW": "2h",
		"PDFMARK_OCR_LANGUAGES":   "eng,deu",
		"PDFMARK_LOG_LEVEL":       "debug",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	want := Default()
	want.Addr = "127.0.0.1:9000"
	want.Zoom.Max = 4
	want.HistoryLimit = 10
	want.BrushSize = 8
	want.AutosaveDir = "/tmp/marks"
	want.AutosaveWindow = 2 * time.Hour
	want.OCRLanguages = []string{"eng", "deu"}
	want.LogLevel = slog.LevelDebug
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []map[string]string{
		{"PDFMARK_ZOOM_MIN": "abc"},
		{"PDFMARK_HISTORY_LIMIT": "1.5"},
		{"PDFMARK_AUTOSAVE_WINDOW": "forever"},
		{"PDFMARK_HISTORY_LIMIT": "0"},
		{"PDFMARK_ZOOM_MIN": "2", "PDFMARK_ZOOM_MAX": "1"},
	}
	for _, env := range tests {
		if _, err := FromEnv(lookupFrom(env)); err == nil {
			t.Fatalf("FromEnv(%v) succeeded", env)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("PDFMARK_BRUSH_SIZE=12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PDFMARK_BRUSH_SIZE", "")
	os.Unsetenv("PDFMARK_BRUSH_SIZE")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BrushSize != 12 {
		t.Fatalf("brush size %v, want 12", c.BrushSize)
	}
}

func TestLoadMissingFileIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
