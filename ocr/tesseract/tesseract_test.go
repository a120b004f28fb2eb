package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/pdfmark/ocr"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestEngineRecognizesPageRaster(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, 50)}
	d.DrawString("Hello PDF")

	var statuses []ocr.JobState
	res, err := ocr.RecognizeImage(context.Background(), New("eng"), 4, img,
		func(s ocr.JobStatus) { statuses = append(statuses, s.State) }, ocr.WithDPI(300))
	if err != nil {
		t.Fatalf("RecognizeImage() error = %v", err)
	}
	got := strings.ToLower(res.PlainText)
	if !strings.Contains(got, "hello") || !strings.Contains(got, "pdf") {
		t.Fatalf("unexpected OCR output: %q", res.PlainText)
	}
	if res.InputID != "page-4" || res.Page != 4 || res.Language != "eng" {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
	if len(res.Blocks) == 0 || len(res.Blocks[0].Lines) == 0 {
		t.Fatalf("expected structured blocks")
	}
	if statuses[len(statuses)-1] != ocr.JobStateSucceeded {
		t.Fatalf("final state = %v", statuses[len(statuses)-1])
	}
}

func TestCropRejectsRegionOutsideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	in, err := ocr.InputFromImage(1, img)
	if err != nil {
		t.Fatalf("InputFromImage() error = %v", err)
	}
	if _, err := crop(in.Image, &ocr.Region{X: 50, Y: 50, Width: 5, Height: 5}); err == nil {
		t.Fatalf("expected error for region outside the image")
	}
	data, err := crop(in.Image, nil)
	if err != nil || len(data) != len(in.Image) {
		t.Fatalf("nil region should pass data through")
	}
}

func TestRegistersAsDefault(t *testing.T) {
	if ocr.DefaultEngine().Name() != "tesseract" {
		t.Fatalf("default engine = %s", ocr.DefaultEngine().Name())
	}
}
