package render_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfmark/pdfedit"
	"github.com/wudi/pdfmark/render"
)

func openBlank(t *testing.T, pages int) *render.Document {
	t.Helper()
	data, err := pdfedit.NewBlankDocument(pages, 612, 792)
	if err != nil {
		t.Fatalf("NewBlankDocument() error = %v", err)
	}
	doc, err := render.Open(data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestOpenAndMeasure(t *testing.T) {
	doc := openBlank(t, 2)
	if doc.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", doc.PageCount())
	}
	w, h, err := doc.PageSize(1)
	if err != nil {
		t.Fatalf("PageSize() error = %v", err)
	}
	if math.Abs(w-612) > 1 || math.Abs(h-792) > 1 {
		t.Fatalf("PageSize() = %vx%v, want 612x792", w, h)
	}
	if _, _, err := doc.PageSize(3); err == nil {
		t.Fatalf("PageSize(3) succeeded")
	}
}

func TestRasterizeScalesWithZoom(t *testing.T) {
	doc := openBlank(t, 1)
	img, err := doc.Rasterize(context.Background(), 1, 0.5)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if b := img.Bounds(); math.Abs(float64(b.Dx())-306) > 2 || math.Abs(float64(b.Dy())-396) > 2 {
		t.Fatalf("raster size = %dx%d, want about 306x396", b.Dx(), b.Dy())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := doc.Rasterize(ctx, 1, 1); err == nil {
		t.Fatalf("Rasterize with canceled context succeeded")
	}
}

func TestOpenRejectsInvalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("definitely not a pdf")} {
		_, err := render.Open(data)
		if err == nil {
			t.Fatalf("Open(%q) succeeded", data)
		}
		if !strings.Contains(err.Error(), "pdf") {
			t.Fatalf("Open(%q) error = %v", data, err)
		}
	}
}
