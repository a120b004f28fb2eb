package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/overlay"
)

func TestCloneCopiesPixels(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 1, color.RGBA{R: 200, A: 255})
	dup := Clone(src)
	src.Set(1, 1, color.RGBA{G: 200, A: 255})

	if got := dup.RGBAAt(1, 1); got.R != 200 || got.G != 0 {
		t.Fatalf("clone shares pixels with source: %+v", got)
	}
	if Clone(nil) != nil {
		t.Fatalf("Clone(nil) should be nil")
	}
}

func TestTypedSignatureProducesInkedPNG(t *testing.T) {
	data, err := TypedSignature("Ada Lovelace", DefaultSignatureOptions())
	if err != nil {
		t.Fatalf("TypedSignature() error = %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 100 {
		t.Fatalf("signature size = %v", b)
	}
	inked := 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Fatalf("signature has no visible pixels")
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("signature background should be transparent")
	}
}

func TestTypedSignatureRejectsBlank(t *testing.T) {
	if _, err := TypedSignature("   ", SignatureOptions{}); err == nil {
		t.Fatalf("expected error for blank signature")
	}
}

func TestPreviewDrawsTranslucentHighlight(t *testing.T) {
	v := overlay.View{
		Page: 1, Zoom: 1, Width: 50, Height: 40,
		Elements: []overlay.Element{{
			ID: "h", Type: annotation.TypeHighlight, X: 0, Y: 0, Width: 50, Height: 40,
			Color: "#ffff00", Opacity: annotation.HighlightOpacity,
		}},
	}
	img, err := Preview(v)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 40 {
		t.Fatalf("preview size = %v", b)
	}
	px := img.RGBAAt(25, 20)
	if px.R < 240 || px.B > 200 {
		t.Fatalf("expected yellow tint over white, got %+v", px)
	}
}

func TestPreviewRejectsEmptyView(t *testing.T) {
	if _, err := Preview(overlay.View{}); err == nil {
		t.Fatalf("expected error for empty view")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	data, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	img, err := Decode(data)
	if err != nil || img.Bounds() != src.Bounds() {
		t.Fatalf("Decode() = %v, %v", img, err)
	}
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
