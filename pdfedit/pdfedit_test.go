package pdfedit

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/export"
	"github.com/wudi/pdfmark/raster"
	"github.com/wudi/pdfmark/render"
)

func load(t *testing.T, pages int) *Editor {
	t.Helper()
	data, err := NewBlankDocument(pages, 612, 792)
	if err != nil {
		t.Fatalf("NewBlankDocument() error = %v", err)
	}
	e, err := Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return e
}

func near(a, b float64) bool { return math.Abs(a-b) < 1 }

func TestLoadReadsPageSizes(t *testing.T) {
	e := load(t, 3)
	if e.PageCount() != 3 {
		t.Fatalf("PageCount() = %d", e.PageCount())
	}
	w, h, err := e.PageSize(2)
	if err != nil || !near(w, 612) || !near(h, 792) {
		t.Fatalf("PageSize(2) = %v, %v, %v", w, h, err)
	}
	if _, _, err := e.PageSize(4); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := Load([]byte("not a pdf")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestPageStructureEdits(t *testing.T) {
	e := load(t, 2)
	if err := e.AddBlankPage(300, 400); err != nil {
		t.Fatalf("AddBlankPage() error = %v", err)
	}
	if e.PageCount() != 3 {
		t.Fatalf("PageCount() after add = %d", e.PageCount())
	}
	if w, h, _ := e.PageSize(3); !near(w, 300) || !near(h, 400) {
		t.Fatalf("new page size = %vx%v", w, h)
	}
	if err := e.RemovePage(1); err != nil {
		t.Fatalf("RemovePage() error = %v", err)
	}
	if e.PageCount() != 2 {
		t.Fatalf("PageCount() after remove = %d", e.PageCount())
	}
	if err := e.Rotate(1, 90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if err := e.Rotate(1, 45); err == nil {
		t.Fatalf("expected error for 45 degree rotation")
	}

	single := load(t, 1)
	if err := single.RemovePage(1); err == nil {
		t.Fatalf("removing the only page must fail")
	}
}

func TestSetProperties(t *testing.T) {
	e := load(t, 1)
	if err := e.SetProperties(map[string]string{"Reviewer": "qa"}); err != nil {
		t.Fatalf("SetProperties() error = %v", err)
	}
	props, err := e.Properties()
	if err != nil {
		t.Fatalf("Properties() error = %v", err)
	}
	if props["Reviewer"] != "qa" {
		t.Fatalf("properties = %v", props)
	}
}

func TestExportThroughLayer(t *testing.T) {
	e := load(t, 2)
	sig, err := raster.TypedSignature("J. Doe", raster.DefaultSignatureOptions())
	if err != nil {
		t.Fatalf("TypedSignature() error = %v", err)
	}
	anns := []annotation.Annotation{
		&annotation.TextAnnotation{BaseAnnotation: annotation.NewBase("t", annotation.TypeText, 1), X: 50, Y: 100, Text: "approved", Size: 12},
		&annotation.ShapeAnnotation{BaseAnnotation: annotation.NewBase("s", annotation.TypeShape, 2), Box: annotation.Box{X: 10, Y: 10, Width: 50, Height: 30}, ShapeType: annotation.ShapeCircle},
		&annotation.ImageAnnotation{BaseAnnotation: annotation.NewBase("i", annotation.TypeSignature, 2), Box: annotation.Box{X: 100, Y: 100, Width: 100, Height: 50}, Image: sig},
	}
	layer := e.NewLayer()
	rep, err := export.New().Export(context.Background(), anns, layer)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if rep.Drawn != 3 || len(rep.Failures) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if layer.Empty() {
		t.Fatalf("layer should hold drawing")
	}
	before := len(e.Bytes())
	if err := e.Apply(layer); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if e.PageCount() != 2 {
		t.Fatalf("Apply changed the page count to %d", e.PageCount())
	}
	if len(e.Bytes()) <= before {
		t.Fatalf("stamped document should grow: %d <= %d", len(e.Bytes()), before)
	}
}

func TestLayerRejectsUnknownPage(t *testing.T) {
	if _, err := load(t, 1).NewLayer().Page(2); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func gray(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func TestStampedLayerLandsAtFlippedPosition(t *testing.T) {
	e := load(t, 1)
	box := &annotation.ShapeAnnotation{
		BaseAnnotation: annotation.NewBase("box", annotation.TypeShape, 1),
		Box:            annotation.Box{X: 100, Y: 100, Width: 50, Height: 50},
		ShapeType:      annotation.ShapeRectangle,
		Color:          "#000000",
		Filled:         true,
	}
	layer := e.NewLayer()
	if _, err := export.New().Export(context.Background(), []annotation.Annotation{box}, layer); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if err := e.Apply(layer); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	doc, err := render.Open(e.Bytes())
	if err != nil {
		t.Fatalf("render.Open() error = %v", err)
	}
	defer doc.Close()
	img, err := doc.Rasterize(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() < 600 || b.Dy() < 780 {
		t.Fatalf("unexpected raster size %v", b)
	}
	if g := gray(img, 125, 125); g > 64 {
		t.Fatalf("pixel inside the rectangle is %d, want dark", g)
	}
	if g := gray(img, 125, 667); g < 200 {
		t.Fatalf("mirrored pixel is %d, want white", g)
	}
	if g := gray(img, 300, 400); g < 200 {
		t.Fatalf("pixel away from the rectangle is %d, want white", g)
	}
}
