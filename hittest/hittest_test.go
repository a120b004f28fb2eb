package hittest

import (
	"math"
	"testing"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
)

func segment(page int) *annotation.DrawAnnotation {
	return &annotation.DrawAnnotation{BaseAnnotation: annotation.NewBase("d", annotation.TypeDraw, page), X1: 0, Y1: 0, X2: 10, Y2: 0}
}

func TestDistanceToSegmentClampsToEndpoints(t *testing.T) {
	a, b := coords.Point{X: 0, Y: 0}, coords.Point{X: 10, Y: 0}
	cases := []struct {
		p    coords.Point
		want float64
	}{
		{coords.Point{X: 5, Y: 3}, 3},
		{coords.Point{X: -3, Y: 4}, 5},
		{coords.Point{X: 13, Y: 4}, 5},
		{coords.Point{X: 7, Y: 0}, 0},
	}
	for _, tc := range cases {
		if got := DistanceToSegment(tc.p, a, b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("DistanceToSegment(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := DistanceToSegment(coords.Point{X: 3, Y: 4}, a, a); got != 5 {
		t.Fatalf("degenerate segment distance = %v", got)
	}
}

func TestEraserSegmentBoundary(t *testing.T) {
	e := Eraser{Radius: 3}
	d := segment(1)
	if e.Touches(d, coords.Point{X: 5, Y: 3}) {
		t.Fatalf("distance equal to the radius must keep the segment")
	}
	if !e.Touches(d, coords.Point{X: 5, Y: 1}) {
		t.Fatalf("distance 1 with radius 3 must erase the segment")
	}
}

func TestEraserAreaContainment(t *testing.T) {
	e := Eraser{Radius: 4}
	shape := &annotation.ShapeAnnotation{
		BaseAnnotation: annotation.NewBase("s", annotation.TypeShape, 1),
		Box:            annotation.Box{X: 10, Y: 10, Width: 20, Height: 10},
		ShapeType:      annotation.ShapeCircle,
	}
	inside := []coords.Point{{X: 11, Y: 11}, {X: 20, Y: 15}, {X: 29.9, Y: 19.9}}
	for _, p := range inside {
		if !e.Touches(shape, p) {
			t.Fatalf("point %v inside the box must erase", p)
		}
	}
	outside := []coords.Point{{X: 5, Y: 15}, {X: 35, Y: 15}, {X: 20, Y: 25}, {X: 20, Y: 4}}
	for _, p := range outside {
		if e.Touches(shape, p) {
			t.Fatalf("point %v outside the box must not erase", p)
		}
	}
}

func TestEraserAnchorUsesDistance(t *testing.T) {
	e := Eraser{Radius: RadiusForBrush(10)}
	txt := &annotation.TextAnnotation{BaseAnnotation: annotation.NewBase("t", annotation.TypeText, 1), X: 50, Y: 100, Text: "x", Size: 12}
	if !e.Touches(txt, coords.Point{X: 53, Y: 103}) {
		t.Fatalf("anchor within radius must erase")
	}
	if e.Touches(txt, coords.Point{X: 55, Y: 100}) {
		t.Fatalf("anchor at exactly the radius must be kept")
	}
}

func TestHitsIgnoresOtherPages(t *testing.T) {
	s := annotation.NewStore()
	s.Add(segment(1))
	s.Add(segment(2))
	removed := s.RemoveWhere(Eraser{Radius: 3}.Hits(2, coords.Point{X: 5, Y: 0}))
	if !removed || s.Len() != 1 || s.All()[0].Base().Page != 1 {
		t.Fatalf("eraser must only touch the queried page")
	}
	if s.RemoveWhere(Eraser{Radius: 3}.Hits(2, coords.Point{X: 5, Y: 0})) {
		t.Fatalf("second pass should find nothing")
	}
}

func TestTopmostAtPrefersLaterEntries(t *testing.T) {
	below := &annotation.MarkupAnnotation{BaseAnnotation: annotation.NewBase("below", annotation.TypeHighlight, 1), Box: annotation.Box{Width: 100, Height: 100}}
	above := &annotation.MarkupAnnotation{BaseAnnotation: annotation.NewBase("above", annotation.TypeHighlight, 1), Box: annotation.Box{X: 40, Y: 40, Width: 20, Height: 20}}
	anns := []annotation.Annotation{below, above}

	if a, ok := TopmostAt(anns, 1, coords.Point{X: 50, Y: 50}, 2); !ok || a.Base().ID != "above" {
		t.Fatalf("expected topmost annotation, got %v", a)
	}
	if a, ok := TopmostAt(anns, 1, coords.Point{X: 10, Y: 10}, 2); !ok || a.Base().ID != "below" {
		t.Fatalf("expected lower annotation, got %v", a)
	}
	if _, ok := TopmostAt(anns, 2, coords.Point{X: 50, Y: 50}, 2); ok {
		t.Fatalf("other page must not match")
	}
}

func TestGeometryOf(t *testing.T) {
	if GeometryOf(segment(1)) != Segment {
		t.Fatalf("draw should be a segment")
	}
	if GeometryOf(&annotation.NoteAnnotation{}) != Anchor {
		t.Fatalf("sticky note should be anchored")
	}
	if GeometryOf(&annotation.FormAnnotation{}) != Area {
		t.Fatalf("form should be an area")
	}
}
