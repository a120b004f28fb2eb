// Package hittest answers which annotations a pointer interaction touches.
package hittest

import (
	"math"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
)

// Geometry classifies how an annotation is hit.
type Geometry int

const (
	// Anchor annotations are hit near a single point.
	Anchor Geometry = iota
	// Segment annotations are hit near a line segment.
	Segment
	// Area annotations are hit inside their bounding box.
	Area
)

// GeometryOf returns the hit geometry for a.
func GeometryOf(a annotation.Annotation) Geometry {
	switch a.(type) {
	case *annotation.TextAnnotation, *annotation.NoteAnnotation:
		return Anchor
	case *annotation.DrawAnnotation:
		return Segment
	default:
		return Area
	}
}

// DistanceToSegment returns the distance from p to the segment ab. The
// projection is clamped to the segment, not the infinite line.
func DistanceToSegment(p, a, b coords.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return coords.Distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return coords.Distance(p, coords.Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// Contains reports whether p lies in r, edges included.
func Contains(r coords.Rect, p coords.Point) bool { return r.Contains(p) }

// Eraser removes annotations near a query point.
type Eraser struct {
	Radius float64
}

// RadiusForBrush converts a brush diameter to an eraser radius.
func RadiusForBrush(size float64) float64 { return size / 2 }

// Touches reports whether the eraser at p removes a. Anchors and segments
// are erased only when strictly closer than the radius.
func (e Eraser) Touches(a annotation.Annotation, p coords.Point) bool {
	switch v := a.(type) {
	case *annotation.TextAnnotation:
		return coords.Distance(p, coords.Point{X: v.X, Y: v.Y}) < e.Radius
	case *annotation.NoteAnnotation:
		return coords.Distance(p, coords.Point{X: v.X, Y: v.Y}) < e.Radius
	case *annotation.DrawAnnotation:
		return DistanceToSegment(p, coords.Point{X: v.X1, Y: v.Y1}, coords.Point{X: v.X2, Y: v.Y2}) < e.Radius
	default:
		return Contains(a.Bounds(), p)
	}
}

// Hits returns a predicate for annotation.Store.RemoveWhere. Annotations on
// other pages never match.
func (e Eraser) Hits(page int, p coords.Point) func(annotation.Annotation) bool {
	return func(a annotation.Annotation) bool {
		return a.Base().Page == page && e.Touches(a, p)
	}
}

// TopmostAt returns the last annotation on page whose bounds contain p.
// Segments also match within tolerance of the line.
func TopmostAt(anns []annotation.Annotation, page int, p coords.Point, tolerance float64) (annotation.Annotation, bool) {
	for i := len(anns) - 1; i >= 0; i-- {
		a := anns[i]
		if a.Base().Page != page {
			continue
		}
		if d, ok := a.(*annotation.DrawAnnotation); ok {
			if DistanceToSegment(p, coords.Point{X: d.X1, Y: d.Y1}, coords.Point{X: d.X2, Y: d.Y2}) <= tolerance {
				return a, true
			}
			continue
		}
		if Contains(a.Bounds(), p) {
			return a, true
		}
	}
	return nil, false
}
