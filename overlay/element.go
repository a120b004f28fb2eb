// Package overlay builds the view model of the visible page: the page raster
// plus one positioned element per annotation, in screen pixels.
package overlay

import (
	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
)

// Handle names a resize affordance corner.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
)

var corners = []Handle{HandleNW, HandleNE, HandleSW, HandleSE}

// Element is one annotation materialized at the current zoom. X and Y are the
// top-left corner; for draw segments and callout leaders X2, Y2 is the
// second point.
type Element struct {
	ID          string               `json:"id"`
	Type        annotation.Type      `json:"type"`
	X           float64              `json:"x"`
	Y           float64              `json:"y"`
	Width       float64              `json:"width"`
	Height      float64              `json:"height"`
	X2          float64              `json:"x2,omitempty"`
	Y2          float64              `json:"y2,omitempty"`
	Text        string               `json:"text,omitempty"`
	FontSize    float64              `json:"fontSize,omitempty"`
	Color       string               `json:"color,omitempty"`
	StrokeWidth float64              `json:"strokeWidth,omitempty"`
	Opacity     float64              `json:"opacity"`
	Filled      bool                 `json:"filled,omitempty"`
	ShapeType   annotation.ShapeType `json:"shapeType,omitempty"`
	FormType    annotation.FormType  `json:"formType,omitempty"`
	Value       string               `json:"value,omitempty"`
	Image       []byte               `json:"image,omitempty"`
	Selected    bool                 `json:"selected,omitempty"`
	Handles     []Handle             `json:"handles,omitempty"`
}

// Resizable reports whether elements of type t get resize handles when selected.
func Resizable(t annotation.Type) bool {
	switch t {
	case annotation.TypeShape, annotation.TypeSignature, annotation.TypeImage,
		annotation.TypeForm, annotation.TypeStamp, annotation.TypeCallout:
		return true
	}
	return false
}

// Materialize converts a to an element positioned through vp.
func Materialize(a annotation.Annotation, vp coords.Viewport, selected bool) Element {
	b := a.Base()
	r := vp.RectToCanvas(a.Bounds())
	e := Element{
		ID:       b.ID,
		Type:     b.Subtype,
		X:        r.X,
		Y:        r.Y,
		Width:    r.Width,
		Height:   r.Height,
		Opacity:  1,
		Selected: selected,
		Color:    annotation.DefaultColorFor(b.Subtype),
	}
	switch v := a.(type) {
	case *annotation.TextAnnotation:
		e.Text = v.Text
		e.FontSize = vp.ScaleLength(sizeOr(v.Size))
		e.Color = annotation.ColorOr(v.Color, e.Color)
	case *annotation.DrawAnnotation:
		p1 := vp.ToCanvas(coords.Point{X: v.X1, Y: v.Y1})
		p2 := vp.ToCanvas(coords.Point{X: v.X2, Y: v.Y2})
		e.X, e.Y, e.X2, e.Y2 = p1.X, p1.Y, p2.X, p2.Y
		e.StrokeWidth = vp.ScaleLength(strokeOr(v.Width))
		e.Color = annotation.ColorOr(v.Color, e.Color)
	case *annotation.ShapeAnnotation:
		e.ShapeType = v.ShapeType
		e.Filled = v.Filled
		e.StrokeWidth = vp.ScaleLength(strokeOr(v.StrokeWidth))
		e.Color = annotation.ColorOr(v.Color, e.Color)
	case *annotation.ImageAnnotation:
		e.Image = v.Image
	case *annotation.StampAnnotation:
		e.Text = v.Label
		e.Image = v.Image
		e.Color = annotation.ColorOr(v.Color, e.Color)
	case *annotation.FormAnnotation:
		e.FormType = v.FormType
		e.Value = v.Value
		e.Text = v.Name
	case *annotation.MarkupAnnotation:
		e.Color = annotation.ColorOr(v.Color, e.Color)
		if b.Subtype == annotation.TypeHighlight {
			e.Opacity = annotation.HighlightOpacity
		}
	case *annotation.NoteAnnotation:
		e.Text = v.Text
		e.Color = annotation.ColorOr(v.Color, e.Color)
	case *annotation.CalloutAnnotation:
		t := vp.ToCanvas(coords.Point{X: v.TargetX, Y: v.TargetY})
		e.X2, e.Y2 = t.X, t.Y
		e.Text = v.Text
		e.FontSize = vp.ScaleLength(sizeOr(v.Size))
		e.Color = annotation.ColorOr(v.Color, e.Color)
	}
	if selected && Resizable(b.Subtype) {
		e.Handles = append([]Handle(nil), corners...)
	}
	return e
}

func sizeOr(v float64) float64 {
	if v <= 0 {
		return annotation.DefaultTextSize
	}
	return v
}

func strokeOr(v float64) float64 {
	if v <= 0 {
		return annotation.DefaultStrokeWidth
	}
	return v
}
