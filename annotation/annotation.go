// Package annotation defines the annotation records a session creates on top
// of document pages and the ordered store that holds them.
//
// All positions are document-space units with a top-left origin, independent
// of the zoom factor the page is displayed at.
package annotation

import (
	"math"

	"github.com/wudi/pdfmark/coords"
)

// Type discriminates annotation records.
type Type string

const (
	TypeText          Type = "text"
	TypeDraw          Type = "draw"
	TypeSignature     Type = "signature"
	TypeShape         Type = "shape"
	TypeHighlight     Type = "highlight"
	TypeImage         Type = "image"
	TypeForm          Type = "form"
	TypeStickyNote    Type = "sticky-note"
	TypeCallout       Type = "callout"
	TypeStamp         Type = "stamp"
	TypeStrikethrough Type = "strikethrough"
	TypeUnderline     Type = "underline"
)

// Types lists every known annotation type.
var Types = []Type{
	TypeText, TypeDraw, TypeSignature, TypeShape, TypeHighlight, TypeImage,
	TypeForm, TypeStickyNote, TypeCallout, TypeStamp, TypeStrikethrough, TypeUnderline,
}

func (t Type) Valid() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// ShapeType selects the outline drawn by a shape annotation.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeArrow     ShapeType = "arrow"
)

// FormType selects the kind of form field a form annotation represents.
type FormType string

const (
	FormCheckbox  FormType = "checkbox"
	FormRadio     FormType = "radio"
	FormTextField FormType = "textfield"
	FormDate      FormType = "date"
)

// Annotation is a record positioned on one page.
type Annotation interface {
	Type() Type
	Base() *BaseAnnotation
	Bounds() coords.Rect
	Move(dx, dy float64)
	Clone() Annotation
}

// Resizable is implemented by annotations with a user-adjustable box.
type Resizable interface {
	Annotation
	SetSize(width, height float64)
}

// Editable is implemented by annotations carrying user text.
type Editable interface {
	Annotation
	SetText(text string)
}

// BaseAnnotation provides common fields for annotations.
type BaseAnnotation struct {
	ID      string `json:"id"`
	Subtype Type   `json:"type"`
	Page    int    `json:"page"`
}

func (a *BaseAnnotation) Type() Type            { return a.Subtype }
func (a *BaseAnnotation) Base() *BaseAnnotation { return a }

// NewBase returns the common header for a new record.
func NewBase(id string, typ Type, page int) BaseAnnotation {
	return BaseAnnotation{ID: id, Subtype: typ, Page: page}
}

// Box is the position and size shared by area annotations.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b *Box) Bounds() coords.Rect {
	return coords.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func (b *Box) Move(dx, dy float64) {
	b.X += dx
	b.Y += dy
}

func (b *Box) SetSize(width, height float64) {
	b.Width = width
	b.Height = height
}

// TextAnnotation is a single line of free text. Y is the top of the line box.
type TextAnnotation struct {
	BaseAnnotation
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Size  float64 `json:"size"`
	Color string  `json:"color,omitempty"`
}

func (a *TextAnnotation) Bounds() coords.Rect {
	return coords.Rect{X: a.X, Y: a.Y, Width: EstimateTextWidth(a.Text, a.Size), Height: a.Size}
}

func (a *TextAnnotation) Move(dx, dy float64) { a.X += dx; a.Y += dy }
func (a *TextAnnotation) SetText(text string) { a.Text = text }

func (a *TextAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// DrawAnnotation is one freehand segment; a stroke is a run of segments.
type DrawAnnotation struct {
	BaseAnnotation
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
}

func (a *DrawAnnotation) Bounds() coords.Rect {
	return coords.RectFromPoints(coords.Point{X: a.X1, Y: a.Y1}, coords.Point{X: a.X2, Y: a.Y2})
}

func (a *DrawAnnotation) Move(dx, dy float64) {
	a.X1 += dx
	a.Y1 += dy
	a.X2 += dx
	a.Y2 += dy
}

func (a *DrawAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// ShapeAnnotation is a rectangle, circle, or arrow spanning its box. Arrows
// point from the top-left corner of the box to the bottom-right one.
type ShapeAnnotation struct {
	BaseAnnotation
	Box
	ShapeType   ShapeType `json:"shapeType"`
	Color       string    `json:"color,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Filled      bool      `json:"filled,omitempty"`
}

func (a *ShapeAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// ImageAnnotation places a raster (PNG or JPEG bytes). Used by both the
// signature and image tools.
type ImageAnnotation struct {
	BaseAnnotation
	Box
	Image []byte `json:"image"`
}

func (a *ImageAnnotation) Clone() Annotation {
	c := *a
	c.Image = append([]byte(nil), a.Image...)
	return &c
}

// StampAnnotation is a labelled rubber stamp, optionally backed by a raster.
type StampAnnotation struct {
	BaseAnnotation
	Box
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
	Image []byte `json:"image,omitempty"`
}

func (a *StampAnnotation) SetText(text string) { a.Label = text }

func (a *StampAnnotation) Clone() Annotation {
	c := *a
	if a.Image != nil {
		c.Image = append([]byte(nil), a.Image...)
	}
	return &c
}

// FormAnnotation is a fillable field. Checkbox and radio values are "on" or "".
type FormAnnotation struct {
	BaseAnnotation
	Box
	FormType FormType `json:"formType"`
	Name     string   `json:"name,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// Checked reports whether a checkbox or radio field is selected.
func (a *FormAnnotation) Checked() bool { return a.Value != "" && a.Value != "off" }

func (a *FormAnnotation) SetText(text string) { a.Value = text }

func (a *FormAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// MarkupAnnotation covers a run of page text: highlight, strikethrough or underline.
type MarkupAnnotation struct {
	BaseAnnotation
	Box
	Color string `json:"color,omitempty"`
}

func (a *MarkupAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// NoteSize is the edge length of a sticky-note icon in document units.
const NoteSize = 20

// NoteAnnotation is a sticky note anchored at its icon's top-left corner.
type NoteAnnotation struct {
	BaseAnnotation
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color,omitempty"`
}

func (a *NoteAnnotation) Bounds() coords.Rect {
	return coords.Rect{X: a.X, Y: a.Y, Width: NoteSize, Height: NoteSize}
}

func (a *NoteAnnotation) Move(dx, dy float64) { a.X += dx; a.Y += dy }
func (a *NoteAnnotation) SetText(text string) { a.Text = text }

func (a *NoteAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// CalloutAnnotation is a text box with a leader line to a target point.
type CalloutAnnotation struct {
	BaseAnnotation
	Box
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
	Text    string  `json:"text"`
	Size    float64 `json:"size,omitempty"`
	Color   string  `json:"color,omitempty"`
}

// Move shifts the box; the leader target stays pinned to the page content.
func (a *CalloutAnnotation) Move(dx, dy float64) { a.Box.Move(dx, dy) }
func (a *CalloutAnnotation) SetText(text string) { a.Text = text }

func (a *CalloutAnnotation) Clone() Annotation {
	c := *a
	return &c
}

// EstimateTextWidth approximates the advance of a Helvetica-like line.
func EstimateTextWidth(text string, size float64) float64 {
	n := 0
	for range text {
		n++
	}
	return math.Round(float64(n)*size*0.5*100) / 100
}
