// Package export writes annotations onto a document through a drawing
// target that uses a bottom-left origin.
package export

import "github.com/wudi/pdfmark/annotation"

// Target hands out per-page drawing surfaces. Pages are 1-based.
type Target interface {
	Page(n int) (PageTarget, error)
}

// PageTarget draws primitives in document units with a bottom-left origin.
type PageTarget interface {
	Size() (width, height float64)
	DrawText(text string, x, y float64, opts TextOptions) error
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) error
	DrawRectangle(x, y, width, height float64, opts PathOptions) error
	// DrawEllipse draws the ellipse inscribed in the given box.
	DrawEllipse(x, y, width, height float64, opts PathOptions) error
	// DrawImage places PNG or JPEG bytes into the given box.
	DrawImage(data []byte, x, y, width, height float64) error
}

// TextOptions configures text drawing. Y passed to DrawText is the baseline.
type TextOptions struct {
	FontSize float64
	Color    Color
}

// PathOptions configures rectangle and ellipse drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	Fill        bool
	Stroke      bool
}

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
}

// Color is an RGB color with components in [0, 1]. A is the opacity.
type Color struct {
	R, G, B float64
	A       float64
}

// ParseColor converts "#rrggbb" into a Color, falling back to fallback when
// hex is missing or malformed.
func ParseColor(hex, fallback string) Color {
	c, ok := annotation.ParseColor(hex)
	if !ok {
		c, _ = annotation.ParseColor(fallback)
	}
	return Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255, A: 1}
}
