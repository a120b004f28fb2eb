package coords

// Viewport places a page canvas on screen. Origin is the canvas' top-left
// corner in viewport pixels; Zoom scales document units to canvas pixels.
type Viewport struct {
	Origin Point
	Zoom   float64
}

// Matrix maps document units to viewport pixels.
func (v Viewport) Matrix() Matrix {
	z := v.zoom()
	return Scale(z, z).Multiply(Translate(v.Origin.X, v.Origin.Y))
}

// ToDocument converts a pointer position into document units.
func (v Viewport) ToDocument(screen Point) Point {
	inv, err := v.Matrix().Inverse()
	if err != nil {
		inv = Identity()
	}
	return inv.Transform(screen)
}

// ToScreen converts document units into viewport pixels.
func (v Viewport) ToScreen(doc Point) Point {
	return v.Matrix().Transform(doc)
}

// ToCanvas converts document units into canvas pixels, ignoring the origin.
func (v Viewport) ToCanvas(doc Point) Point {
	z := v.zoom()
	return Point{X: doc.X * z, Y: doc.Y * z}
}

// RectToCanvas scales r into canvas pixels.
func (v Viewport) RectToCanvas(r Rect) Rect {
	z := v.zoom()
	return Rect{X: r.X * z, Y: r.Y * z, Width: r.Width * z, Height: r.Height * z}
}

// ScaleLength scales a document-space length (stroke width, font size).
func (v Viewport) ScaleLength(l float64) float64 { return l * v.zoom() }

func (v Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}
