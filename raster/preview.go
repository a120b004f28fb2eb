package raster

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/overlay"
)

// Preview composites the page raster and every overlay element of v into
// one image, one pixel per view unit. Elements whose raster payload cannot
// be decoded are left out.
func Preview(v overlay.View) (*image.RGBA, error) {
	w, h := v.Width, v.Height
	if (w <= 0 || h <= 0) && v.Raster != nil {
		w, h = float64(v.Raster.Bounds().Dx()), float64(v.Raster.Bounds().Dy())
	}
	if w <= 0 || h <= 0 {
		return nil, errors.New("preview: empty view")
	}
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetFillColor(canvas.White)
	ctx.DrawPath(0, 0, canvas.Rectangle(w, h))
	if v.Raster != nil {
		drawImage(ctx, v.Raster, 0, 0, w, h)
	}
	for _, e := range v.Elements {
		drawElement(ctx, e, h)
	}
	return rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace), nil
}

// drawImage places img into the box whose bottom-left corner is (x, y).
func drawImage(ctx *canvas.Context, img image.Image, x, y, w, h float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	ctx.Push()
	ctx.Translate(x, y)
	ctx.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
	ctx.DrawImage(0, 0, img, canvas.DPMM(1.0))
	ctx.Pop()
}

func elementColor(e overlay.Element) color.NRGBA {
	c, ok := annotation.ParseColor(e.Color)
	if !ok {
		c, _ = annotation.ParseColor(annotation.DefaultColorFor(e.Type))
	}
	a := e.Opacity
	if a <= 0 || a > 1 {
		a = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(a * 255))}
}

func line(x1, y1, x2, y2 float64) *canvas.Path {
	p := &canvas.Path{}
	p.MoveTo(x1, y1)
	p.LineTo(x2, y2)
	return p
}

func drawElement(ctx *canvas.Context, e overlay.Element, pageH float64) {
	col := elementColor(e)
	bottom := pageH - e.Y - e.Height
	stroke := e.StrokeWidth
	if stroke <= 0 {
		stroke = 1
	}

	ctx.Push()
	defer ctx.Pop()
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(col)
	ctx.SetStrokeWidth(stroke)

	switch e.Type {
	case annotation.TypeText:
		drawLabel(ctx, e.Text, e.X, pageH-e.Y-e.FontSize, e.FontSize, col)

	case annotation.TypeDraw:
		ctx.DrawPath(0, 0, line(e.X, pageH-e.Y, e.X2, pageH-e.Y2))

	case annotation.TypeShape:
		if e.Filled {
			ctx.SetFillColor(col)
		}
		switch e.ShapeType {
		case annotation.ShapeCircle:
			ctx.DrawPath(e.X+e.Width/2, bottom+e.Height/2, canvas.Ellipse(e.Width/2, e.Height/2))
		case annotation.ShapeArrow:
			ctx.DrawPath(0, 0, line(e.X, pageH-e.Y, e.X+e.Width, bottom))
		default:
			ctx.DrawPath(e.X, bottom, canvas.Rectangle(e.Width, e.Height))
		}

	case annotation.TypeSignature, annotation.TypeImage:
		if img, err := Decode(e.Image); err == nil {
			drawImage(ctx, img, e.X, bottom, e.Width, e.Height)
		}

	case annotation.TypeHighlight:
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.SetFillColor(col)
		ctx.DrawPath(e.X, bottom, canvas.Rectangle(e.Width, e.Height))

	case annotation.TypeUnderline:
		ctx.DrawPath(0, 0, line(e.X, bottom, e.X+e.Width, bottom))

	case annotation.TypeStrikethrough:
		mid := bottom + e.Height/2
		ctx.DrawPath(0, 0, line(e.X, mid, e.X+e.Width, mid))

	case annotation.TypeForm:
		ctx.DrawPath(e.X, bottom, canvas.Rectangle(e.Width, e.Height))
		if e.Value != "" && e.FormType != annotation.FormCheckbox && e.FormType != annotation.FormRadio {
			drawLabel(ctx, e.Value, e.X+2, bottom+e.Height*0.25, e.Height*0.6, col)
		} else if e.Value != "" {
			ctx.SetFillColor(col)
			ctx.DrawPath(e.X+e.Width*0.25, bottom+e.Height*0.25, canvas.Rectangle(e.Width*0.5, e.Height*0.5))
		}

	case annotation.TypeStickyNote:
		ctx.SetFillColor(col)
		ctx.SetStrokeColor(canvas.Black)
		ctx.DrawPath(e.X, bottom, canvas.Rectangle(e.Width, e.Height))

	case annotation.TypeCallout:
		ctx.DrawPath(e.X, bottom, canvas.Rectangle(e.Width, e.Height))
		ctx.DrawPath(0, 0, line(e.X, bottom+e.Height/2, e.X2, pageH-e.Y2))
		drawLabel(ctx, e.Text, e.X+2, pageH-e.Y-e.FontSize-2, e.FontSize, col)

	case annotation.TypeStamp:
		if img, err := Decode(e.Image); err == nil {
			drawImage(ctx, img, e.X, bottom, e.Width, e.Height)
			return
		}
		ctx.DrawPath(e.X, bottom, canvas.Rectangle(e.Width, e.Height))
		drawLabel(ctx, e.Text, e.X+2, bottom+e.Height*0.3, e.Height*0.5, col)
	}

	if e.Selected {
		for _, hd := range e.Handles {
			hx, hy := handlePos(e, hd, pageH)
			ctx.SetFillColor(canvas.White)
			ctx.SetStrokeColor(canvas.Black)
			ctx.SetStrokeWidth(1)
			ctx.DrawPath(hx-3, hy-3, canvas.Rectangle(6, 6))
		}
	}
}

func handlePos(e overlay.Element, h overlay.Handle, pageH float64) (float64, float64) {
	top, bottom := pageH-e.Y, pageH-e.Y-e.Height
	switch h {
	case overlay.HandleNW:
		return e.X, top
	case overlay.HandleNE:
		return e.X + e.Width, top
	case overlay.HandleSW:
		return e.X, bottom
	default:
		return e.X + e.Width, bottom
	}
}

func drawLabel(ctx *canvas.Context, text string, x, baseline, size float64, col color.Color) {
	if text == "" || size <= 0 {
		return
	}
	face, err := Face(size, col)
	if err != nil {
		return
	}
	ctx.DrawText(x, baseline, canvas.NewTextLine(face, text, canvas.Left))
}
