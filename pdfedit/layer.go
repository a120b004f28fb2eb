package pdfedit

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/wudi/pdfmark/export"
	"github.com/wudi/pdfmark/raster"
)

// mmPerPt converts PDF points to canvas millimetres.
const mmPerPt = 25.4 / 72

// stampDesc places a layer page 1:1 over the bottom-left of its target page.
const stampDesc = "pos:bl, off:0 0, scale:1 abs, rot:0"

// Layer collects drawing for each page on a transparent canvas. It
// implements export.Target; coordinates are points with a bottom-left origin.
type Layer struct {
	sizes []types.Dim
	pages map[int]*layerPage
}

// NewLayer returns an empty layer sized like the document's pages.
func (e *Editor) NewLayer() *Layer {
	return &Layer{sizes: append([]types.Dim(nil), e.dims...), pages: make(map[int]*layerPage)}
}

// Page returns the drawing surface of page n.
func (l *Layer) Page(n int) (export.PageTarget, error) {
	if n < 1 || n > len(l.sizes) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", n, len(l.sizes))
	}
	if p, ok := l.pages[n]; ok {
		return p, nil
	}
	d := l.sizes[n-1]
	c := canvas.New(d.Width*mmPerPt, d.Height*mmPerPt)
	p := &layerPage{w: d.Width, h: d.Height, c: c, ctx: canvas.NewContext(c)}
	l.pages[n] = p
	return p, nil
}

// Empty reports whether nothing was drawn.
func (l *Layer) Empty() bool {
	for _, p := range l.pages {
		if p.ops > 0 {
			return false
		}
	}
	return true
}

// writePDF encodes one layer page per document page; untouched pages stay blank.
func (l *Layer) writePDF() ([]byte, error) {
	var buf bytes.Buffer
	var w *pdf.PDF
	for i, d := range l.sizes {
		n := i + 1
		c := canvas.New(d.Width*mmPerPt, d.Height*mmPerPt)
		if p, ok := l.pages[n]; ok {
			c = p.c
		}
		if w == nil {
			w = pdf.New(&buf, c.W, c.H, nil)
		} else {
			w.NewPage(c.W, c.H)
		}
		c.RenderTo(w)
	}
	if w == nil {
		return nil, fmt.Errorf("layer has no pages")
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encode layer: %w", err)
	}
	return buf.Bytes(), nil
}

// Apply stamps every drawn layer page onto the matching document page.
func (e *Editor) Apply(l *Layer) error {
	if l == nil || l.Empty() {
		return nil
	}
	data, err := l.writePDF()
	if err != nil {
		return err
	}
	f, err := os.CreateTemp("", "pdfmark-layer-*.pdf")
	if err != nil {
		return fmt.Errorf("apply layer: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("apply layer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("apply layer: %w", err)
	}

	pages := make([]int, 0, len(l.pages))
	for n, p := range l.pages {
		if p.ops > 0 {
			pages = append(pages, n)
		}
	}
	sort.Ints(pages)
	stamps := make(map[int]*model.Watermark, len(pages))
	for _, n := range pages {
		wm, err := pdfcpu.ParsePDFWatermarkDetails(fmt.Sprintf("%s:%d", f.Name(), n), stampDesc, true, types.POINTS)
		if err != nil {
			return fmt.Errorf("apply layer page %d: %w", n, err)
		}
		stamps[n] = wm
	}
	return e.rewrite("apply layer", func(rs io.ReadSeeker, w io.Writer) error {
		return api.AddWatermarksMap(rs, w, stamps, e.conf)
	})
}

type layerPage struct {
	w, h float64
	c    *canvas.Canvas
	ctx  *canvas.Context
	ops  int
}

func (p *layerPage) Size() (float64, float64) { return p.w, p.h }

func toColor(c export.Color) color.NRGBA {
	a := c.A
	if a <= 0 || a > 1 {
		a = 1
	}
	return color.NRGBA{
		R: uint8(math.Round(c.R * 255)),
		G: uint8(math.Round(c.G * 255)),
		B: uint8(math.Round(c.B * 255)),
		A: uint8(math.Round(a * 255)),
	}
}

func (p *layerPage) DrawText(text string, x, y float64, opts export.TextOptions) error {
	face, err := raster.Face(opts.FontSize*mmPerPt, toColor(opts.Color))
	if err != nil {
		return err
	}
	p.ctx.DrawText(x*mmPerPt, y*mmPerPt, canvas.NewTextLine(face, text, canvas.Left))
	p.ops++
	return nil
}

func (p *layerPage) DrawLine(x1, y1, x2, y2 float64, opts export.LineOptions) error {
	path := &canvas.Path{}
	path.MoveTo(x1*mmPerPt, y1*mmPerPt)
	path.LineTo(x2*mmPerPt, y2*mmPerPt)
	p.ctx.Push()
	p.ctx.SetFillColor(canvas.Transparent)
	p.ctx.SetStrokeColor(toColor(opts.StrokeColor))
	p.ctx.SetStrokeWidth(opts.LineWidth * mmPerPt)
	p.ctx.DrawPath(0, 0, path)
	p.ctx.Pop()
	p.ops++
	return nil
}

func (p *layerPage) paint(opts export.PathOptions, x, y float64, path *canvas.Path) {
	p.ctx.Push()
	p.ctx.SetFillColor(canvas.Transparent)
	p.ctx.SetStrokeColor(canvas.Transparent)
	if opts.Fill {
		p.ctx.SetFillColor(toColor(opts.FillColor))
	}
	if opts.Stroke || !opts.Fill {
		p.ctx.SetStrokeColor(toColor(opts.StrokeColor))
		p.ctx.SetStrokeWidth(opts.LineWidth * mmPerPt)
	}
	p.ctx.DrawPath(x, y, path)
	p.ctx.Pop()
	p.ops++
}

func (p *layerPage) DrawRectangle(x, y, w, h float64, opts export.PathOptions) error {
	p.paint(opts, x*mmPerPt, y*mmPerPt, canvas.Rectangle(w*mmPerPt, h*mmPerPt))
	return nil
}

func (p *layerPage) DrawEllipse(x, y, w, h float64, opts export.PathOptions) error {
	cx, cy := (x+w/2)*mmPerPt, (y+h/2)*mmPerPt
	p.paint(opts, cx, cy, canvas.Ellipse(w/2*mmPerPt, h/2*mmPerPt))
	return nil
}

func (p *layerPage) DrawImage(data []byte, x, y, w, h float64) error {
	img, err := raster.Decode(data)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("image has no pixels")
	}
	p.ctx.Push()
	p.ctx.Translate(x*mmPerPt, y*mmPerPt)
	p.ctx.Scale(w*mmPerPt/float64(b.Dx()), h*mmPerPt/float64(b.Dy()))
	p.ctx.DrawImage(0, 0, img, canvas.DPMM(1.0))
	p.ctx.Pop()
	p.ops++
	return nil
}
