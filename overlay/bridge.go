package overlay

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
	"github.com/wudi/pdfmark/observability"
)

// ErrStaleRender is returned by Sync when a newer Sync started while this
// one was rasterizing; the newer call owns the view.
var ErrStaleRender = errors.New("overlay: render superseded")

// Rasterizer draws one page at a zoom factor.
type Rasterizer interface {
	Rasterize(ctx context.Context, page int, zoom float64) (image.Image, error)
}

// View is the overlay of the visible page. Elements are in paint order.
type View struct {
	Page       int         `json:"page"`
	Zoom       float64     `json:"zoom"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Raster     image.Image `json:"-"`
	Elements   []Element   `json:"elements"`
	Generation uint64      `json:"generation"`
}

// Request describes what to show. PageWidth and PageHeight are document units.
type Request struct {
	Page        int
	Zoom        float64
	PageWidth   float64
	PageHeight  float64
	Annotations []annotation.Annotation
	Selected    string
}

// Option configures a Bridge.
type Option func(*Bridge)

func WithLogger(l observability.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithTracer(t observability.Tracer) Option {
	return func(b *Bridge) {
		if t != nil {
			b.tracer = t
		}
	}
}

// Bridge rebuilds the view on demand and publishes it to subscribers. It is
// the only writer of the view.
type Bridge struct {
	rasterizer Rasterizer
	logger     observability.Logger
	tracer     observability.Tracer

	mu         sync.Mutex
	generation uint64
	view       View
	subs       map[int]func(View)
	nextSub    int
}

// NewBridge returns a bridge drawing pages with r. A nil r yields views
// without a raster.
func NewBridge(r Rasterizer, opts ...Option) *Bridge {
	b := &Bridge{
		rasterizer: r,
		logger:     observability.NopLogger{},
		tracer:     observability.NopTracer(),
		subs:       make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Sync clears the view, rasterizes req.Page, then materializes the
// annotations of that page in store order. A rasterization failure is logged
// and the view is published without a raster.
func (b *Bridge) Sync(ctx context.Context, req Request) (View, error) {
	ctx, span := b.tracer.StartSpan(ctx, observability.SpanSync)
	defer span.Finish()
	span.SetTag("page", req.Page)

	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.view = View{Page: req.Page, Zoom: req.Zoom, Generation: gen}
	b.mu.Unlock()

	var img image.Image
	if b.rasterizer != nil {
		rctx, rspan := b.tracer.StartSpan(ctx, observability.SpanRasterize)
		r, err := b.rasterizer.Rasterize(rctx, req.Page, req.Zoom)
		if err != nil {
			rspan.SetError(err)
			b.logger.Warn("rasterize page failed",
				observability.Int("page", req.Page),
				observability.Float64("zoom", req.Zoom),
				observability.Error("error", err))
		} else {
			img = r
		}
		rspan.Finish()
	}

	vp := coords.Viewport{Zoom: req.Zoom}
	view := View{
		Page:       req.Page,
		Zoom:       req.Zoom,
		Width:      vp.ScaleLength(req.PageWidth),
		Height:     vp.ScaleLength(req.PageHeight),
		Raster:     img,
		Elements:   []Element{},
		Generation: gen,
	}
	if img != nil && (view.Width == 0 || view.Height == 0) {
		view.Width = float64(img.Bounds().Dx())
		view.Height = float64(img.Bounds().Dy())
	}
	for _, a := range req.Annotations {
		if a.Base().Page != req.Page {
			continue
		}
		view.Elements = append(view.Elements, Materialize(a, vp, a.Base().ID == req.Selected))
	}

	b.mu.Lock()
	if b.generation != gen {
		b.mu.Unlock()
		b.logger.Debug("discarding stale overlay", observability.Int("page", req.Page))
		span.SetError(ErrStaleRender)
		return View{}, ErrStaleRender
	}
	b.view = view
	subs := make([]func(View), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
	return view, nil
}

// Current returns the last published (or cleared) view.
func (b *Bridge) Current() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// Subscribe registers fn for every published view and returns its cancel func.
func (b *Bridge) Subscribe(fn func(View)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
