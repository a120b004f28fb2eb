// Package session holds the editing state of one open document: the visible
// page and zoom, the active tool and its settings, the selection, the
// annotation store and its undo history, and the overlay view built from
// them.
//
// Pointer positions and lengths passed to a Session are viewport pixels; the
// session converts them to document units with the current viewport before
// anything is stored. A Session is not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"image"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
	"github.com/wudi/pdfmark/export"
	"github.com/wudi/pdfmark/history"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/overlay"
	"github.com/wudi/pdfmark/recovery"
)

// Document is an opened PDF as seen by the rendering collaborator.
type Document interface {
	PageCount() int
	PageSize(page int) (width, height float64, err error)
	Rasterize(ctx context.Context, page int, zoom float64) (image.Image, error)
	Text(page int) (string, error)
	Close() error
}

// Opener parses document bytes.
type Opener interface {
	Open(data []byte) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(data []byte) (Document, error)

func (f OpenerFunc) Open(data []byte) (Document, error) { return f(data) }

// PageEditor rewrites the page structure and metadata of a document.
type PageEditor interface {
	Rotate(page, degrees int) error
	RemovePage(page int) error
	AddBlankPage(width, height float64) error
	Properties() (map[string]string, error)
	SetProperties(props map[string]string) error
	Bytes() []byte
}

// EditorLoader opens a PageEditor over document bytes.
type EditorLoader func(data []byte) (PageEditor, error)

// Tool is the active pointer tool.
type Tool string

const (
	ToolSelect        Tool = "select"
	ToolText          Tool = "text"
	ToolDraw          Tool = "draw"
	ToolEraser        Tool = "eraser"
	ToolShape         Tool = "shape"
	ToolSignature     Tool = "signature"
	ToolImage         Tool = "image"
	ToolHighlight     Tool = "highlight"
	ToolStrikethrough Tool = "strikethrough"
	ToolUnderline     Tool = "underline"
	ToolForm          Tool = "form"
	ToolNote          Tool = "sticky-note"
	ToolCallout       Tool = "callout"
	ToolStamp         Tool = "stamp"
)

// Default tool settings.
const (
	DefaultBrushSize = 5.0
	DefaultZoom      = 1.0
)

// Option configures a Session.
type Option func(*Session)

func WithLogger(l observability.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t observability.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithZoomRange sets the zoom bounds and increment.
func WithZoomRange(r coords.ZoomRange) Option {
	return func(s *Session) { s.zoomRange = r }
}

// WithHistoryLimit caps the undo depth.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.historyLimit = n }
}

// WithBrushSize sets the initial brush size.
func WithBrushSize(size float64) Option {
	return func(s *Session) {
		if size > 0 {
			s.brush = size
		}
	}
}

// WithEditor enables RotatePage, DeletePage and AddBlankPage.
func WithEditor(load EditorLoader) Option {
	return func(s *Session) { s.loadEditor = load }
}

// WithRecovery sets the export failure policy.
func WithRecovery(r recovery.Strategy) Option {
	return func(s *Session) { s.recovery = r }
}

// WithIDGenerator replaces the annotation id source.
func WithIDGenerator(g *annotation.IDGenerator) Option {
	return func(s *Session) {
		if g != nil {
			s.ids = g
		}
	}
}

// Session is the editing state of one document.
type Session struct {
	opener       Opener
	loadEditor   EditorLoader
	logger       observability.Logger
	tracer       observability.Tracer
	recovery     recovery.Strategy
	zoomRange    coords.ZoomRange
	historyLimit int

	ids      *annotation.IDGenerator
	store    *annotation.Store
	history  *history.Manager
	bridge   *overlay.Bridge
	exporter *export.Exporter

	doc      Document
	data     []byte
	pages    int
	page     int
	zoom     float64
	origin   coords.Point
	tool     Tool
	color    string
	brush    float64
	textSize float64
	selected string
	stroke   *stroke
	dirty    bool
}

type stroke struct {
	page     int
	last     coords.Point
	segments int
}

// New returns an empty session that opens documents with opener.
func New(opener Opener, opts ...Option) *Session {
	s := &Session{
		opener:    opener,
		logger:    observability.NopLogger{},
		tracer:    observability.NopTracer(),
		zoomRange: coords.DefaultZoomRange(),
		ids:       annotation.NewIDGenerator(),
		store:     annotation.NewStore(),
		zoom:      DefaultZoom,
		tool:      ToolSelect,
		color:     annotation.DefaultColor,
		brush:     DefaultBrushSize,
		textSize:  annotation.DefaultTextSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = history.NewManager(s.historyLimit)
	s.bridge = overlay.NewBridge(pageRasterizer{s},
		overlay.WithLogger(s.logger), overlay.WithTracer(s.tracer))
	exportOpts := []export.Option{export.WithLogger(s.logger), export.WithTracer(s.tracer)}
	if s.recovery != nil {
		exportOpts = append(exportOpts, export.WithRecovery(s.recovery))
	}
	s.exporter = export.New(exportOpts...)
	s.store.Observe(func(c annotation.Change) {
		if c.Affects(s.page) {
			s.dirty = true
		}
	})
	return s
}

// pageRasterizer forwards to whichever document is open when the bridge asks.
type pageRasterizer struct{ s *Session }

func (r pageRasterizer) Rasterize(ctx context.Context, page int, zoom float64) (image.Image, error) {
	if r.s.doc == nil {
		return nil, ErrNoDocument
	}
	return r.s.doc.Rasterize(ctx, page, zoom)
}

// Open replaces the current document with data. On success the session is
// reset to page 1 at zoom 1 with an empty store and history, and the first
// page is synced. Failures are returned as *LoadError and leave the previous
// document in place.
func (s *Session) Open(ctx context.Context, data []byte) error {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanLoad)
	defer span.Finish()

	if len(data) == 0 {
		err := &LoadError{Kind: LoadInvalid, Err: errors.New("invalid pdf: empty document")}
		span.SetError(err)
		return err
	}
	doc, err := s.opener.Open(data)
	if err == nil && doc.PageCount() < 1 {
		doc.Close()
		err = errors.New("invalid pdf: no pages")
	}
	if err != nil {
		le := classifyLoadError(err)
		span.SetError(le)
		s.logger.Warn("open document failed",
			observability.String("kind", string(le.Kind)),
			observability.Error("error", err))
		return le
	}

	s.closeDocument()
	s.doc = doc
	s.data = append([]byte(nil), data...)
	s.pages = doc.PageCount()
	s.page = 1
	s.zoom = s.zoomRange.Snap(DefaultZoom)
	s.selected = ""
	s.stroke = nil
	s.store.Clear()
	s.history.Reset()
	span.SetTag("pages", s.pages)
	s.logger.Info("document opened", observability.Int("pages", s.pages), observability.Int("bytes", len(data)))
	return s.sync(ctx)
}

// Restore replaces the store with recovered annotations. Records that fail
// validation, sit on a missing page or repeat an id are dropped. History is cleared.
func (s *Session) Restore(ctx context.Context, anns []annotation.Annotation) (int, error) {
	if s.doc == nil {
		return 0, ErrNoDocument
	}
	kept := make([]annotation.Annotation, 0, len(anns))
	seen := make(map[string]struct{}, len(anns))
	for _, a := range anns {
		err := s.validate(a)
		if _, dup := seen[a.Base().ID]; err == nil && dup {
			err = ErrDuplicateID
		}
		if err != nil {
			s.logger.Warn("dropping recovered annotation",
				observability.String("id", a.Base().ID),
				observability.Error("error", err))
			continue
		}
		seen[a.Base().ID] = struct{}{}
		kept = append(kept, a.Clone())
	}
	s.store.Replace(kept)
	s.history.Reset()
	s.selected = ""
	return len(kept), s.flush(ctx)
}

// Close releases the open document.
func (s *Session) Close() error {
	return s.closeDocument()
}

func (s *Session) closeDocument() error {
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}

func (s *Session) Loaded() bool       { return s.doc != nil }
func (s *Session) Page() int          { return s.page }
func (s *Session) PageCount() int     { return s.pages }
func (s *Session) Zoom() float64      { return s.zoom }
func (s *Session) Tool() Tool         { return s.tool }
func (s *Session) Color() string      { return s.color }
func (s *Session) BrushSize() float64 { return s.brush }
func (s *Session) TextSize() float64  { return s.textSize }
func (s *Session) Selected() string   { return s.selected }
func (s *Session) CanUndo() bool      { return s.history.CanUndo() }
func (s *Session) CanRedo() bool      { return s.history.CanRedo() }

// Bytes returns the current document bytes, including page structure edits.
func (s *Session) Bytes() []byte { return append([]byte(nil), s.data...) }

// Annotations returns a deep copy of the store.
func (s *Session) Annotations() []annotation.Annotation { return s.store.Clone() }

// View returns the last published overlay.
func (s *Session) View() overlay.View { return s.bridge.Current() }

// Subscribe registers fn for every published overlay view.
func (s *Session) Subscribe(fn func(overlay.View)) func() { return s.bridge.Subscribe(fn) }

// Viewport returns the current screen mapping.
func (s *Session) Viewport() coords.Viewport {
	return coords.Viewport{Origin: s.origin, Zoom: s.zoom}
}

// SetOrigin records where the page canvas sits in the viewport.
func (s *Session) SetOrigin(origin coords.Point) { s.origin = origin }

func (s *Session) toDocument(screen coords.Point) coords.Point {
	return s.Viewport().ToDocument(screen)
}

func (s *Session) toLength(v float64) float64 {
	return v / s.Viewport().ScaleLength(1)
}

// PageSize returns the size of page in document units.
func (s *Session) PageSize(page int) (float64, float64, error) {
	if s.doc == nil {
		return 0, 0, ErrNoDocument
	}
	if page < 1 || page > s.pages {
		return 0, 0, ErrPageOutOfRange
	}
	return s.doc.PageSize(page)
}

// sync rebuilds the overlay of the visible page. A superseded render is not
// an error for the caller; the newer sync owns the view.
func (s *Session) sync(ctx context.Context) error {
	s.dirty = false
	if s.doc == nil {
		return ErrNoDocument
	}
	w, h, err := s.doc.PageSize(s.page)
	if err != nil {
		s.logger.Warn("page size unavailable", observability.Int("page", s.page), observability.Error("error", err))
	}
	_, err = s.bridge.Sync(ctx, overlay.Request{
		Page:        s.page,
		Zoom:        s.zoom,
		PageWidth:   w,
		PageHeight:  h,
		Annotations: s.store.All(),
		Selected:    s.selected,
	})
	if errors.Is(err, overlay.ErrStaleRender) {
		return nil
	}
	return err
}

// flush syncs if a store change touched the visible page.
func (s *Session) flush(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	return s.sync(ctx)
}

// Refresh forces a rebuild of the overlay.
func (s *Session) Refresh(ctx context.Context) error { return s.sync(ctx) }

func (s *Session) checkpoint() { s.history.Checkpoint(s.current()) }

func (s *Session) current() history.Snapshot {
	return history.Capture(s.store.All(), s.bridge.Current().Raster)
}

// Undo restores the state before the most recent action. It reports false
// when there is nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	prev, ok := s.history.Undo(s.current())
	if !ok {
		return false, nil
	}
	s.restoreSnapshot(prev)
	return true, s.sync(ctx)
}

// Redo re-applies the most recently undone action.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	next, ok := s.history.Redo(s.current())
	if !ok {
		return false, nil
	}
	s.restoreSnapshot(next)
	return true, s.sync(ctx)
}

func (s *Session) restoreSnapshot(snap history.Snapshot) {
	s.stroke = nil
	s.store.Replace(snap.Annotations)
	if s.selected != "" {
		if _, ok := s.store.FindByID(s.selected); !ok {
			s.selected = ""
		}
	}
}

// Export draws every annotation onto target.
func (s *Session) Export(ctx context.Context, target export.Target) (export.Report, error) {
	return s.exporter.Export(ctx, s.store.All(), target)
}
