package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
	"github.com/wudi/pdfmark/hittest"
	"github.com/wudi/pdfmark/overlay"
	"github.com/wudi/pdfmark/raster"
)

// Sizes of tool-placed records, in document units.
const (
	SignatureWidth  = 100.0
	SignatureHeight = 50.0
	StampWidth      = 120.0
	StampHeight     = 40.0
	CheckboxSize    = 20.0
	FieldWidth      = 150.0
	FieldHeight     = 24.0
	MinSize         = 5.0
)

var errEmptyText = errors.New("text is empty")

func (s *Session) validate(a annotation.Annotation) error {
	if err := annotation.Validate(a); err != nil {
		return err
	}
	if p := a.Base().Page; p > s.pages {
		return fmt.Errorf("annotation %s: %w", a.Base().ID, ErrPageOutOfRange)
	}
	return nil
}

// Add stores a fully built record. A missing id is generated and a zero page
// means the visible page. An id already in the store is rejected. The store is checkpointed before the record lands.
func (s *Session) Add(ctx context.Context, a annotation.Annotation) error {
	if s.doc == nil {
		return ErrNoDocument
	}
	b := a.Base()
	if b.ID == "" {
		b.ID = s.ids.Next()
	} else if _, taken := s.store.FindByID(b.ID); taken {
		return fmt.Errorf("annotation %s: %w", b.ID, ErrDuplicateID)
	}
	if b.Page == 0 {
		b.Page = s.page
	}
	if err := s.validate(a); err != nil {
		return err
	}
	s.checkpoint()
	s.store.Add(a)
	return s.flush(ctx)
}

func (s *Session) place(ctx context.Context, a annotation.Annotation) (annotation.Annotation, error) {
	if err := s.Add(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Session) base(t annotation.Type) annotation.BaseAnnotation {
	return annotation.NewBase(s.ids.Next(), t, s.page)
}

// box converts two pointer positions into a normalized document rectangle.
func (s *Session) box(from, to coords.Point) annotation.Box {
	r := coords.RectFromPoints(s.toDocument(from), s.toDocument(to))
	return annotation.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// AddText places a line of text with its top-left corner at the pointer.
func (s *Session) AddText(ctx context.Context, at coords.Point, text string) (annotation.Annotation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyText
	}
	p := s.toDocument(at)
	a := &annotation.TextAnnotation{
		BaseAnnotation: s.base(annotation.TypeText),
		X:              p.X,
		Y:              p.Y,
		Text:           text,
		Size:           s.textSize,
		Color:          s.color,
	}
	return s.place(ctx, a)
}

// BeginStroke starts a freehand stroke at the pointer.
func (s *Session) BeginStroke(at coords.Point) error {
	if s.doc == nil {
		return ErrNoDocument
	}
	s.stroke = &stroke{page: s.page, last: s.toDocument(at)}
	return nil
}

// ExtendStroke appends one segment from the previous pointer position. The
// first segment of a stroke records the stroke's single checkpoint.
func (s *Session) ExtendStroke(ctx context.Context, to coords.Point) (annotation.Annotation, error) {
	st := s.stroke
	if st == nil || st.page != s.page {
		return nil, nil
	}
	p := s.toDocument(to)
	if p == st.last {
		return nil, nil
	}
	a := &annotation.DrawAnnotation{
		BaseAnnotation: s.base(annotation.TypeDraw),
		X1:             st.last.X,
		Y1:             st.last.Y,
		X2:             p.X,
		Y2:             p.Y,
		Color:          s.color,
		Width:          s.brush / 4,
	}
	if st.segments == 0 {
		s.checkpoint()
	}
	st.segments++
	st.last = p
	s.store.Add(a)
	return a, s.flush(ctx)
}

// EndStroke finishes the stroke and reports how many segments it added.
func (s *Session) EndStroke() int {
	if s.stroke == nil {
		return 0
	}
	n := s.stroke.segments
	s.stroke = nil
	return n
}

// AddShape places a rectangle, circle or arrow spanning two pointer positions.
func (s *Session) AddShape(ctx context.Context, kind annotation.ShapeType, from, to coords.Point, filled bool) (annotation.Annotation, error) {
	a := &annotation.ShapeAnnotation{
		BaseAnnotation: s.base(annotation.TypeShape),
		Box:            s.box(from, to),
		ShapeType:      kind,
		Color:          s.color,
		StrokeWidth:    annotation.DefaultStrokeWidth,
		Filled:         filled,
	}
	return s.place(ctx, a)
}

// AddSignature places a signature raster centered on the pointer.
func (s *Session) AddSignature(ctx context.Context, at coords.Point, png []byte) (annotation.Annotation, error) {
	if _, err := raster.Decode(png); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	p := s.toDocument(at)
	a := &annotation.ImageAnnotation{
		BaseAnnotation: s.base(annotation.TypeSignature),
		Box:            annotation.Box{X: p.X - SignatureWidth/2, Y: p.Y - SignatureHeight/2, Width: SignatureWidth, Height: SignatureHeight},
		Image:          append([]byte(nil), png...),
	}
	return s.place(ctx, a)
}

// AddTypedSignature renders text as a signature and places it at the pointer.
func (s *Session) AddTypedSignature(ctx context.Context, at coords.Point, text string) (annotation.Annotation, error) {
	opts := raster.DefaultSignatureOptions()
	opts.Color = s.color
	png, err := raster.TypedSignature(text, opts)
	if err != nil {
		return nil, err
	}
	return s.AddSignature(ctx, at, png)
}

// AddImage places a PNG or JPEG spanning two pointer positions.
func (s *Session) AddImage(ctx context.Context, from, to coords.Point, data []byte) (annotation.Annotation, error) {
	if _, err := raster.Decode(data); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	a := &annotation.ImageAnnotation{
		BaseAnnotation: s.base(annotation.TypeImage),
		Box:            s.box(from, to),
		Image:          append([]byte(nil), data...),
	}
	return s.place(ctx, a)
}

// AddMarkup covers the dragged region with a highlight, strikethrough or
// underline.
func (s *Session) AddMarkup(ctx context.Context, kind annotation.Type, from, to coords.Point) (annotation.Annotation, error) {
	switch kind {
	case annotation.TypeHighlight, annotation.TypeStrikethrough, annotation.TypeUnderline:
	default:
		return nil, fmt.Errorf("%q is not a markup type", kind)
	}
	col := s.color
	if kind == annotation.TypeHighlight && col == annotation.DefaultColor {
		col = annotation.DefaultColorFor(kind)
	}
	a := &annotation.MarkupAnnotation{
		BaseAnnotation: s.base(kind),
		Box:            s.box(from, to),
		Color:          col,
	}
	return s.place(ctx, a)
}

// AddForm places a form field with its top-left corner at the pointer.
func (s *Session) AddForm(ctx context.Context, kind annotation.FormType, at coords.Point, name string) (annotation.Annotation, error) {
	p := s.toDocument(at)
	w, h := FieldWidth, FieldHeight
	if kind == annotation.FormCheckbox || kind == annotation.FormRadio {
		w, h = CheckboxSize, CheckboxSize
	}
	a := &annotation.FormAnnotation{
		BaseAnnotation: s.base(annotation.TypeForm),
		Box:            annotation.Box{X: p.X, Y: p.Y, Width: w, Height: h},
		FormType:       kind,
		Name:           name,
	}
	return s.place(ctx, a)
}

// AddNote pins a sticky note at the pointer.
func (s *Session) AddNote(ctx context.Context, at coords.Point, text string) (annotation.Annotation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyText
	}
	p := s.toDocument(at)
	col := s.color
	if col == annotation.DefaultColor {
		col = annotation.DefaultColorFor(annotation.TypeStickyNote)
	}
	a := &annotation.NoteAnnotation{
		BaseAnnotation: s.base(annotation.TypeStickyNote),
		X:              p.X,
		Y:              p.Y,
		Text:           text,
		Color:          col,
	}
	return s.place(ctx, a)
}

// AddCallout places a text box spanning two pointer positions with a leader
// line to target.
func (s *Session) AddCallout(ctx context.Context, from, to, target coords.Point, text string) (annotation.Annotation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyText
	}
	t := s.toDocument(target)
	a := &annotation.CalloutAnnotation{
		BaseAnnotation: s.base(annotation.TypeCallout),
		Box:            s.box(from, to),
		TargetX:        t.X,
		TargetY:        t.Y,
		Text:           text,
		Size:           s.textSize,
		Color:          s.color,
	}
	return s.place(ctx, a)
}

// AddStamp places a labelled stamp with its top-left corner at the pointer.
func (s *Session) AddStamp(ctx context.Context, at coords.Point, label string) (annotation.Annotation, error) {
	if strings.TrimSpace(label) == "" {
		return nil, errEmptyText
	}
	p := s.toDocument(at)
	col := s.color
	if col == annotation.DefaultColor {
		col = annotation.DefaultColorFor(annotation.TypeStamp)
	}
	a := &annotation.StampAnnotation{
		BaseAnnotation: s.base(annotation.TypeStamp),
		Box:            annotation.Box{X: p.X, Y: p.Y, Width: StampWidth, Height: StampHeight},
		Label:          label,
		Color:          col,
	}
	return s.place(ctx, a)
}

// EraseAt removes every annotation of the visible page under the eraser. The
// radius is half the brush size in viewport pixels. Nothing is checkpointed
// when nothing would be removed.
func (s *Session) EraseAt(ctx context.Context, at coords.Point) (bool, error) {
	e := hittest.Eraser{Radius: s.toLength(hittest.RadiusForBrush(s.brush))}
	hit := e.Hits(s.page, s.toDocument(at))
	found := false
	for _, a := range s.store.ForPage(s.page) {
		if hit(a) {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	s.checkpoint()
	s.store.RemoveWhere(hit)
	s.dropStaleSelection()
	return true, s.flush(ctx)
}

// Delete removes the annotation with id.
func (s *Session) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.store.FindByID(id); !ok {
		return false, nil
	}
	s.checkpoint()
	s.store.RemoveByID(id)
	s.dropStaleSelection()
	return true, s.flush(ctx)
}

func (s *Session) dropStaleSelection() {
	if s.selected == "" {
		return
	}
	if _, ok := s.store.FindByID(s.selected); !ok {
		s.selected = ""
		s.dirty = true
	}
}

// mutate checkpoints, applies fn to the record with id, and resyncs.
func (s *Session) mutate(ctx context.Context, id string, accept func(annotation.Annotation) bool, fn func(annotation.Annotation)) (bool, error) {
	a, ok := s.store.FindByID(id)
	if !ok || !accept(a) {
		return false, nil
	}
	s.checkpoint()
	fn(a)
	s.store.Touch(a)
	return true, s.flush(ctx)
}

func anyAnnotation(annotation.Annotation) bool { return true }

// Move shifts the annotation with id by a pointer delta.
func (s *Session) Move(ctx context.Context, id string, dx, dy float64) (bool, error) {
	ddx, ddy := s.toLength(dx), s.toLength(dy)
	return s.mutate(ctx, id, anyAnnotation, func(a annotation.Annotation) { a.Move(ddx, ddy) })
}

// Resize sets the box of a resizable annotation to a pointer-sized width and
// height. Sizes below MinSize document units are raised to it.
func (s *Session) Resize(ctx context.Context, id string, w, h float64) (bool, error) {
	dw, dh := max(s.toLength(w), MinSize), max(s.toLength(h), MinSize)
	accept := func(a annotation.Annotation) bool {
		_, ok := a.(annotation.Resizable)
		return ok && overlay.Resizable(a.Type())
	}
	return s.mutate(ctx, id, accept, func(a annotation.Annotation) {
		a.(annotation.Resizable).SetSize(dw, dh)
	})
}

// EditText replaces the text of a text, note, callout, stamp or form record.
func (s *Session) EditText(ctx context.Context, id, text string) (bool, error) {
	accept := func(a annotation.Annotation) bool {
		_, ok := a.(annotation.Editable)
		return ok
	}
	return s.mutate(ctx, id, accept, func(a annotation.Annotation) {
		a.(annotation.Editable).SetText(text)
	})
}

// SetFormValue fills a form field. Checkboxes and radios use "on" or "".
func (s *Session) SetFormValue(ctx context.Context, id, value string) (bool, error) {
	accept := func(a annotation.Annotation) bool {
		_, ok := a.(*annotation.FormAnnotation)
		return ok
	}
	return s.mutate(ctx, id, accept, func(a annotation.Annotation) {
		a.(*annotation.FormAnnotation).Value = value
	})
}
