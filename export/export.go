package export

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/recovery"
)

// Failure records one annotation (or page) that could not be drawn.
type Failure struct {
	Page         int
	AnnotationID string
	Err          error
}

// Report summarizes an export.
type Report struct {
	Pages    int
	Drawn    int
	Failures []Failure
}

type Option func(*Exporter)

func WithLogger(l observability.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithTracer(t observability.Tracer) Option {
	return func(e *Exporter) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithRecovery sets the per-item failure policy. The default is a lenient
// strategy created afresh for each export.
func WithRecovery(s recovery.Strategy) Option {
	return func(e *Exporter) {
		if s != nil {
			e.recovery = s
		}
	}
}

// Exporter translates annotations into drawing calls.
type Exporter struct {
	logger   observability.Logger
	tracer   observability.Tracer
	recovery recovery.Strategy
	lenient  func(observability.Logger) *recovery.LenientStrategy
}

func New(opts ...Option) *Exporter {
	e := &Exporter{
		logger:  observability.NopLogger{},
		tracer:  observability.NopTracer(),
		lenient: recovery.NewLenientStrategy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export draws anns page by page, ascending, in store order within a page.
// A failing annotation is handed to the recovery strategy; unless it asks to
// fail, the export continues with the next one.
func (e *Exporter) Export(ctx context.Context, anns []annotation.Annotation, target Target) (Report, error) {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanExport)
	defer span.Finish()
	span.SetTag("annotations", len(anns))

	strategy := e.recovery
	if strategy == nil {
		strategy = e.lenient(e.logger)
	}
	var rep Report
	pages, groups := annotation.GroupByPage(anns)
	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		pt, err := target.Page(n)
		if err != nil {
			if ferr := e.fail(ctx, strategy, &rep, recovery.Location{Page: n, Component: "export"}, err); ferr != nil {
				span.SetError(ferr)
				return rep, ferr
			}
			continue
		}
		rep.Pages++
		_, height := pt.Size()
		for _, a := range groups[n] {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			if err := Draw(pt, a, height); err != nil {
				loc := recovery.Location{Page: n, AnnotationID: a.Base().ID, Component: "export"}
				if ferr := e.fail(ctx, strategy, &rep, loc, err); ferr != nil {
					span.SetError(ferr)
					return rep, ferr
				}
				continue
			}
			rep.Drawn++
		}
	}
	e.logger.Info("export finished",
		observability.Int("pages", rep.Pages),
		observability.Int("drawn", rep.Drawn),
		observability.Int("failed", len(rep.Failures)))
	return rep, nil
}

func (e *Exporter) fail(ctx context.Context, strategy recovery.Strategy, rep *Report, loc recovery.Location, err error) error {
	rep.Failures = append(rep.Failures, Failure{Page: loc.Page, AnnotationID: loc.AnnotationID, Err: err})
	if strategy.OnError(ctx, err, loc) == recovery.ActionFail {
		return fmt.Errorf("export %s: %w", loc, err)
	}
	return nil
}

// FlipY converts a top-left-origin box top into a bottom-left-origin box bottom.
func FlipY(pageHeight, y, height float64) float64 { return pageHeight - y - height }

// Draw issues the primitives for a on pt. pageHeight is in document units.
func Draw(pt PageTarget, a annotation.Annotation, pageHeight float64) error {
	fallback := annotation.DefaultColorFor(a.Type())
	switch v := a.(type) {
	case *annotation.TextAnnotation:
		if v.Text == "" {
			return nil
		}
		size := orDefault(v.Size, annotation.DefaultTextSize)
		return pt.DrawText(v.Text, v.X, FlipY(pageHeight, v.Y, size), TextOptions{FontSize: size, Color: ParseColor(v.Color, fallback)})

	case *annotation.DrawAnnotation:
		return pt.DrawLine(v.X1, pageHeight-v.Y1, v.X2, pageHeight-v.Y2, LineOptions{
			StrokeColor: ParseColor(v.Color, fallback),
			LineWidth:   orDefault(v.Width, annotation.DefaultStrokeWidth),
		})

	case *annotation.ShapeAnnotation:
		return drawShape(pt, v, pageHeight, ParseColor(v.Color, fallback))

	case *annotation.ImageAnnotation:
		if len(v.Image) == 0 {
			return errors.New("image payload missing")
		}
		return pt.DrawImage(v.Image, v.X, FlipY(pageHeight, v.Y, v.Height), v.Width, v.Height)

	case *annotation.MarkupAnnotation:
		return drawMarkup(pt, v, pageHeight, ParseColor(v.Color, fallback))

	case *annotation.FormAnnotation:
		return drawForm(pt, v, pageHeight)

	case *annotation.NoteAnnotation:
		c := ParseColor(v.Color, fallback)
		y := FlipY(pageHeight, v.Y, annotation.NoteSize)
		if err := pt.DrawRectangle(v.X, y, annotation.NoteSize, annotation.NoteSize, PathOptions{
			FillColor: c, StrokeColor: ParseColor("", annotation.DefaultColor), LineWidth: 0.5, Fill: true, Stroke: true,
		}); err != nil {
			return err
		}
		if v.Text == "" {
			return nil
		}
		return pt.DrawText(v.Text, v.X+annotation.NoteSize+4, FlipY(pageHeight, v.Y, noteTextSize), TextOptions{FontSize: noteTextSize, Color: ParseColor("", annotation.DefaultColor)})

	case *annotation.CalloutAnnotation:
		return drawCallout(pt, v, pageHeight, ParseColor(v.Color, fallback))

	case *annotation.StampAnnotation:
		return drawStamp(pt, v, pageHeight, ParseColor(v.Color, fallback))
	}
	return fmt.Errorf("unsupported annotation type %q", a.Type())
}

const (
	noteTextSize  = 10.0
	arrowHeadLen  = 10.0
	arrowHeadSpan = math.Pi / 6
	textPadding   = 4.0
)

func drawShape(pt PageTarget, v *annotation.ShapeAnnotation, pageHeight float64, c Color) error {
	opts := PathOptions{
		StrokeColor: c,
		FillColor:   c,
		LineWidth:   orDefault(v.StrokeWidth, annotation.DefaultStrokeWidth),
		Fill:        v.Filled,
		Stroke:      true,
	}
	y := FlipY(pageHeight, v.Y, v.Height)
	switch v.ShapeType {
	case annotation.ShapeRectangle:
		return pt.DrawRectangle(v.X, y, v.Width, v.Height, opts)
	case annotation.ShapeCircle:
		return pt.DrawEllipse(v.X, y, v.Width, v.Height, opts)
	case annotation.ShapeArrow:
		line := LineOptions{StrokeColor: c, LineWidth: opts.LineWidth}
		x1, y1 := v.X, pageHeight-v.Y
		x2, y2 := v.X+v.Width, pageHeight-v.Y-v.Height
		if err := pt.DrawLine(x1, y1, x2, y2, line); err != nil {
			return err
		}
		angle := math.Atan2(y2-y1, x2-x1)
		for _, side := range []float64{-1, 1} {
			a := angle + math.Pi + side*arrowHeadSpan
			if err := pt.DrawLine(x2, y2, x2+arrowHeadLen*math.Cos(a), y2+arrowHeadLen*math.Sin(a), line); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown shape %q", v.ShapeType)
}

func drawMarkup(pt PageTarget, v *annotation.MarkupAnnotation, pageHeight float64, c Color) error {
	bottom := FlipY(pageHeight, v.Y, v.Height)
	switch v.Type() {
	case annotation.TypeHighlight:
		c.A = annotation.HighlightOpacity
		return pt.DrawRectangle(v.X, bottom, v.Width, v.Height, PathOptions{FillColor: c, Fill: true})
	case annotation.TypeUnderline:
		return pt.DrawLine(v.X, bottom, v.X+v.Width, bottom, LineOptions{StrokeColor: c, LineWidth: 1})
	case annotation.TypeStrikethrough:
		mid := bottom + v.Height/2
		return pt.DrawLine(v.X, mid, v.X+v.Width, mid, LineOptions{StrokeColor: c, LineWidth: 1})
	}
	return fmt.Errorf("unsupported markup %q", v.Type())
}

func drawForm(pt PageTarget, v *annotation.FormAnnotation, pageHeight float64) error {
	black := ParseColor("", annotation.DefaultColor)
	y := FlipY(pageHeight, v.Y, v.Height)
	box := PathOptions{StrokeColor: black, LineWidth: 1, Stroke: true}
	switch v.FormType {
	case annotation.FormCheckbox:
		if err := pt.DrawRectangle(v.X, y, v.Width, v.Height, box); err != nil {
			return err
		}
		if !v.Checked() {
			return nil
		}
		line := LineOptions{StrokeColor: black, LineWidth: 1.5}
		if err := pt.DrawLine(v.X+v.Width*0.2, y+v.Height*0.5, v.X+v.Width*0.4, y+v.Height*0.2, line); err != nil {
			return err
		}
		return pt.DrawLine(v.X+v.Width*0.4, y+v.Height*0.2, v.X+v.Width*0.8, y+v.Height*0.8, line)
	case annotation.FormRadio:
		if err := pt.DrawEllipse(v.X, y, v.Width, v.Height, box); err != nil {
			return err
		}
		if !v.Checked() {
			return nil
		}
		return pt.DrawEllipse(v.X+v.Width*0.25, y+v.Height*0.25, v.Width*0.5, v.Height*0.5, PathOptions{FillColor: black, Fill: true})
	case annotation.FormTextField, annotation.FormDate:
		if err := pt.DrawRectangle(v.X, y, v.Width, v.Height, box); err != nil {
			return err
		}
		if v.Value == "" {
			return nil
		}
		size := math.Min(annotation.DefaultTextSize, v.Height*0.7)
		return pt.DrawText(v.Value, v.X+2, y+(v.Height-size)/2+size*0.2, TextOptions{FontSize: size, Color: black})
	}
	return fmt.Errorf("unknown form type %q", v.FormType)
}

func drawCallout(pt PageTarget, v *annotation.CalloutAnnotation, pageHeight float64, c Color) error {
	y := FlipY(pageHeight, v.Y, v.Height)
	if err := pt.DrawRectangle(v.X, y, v.Width, v.Height, PathOptions{StrokeColor: c, LineWidth: 1, Stroke: true}); err != nil {
		return err
	}
	// Leader starts from the box edge midpoint nearest the target.
	sx, sy := v.X, y+v.Height/2
	if v.TargetX > v.X+v.Width {
		sx = v.X + v.Width
	}
	if err := pt.DrawLine(sx, sy, v.TargetX, pageHeight-v.TargetY, LineOptions{StrokeColor: c, LineWidth: 1}); err != nil {
		return err
	}
	if v.Text == "" {
		return nil
	}
	size := orDefault(v.Size, annotation.DefaultTextSize)
	return pt.DrawText(v.Text, v.X+textPadding, FlipY(pageHeight, v.Y+textPadding, size), TextOptions{FontSize: size, Color: c})
}

func drawStamp(pt PageTarget, v *annotation.StampAnnotation, pageHeight float64, c Color) error {
	y := FlipY(pageHeight, v.Y, v.Height)
	if len(v.Image) > 0 {
		return pt.DrawImage(v.Image, v.X, y, v.Width, v.Height)
	}
	if err := pt.DrawRectangle(v.X, y, v.Width, v.Height, PathOptions{StrokeColor: c, LineWidth: 2, Stroke: true}); err != nil {
		return err
	}
	if v.Label == "" {
		return nil
	}
	size := math.Min(v.Height*0.5, 24)
	x := v.X + (v.Width-annotation.EstimateTextWidth(v.Label, size))/2
	return pt.DrawText(v.Label, x, y+(v.Height-size)/2+size*0.2, TextOptions{FontSize: size, Color: c})
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
