package session

import (
	"context"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
	"github.com/wudi/pdfmark/hittest"
)

// GoToPage shows page n. Out-of-range pages are ignored.
func (s *Session) GoToPage(ctx context.Context, n int) (bool, error) {
	if s.doc == nil || n < 1 || n > s.pages {
		return false, nil
	}
	s.page = n
	s.stroke = nil
	return true, s.sync(ctx)
}

func (s *Session) NextPage(ctx context.Context) (bool, error) { return s.GoToPage(ctx, s.page+1) }
func (s *Session) PrevPage(ctx context.Context) (bool, error) { return s.GoToPage(ctx, s.page-1) }

// ZoomIn raises the zoom by one step; at the maximum it does nothing.
func (s *Session) ZoomIn(ctx context.Context) (bool, error) {
	z, ok := s.zoomRange.In(s.zoom)
	if !ok {
		return false, nil
	}
	return s.applyZoom(ctx, z)
}

// ZoomOut lowers the zoom by one step; at the minimum it does nothing.
func (s *Session) ZoomOut(ctx context.Context) (bool, error) {
	z, ok := s.zoomRange.Out(s.zoom)
	if !ok {
		return false, nil
	}
	return s.applyZoom(ctx, z)
}

// SetZoom sets the zoom, clamped to the configured range and snapped to the
// nearest step.
func (s *Session) SetZoom(ctx context.Context, z float64) (bool, error) {
	return s.applyZoom(ctx, s.zoomRange.Snap(z))
}

func (s *Session) applyZoom(ctx context.Context, z float64) (bool, error) {
	if z == s.zoom {
		return false, nil
	}
	s.zoom = z
	if s.doc == nil {
		return true, nil
	}
	return true, s.sync(ctx)
}

// SetTool switches the active tool and ends any stroke in progress.
func (s *Session) SetTool(t Tool) {
	s.tool = t
	s.stroke = nil
}

// SetColor sets the "#rrggbb" color for new annotations. Invalid values are
// ignored.
func (s *Session) SetColor(hex string) bool {
	if _, ok := annotation.ParseColor(hex); !ok {
		return false
	}
	s.color = hex
	return true
}

// SetBrushSize sets the brush used by the draw and eraser tools.
func (s *Session) SetBrushSize(size float64) bool {
	if size <= 0 {
		return false
	}
	s.brush = size
	return true
}

// SetTextSize sets the font size of new text and callouts, in document units.
func (s *Session) SetTextSize(size float64) bool {
	if size <= 0 {
		return false
	}
	s.textSize = size
	return true
}

// Select marks id as the selected annotation; an empty id clears the
// selection. Unknown ids are ignored.
func (s *Session) Select(ctx context.Context, id string) (bool, error) {
	if id != "" {
		if _, ok := s.store.FindByID(id); !ok {
			return false, nil
		}
	}
	if id == s.selected {
		return true, nil
	}
	s.selected = id
	return true, s.resync(ctx)
}

// SelectAt selects the topmost annotation of the visible page under the
// pointer, or clears the selection when there is none.
func (s *Session) SelectAt(ctx context.Context, screen coords.Point) (string, error) {
	p := s.toDocument(screen)
	tolerance := s.toLength(hittest.RadiusForBrush(s.brush))
	id := ""
	if a, ok := hittest.TopmostAt(s.store.All(), s.page, p, tolerance); ok {
		id = a.Base().ID
	}
	if id == s.selected {
		return id, nil
	}
	s.selected = id
	return id, s.resync(ctx)
}

func (s *Session) resync(ctx context.Context) error {
	if s.doc == nil {
		return nil
	}
	return s.sync(ctx)
}
