package session

import (
	"context"
	"fmt"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/ocr"
)

// Size of pages added by AddBlankPage, in points (US Letter).
const (
	BlankPageWidth  = 612.0
	BlankPageHeight = 792.0
)

// RecognizeZoom is the zoom used to rasterize a page for recognition.
const RecognizeZoom = 2.0

func (s *Session) editor() (PageEditor, error) {
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	if s.loadEditor == nil {
		return nil, ErrNoEditor
	}
	ed, err := s.loadEditor(s.data)
	if err != nil {
		return nil, fmt.Errorf("load page editor: %w", err)
	}
	return ed, nil
}

// swap replaces the open document with edited bytes.
func (s *Session) swap(data []byte) error {
	doc, err := s.opener.Open(data)
	if err != nil {
		return fmt.Errorf("reopen edited document: %w", classifyLoadError(err))
	}
	s.closeDocument()
	s.doc = doc
	s.data = append([]byte(nil), data...)
	s.pages = doc.PageCount()
	if s.page > s.pages {
		s.page = s.pages
	}
	if s.page < 1 {
		s.page = 1
	}
	return nil
}

// reload swaps in bytes with a new page layout. Checkpoints refer to the old
// layout, so history is cleared.
func (s *Session) reload(ctx context.Context, data []byte) error {
	if err := s.swap(data); err != nil {
		return err
	}
	s.stroke = nil
	s.history.Reset()
	return s.sync(ctx)
}

// RotatePage turns the visible page clockwise by 90 degrees.
func (s *Session) RotatePage(ctx context.Context) error {
	ed, err := s.editor()
	if err != nil {
		return err
	}
	if err := ed.Rotate(s.page, 90); err != nil {
		return fmt.Errorf("rotate page %d: %w", s.page, err)
	}
	s.logger.Info("page rotated", observability.Int("page", s.page))
	return s.reload(ctx, ed.Bytes())
}

// DeletePage removes the visible page together with its annotations.
// Annotations of later pages move up by one page.
func (s *Session) DeletePage(ctx context.Context) error {
	if s.doc != nil && s.pages <= 1 {
		return ErrLastPage
	}
	ed, err := s.editor()
	if err != nil {
		return err
	}
	removed := s.page
	if err := ed.RemovePage(removed); err != nil {
		return fmt.Errorf("delete page %d: %w", removed, err)
	}
	if err := s.reload(ctx, ed.Bytes()); err != nil {
		return err
	}
	s.store.Replace(renumberAfterDelete(s.store.All(), removed))
	s.dropStaleSelection()
	s.logger.Info("page deleted", observability.Int("page", removed), observability.Int("pages", s.pages))
	return s.sync(ctx)
}

func renumberAfterDelete(anns []annotation.Annotation, removed int) []annotation.Annotation {
	out := make([]annotation.Annotation, 0, len(anns))
	for _, a := range anns {
		b := a.Base()
		switch {
		case b.Page == removed:
			continue
		case b.Page > removed:
			b.Page--
		}
		out = append(out, a)
	}
	return out
}

// AddBlankPage appends a US Letter page to the document.
func (s *Session) AddBlankPage(ctx context.Context) error {
	ed, err := s.editor()
	if err != nil {
		return err
	}
	if err := ed.AddBlankPage(BlankPageWidth, BlankPageHeight); err != nil {
		return fmt.Errorf("add blank page: %w", err)
	}
	s.logger.Info("blank page added", observability.Int("pages", s.pages+1))
	return s.reload(ctx, ed.Bytes())
}

// Properties returns the document info entries (Title, Author, ...).
func (s *Session) Properties() (map[string]string, error) {
	ed, err := s.editor()
	if err != nil {
		return nil, err
	}
	return ed.Properties()
}

// SetProperties writes document info entries. Pages are untouched, so
// annotations and history are kept.
func (s *Session) SetProperties(props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	ed, err := s.editor()
	if err != nil {
		return err
	}
	if err := ed.SetProperties(props); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	s.logger.Info("properties updated", observability.Int("entries", len(props)))
	return s.swap(ed.Bytes())
}

// PageText returns the plain text of page.
func (s *Session) PageText(page int) (string, error) {
	if s.doc == nil {
		return "", ErrNoDocument
	}
	if page < 1 || page > s.pages {
		return "", ErrPageOutOfRange
	}
	return s.doc.Text(page)
}

// Recognize runs optical recognition over the visible page. A nil engine
// uses ocr.DefaultEngine. Canceling ctx abandons the job.
func (s *Session) Recognize(ctx context.Context, engine ocr.Engine, progress ocr.ProgressFunc, opts ...ocr.InputOption) (ocr.Result, error) {
	if s.doc == nil {
		return ocr.Result{}, ErrNoDocument
	}
	img, err := s.doc.Rasterize(ctx, s.page, RecognizeZoom)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("rasterize page %d: %w", s.page, err)
	}
	opts = append([]ocr.InputOption{ocr.WithDPI(int(72 * RecognizeZoom))}, opts...)
	res, err := ocr.RecognizeImage(ctx, engine, s.page, img, progress, opts...)
	if err != nil {
		s.logger.Warn("recognition failed", observability.Int("page", s.page), observability.Error("error", err))
		return ocr.Result{}, err
	}
	return res, nil
}

// RecognizeAll runs optical recognition over every page, in page order.
func (s *Session) RecognizeAll(ctx context.Context, engine ocr.Engine, progress ocr.ProgressFunc, opts ...ocr.InputOption) ([]ocr.Result, error) {
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	opts = append([]ocr.InputOption{ocr.WithDPI(int(72 * RecognizeZoom))}, opts...)
	inputs := make([]ocr.Input, 0, s.pages)
	for page := 1; page <= s.pages; page++ {
		img, err := s.doc.Rasterize(ctx, page, RecognizeZoom)
		if err != nil {
			return nil, fmt.Errorf("rasterize page %d: %w", page, err)
		}
		in, err := ocr.InputFromImage(page, img, opts...)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	results, err := ocr.RecognizePages(ctx, engine, inputs, progress, s.tracer)
	if err != nil {
		s.logger.Warn("recognition failed", observability.Int("pages", s.pages), observability.Error("error", err))
		return nil, err
	}
	for i := range results {
		if results[i].Page == 0 && i < len(inputs) {
			results[i].Page = inputs[i].Page
		}
	}
	return results, nil
}
