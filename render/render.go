// Package render rasterizes PDF pages with MuPDF.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// BaseDPI is the resolution at zoom 1: one pixel per PDF point.
const BaseDPI = 72.0

// Document is an open PDF. Calls are serialized; MuPDF contexts are not
// safe for concurrent use.
type Document struct {
	mu    sync.Mutex
	doc   *fitz.Document
	pages int
}

// Open parses data. The error text is kept so callers can tell password
// protected and corrupt files apart.
func Open(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, errors.New("invalid pdf: empty document")
	}
	doc, err := fitz.NewFromMemory(data)
	switch {
	case errors.Is(err, fitz.ErrNeedsPassword):
		return nil, fmt.Errorf("open pdf: password required: %w", err)
	case errors.Is(err, fitz.ErrOpenDocument), errors.Is(err, fitz.ErrOpenMemory):
		return nil, fmt.Errorf("invalid pdf: %w", err)
	case err != nil:
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := doc.NumPage()
	if n < 1 {
		doc.Close()
		return nil, errors.New("invalid pdf: no pages")
	}
	return &Document{doc: doc, pages: n}, nil
}

func (d *Document) PageCount() int { return d.pages }

func (d *Document) check(page int) error {
	if page < 1 || page > d.pages {
		return fmt.Errorf("page %d out of range [1, %d]", page, d.pages)
	}
	return nil
}

// PageSize returns the page size in points.
func (d *Document) PageSize(page int) (float64, float64, error) {
	if err := d.check(page); err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.doc.Bound(page - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d bounds: %w", page, err)
	}
	return float64(b.Dx()), float64(b.Dy()), nil
}

// Rasterize draws page at zoom (1 == 72 DPI).
func (d *Document) Rasterize(ctx context.Context, page int, zoom float64) (image.Image, error) {
	if err := d.check(page); err != nil {
		return nil, err
	}
	if zoom <= 0 {
		zoom = 1
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.doc.ImageDPI(page-1, BaseDPI*zoom)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page, err)
	}
	return img, nil
}

// Text extracts the plain text of page.
func (d *Document) Text(page int) (string, error) {
	if err := d.check(page); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.doc.Text(page - 1)
	if err != nil {
		return "", fmt.Errorf("extract text page %d: %w", page, err)
	}
	return s, nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
