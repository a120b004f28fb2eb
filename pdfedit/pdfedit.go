// Package pdfedit mutates PDF documents: page rotation, removal and
// insertion, metadata, and stamping an annotation layer onto pages.
package pdfedit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var configOnce sync.Once

func newConfig() *model.Configuration {
	configOnce.Do(func() {
		// Keep pdfcpu away from the user's config directory.
		model.ConfigPath = "disable"
	})
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Editor holds the current bytes of a document. Each mutation rewrites them.
type Editor struct {
	conf *model.Configuration
	data []byte
	dims []types.Dim
}

// Load validates data and reads its page sizes.
func Load(data []byte) (*Editor, error) {
	e := &Editor{conf: newConfig()}
	if err := e.reset(data); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Editor) reset(data []byte) error {
	if len(data) == 0 {
		return errors.New("invalid pdf: empty document")
	}
	dims, err := api.PageDims(bytes.NewReader(data), e.conf)
	if err != nil {
		return fmt.Errorf("read page sizes: %w", err)
	}
	if len(dims) == 0 {
		return errors.New("invalid pdf: no pages")
	}
	e.data = data
	e.dims = dims
	return nil
}

// Bytes returns the current encoding of the document.
func (e *Editor) Bytes() []byte { return append([]byte(nil), e.data...) }

func (e *Editor) PageCount() int { return len(e.dims) }

// PageSize returns the size of page in points.
func (e *Editor) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > len(e.dims) {
		return 0, 0, fmt.Errorf("page %d out of range [1, %d]", page, len(e.dims))
	}
	d := e.dims[page-1]
	return d.Width, d.Height, nil
}

func (e *Editor) rewrite(op string, fn func(rs io.ReadSeeker, w io.Writer) error) error {
	var out bytes.Buffer
	if err := fn(bytes.NewReader(e.data), &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return e.reset(out.Bytes())
}

// Rotate turns page clockwise by degrees, a multiple of 90.
func (e *Editor) Rotate(page, degrees int) error {
	if degrees%90 != 0 {
		return fmt.Errorf("rotate: %d is not a multiple of 90", degrees)
	}
	if _, _, err := e.PageSize(page); err != nil {
		return err
	}
	return e.rewrite("rotate", func(rs io.ReadSeeker, w io.Writer) error {
		return api.Rotate(rs, w, degrees, []string{strconv.Itoa(page)}, e.conf)
	})
}

// RemovePage deletes page. The last remaining page cannot be removed.
func (e *Editor) RemovePage(page int) error {
	if _, _, err := e.PageSize(page); err != nil {
		return err
	}
	if len(e.dims) == 1 {
		return errors.New("remove page: document has a single page")
	}
	return e.rewrite("remove page", func(rs io.ReadSeeker, w io.Writer) error {
		return api.RemovePages(rs, w, []string{strconv.Itoa(page)}, e.conf)
	})
}

// AddBlankPage appends an empty page of w x h points.
func (e *Editor) AddBlankPage(w, h float64) error {
	blank, err := NewBlankDocument(1, w, h)
	if err != nil {
		return err
	}
	return e.rewrite("add page", func(rs io.ReadSeeker, out io.Writer) error {
		return api.MergeRaw([]io.ReadSeeker{rs, bytes.NewReader(blank)}, out, false, e.conf)
	})
}

// SetProperties writes document info entries (Title, Author, ...).
func (e *Editor) SetProperties(props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	return e.rewrite("set properties", func(rs io.ReadSeeker, w io.Writer) error {
		return api.AddProperties(rs, w, props, e.conf)
	})
}

// Properties returns the document info entries.
func (e *Editor) Properties() (map[string]string, error) {
	props, err := api.Properties(bytes.NewReader(e.data), e.conf)
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	return props, nil
}
