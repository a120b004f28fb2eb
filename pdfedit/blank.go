package pdfedit

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
)

// Letter is the default page size in points.
var Letter = [2]float64{612, 792}

// NewBlankDocument encodes a document of n empty w x h point pages.
func NewBlankDocument(n int, w, h float64) ([]byte, error) {
	if n < 1 {
		return nil, errors.New("blank document needs at least one page")
	}
	if w <= 0 || h <= 0 {
		w, h = Letter[0], Letter[1]
	}
	var buf bytes.Buffer
	wmm, hmm := w*mmPerPt, h*mmPerPt
	out := pdf.New(&buf, wmm, hmm, nil)
	for i := 0; i < n; i++ {
		if i > 0 {
			out.NewPage(wmm, hmm)
		}
		c := canvas.New(wmm, hmm)
		ctx := canvas.NewContext(c)
		ctx.SetFillColor(canvas.White)
		ctx.DrawPath(0, 0, canvas.Rectangle(wmm, hmm))
		c.RenderTo(out)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("encode blank document: %w", err)
	}
	return buf.Bytes(), nil
}
