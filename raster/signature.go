package raster

import (
	"errors"
	"image/color"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/wudi/pdfmark/annotation"
)

// SignatureOptions controls TypedSignature.
type SignatureOptions struct {
	Width    int
	Height   int
	FontSize float64
	Color    string
}

// DefaultSignatureOptions returns a 300x100 canvas with 30px black text.
func DefaultSignatureOptions() SignatureOptions {
	return SignatureOptions{Width: 300, Height: 100, FontSize: 30, Color: annotation.DefaultColor}
}

// TypedSignature renders text centered on a transparent canvas and returns
// PNG bytes suitable for a signature annotation.
func TypedSignature(text string, opts SignatureOptions) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("signature text empty")
	}
	def := DefaultSignatureOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.FontSize <= 0 {
		opts.FontSize = def.FontSize
	}
	col, ok := annotation.ParseColor(opts.Color)
	if !ok {
		col = color.RGBA{A: 0xff}
	}

	// One canvas unit per output pixel.
	w, h := float64(opts.Width), float64(opts.Height)
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	face, err := Face(opts.FontSize, col)
	if err != nil {
		return nil, err
	}
	ctx.DrawText(w/2, h/2, canvas.NewTextLine(face, text, canvas.Center))

	img := rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace)
	return EncodePNG(img)
}
