package raster

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/tdewolff/canvas"
	"golang.org/x/image/font/gofont/goregular"
)

// ptPerMM converts canvas millimetres to font points.
const ptPerMM = 72 / 25.4

var (
	fontOnce   sync.Once
	fontFamily *canvas.FontFamily
	fontErr    error
)

// Font returns the shared Go Regular family.
func Font() (*canvas.FontFamily, error) {
	fontOnce.Do(func() {
		ff := canvas.NewFontFamily("goregular")
		if err := ff.LoadFont(goregular.TTF, 0, canvas.FontRegular); err != nil {
			fontErr = fmt.Errorf("load go regular: %w", err)
			return
		}
		fontFamily = ff
	})
	return fontFamily, fontErr
}

// Face returns a regular face whose em height is size canvas units.
func Face(size float64, col color.Color) (*canvas.FontFace, error) {
	ff, err := Font()
	if err != nil {
		return nil, err
	}
	return ff.Face(size*ptPerMM, col, canvas.FontRegular, canvas.FontNormal), nil
}
