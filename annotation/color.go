package annotation

import (
	"image/color"
	"strconv"
	"strings"
)

// ParseColor decodes "#rrggbb" (or "#rgb") into an opaque RGBA value.
func ParseColor(hex string) (color.RGBA, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

// ColorOr returns hex when it parses, otherwise fallback.
func ColorOr(hex, fallback string) string {
	if _, ok := ParseColor(hex); ok {
		return hex
	}
	return fallback
}

// Defaults for fields a record may leave empty.
const (
	DefaultColor       = "#000000"
	DefaultStrokeWidth = 2.0
	DefaultTextSize    = 12.0
	HighlightOpacity   = 0.35
)

// DefaultColorFor returns the fallback color of records of type t.
func DefaultColorFor(t Type) string {
	switch t {
	case TypeHighlight:
		return "#ffff00"
	case TypeStickyNote:
		return "#ffd54f"
	case TypeStamp:
		return "#d32f2f"
	default:
		return DefaultColor
	}
}
