package ocr

import (
	"fmt"
	"image"
	"strconv"

	"github.com/wudi/pdfmark/raster"
)

// InputOption mutates an OCR input built from a page raster.
type InputOption func(*Input)

func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion limits recognition; an empty region clears the limit.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata copies metadata onto the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

func setMeta(in *Input, k, v string) {
	if in.Metadata == nil {
		in.Metadata = make(map[string]string)
	}
	in.Metadata[k] = v
}

// WithTesseractPSM sets the Tesseract page segmentation mode.
func WithTesseractPSM(mode int) InputOption {
	return func(in *Input) { setMeta(in, "tessedit_pageseg_mode", strconv.Itoa(mode)) }
}

// WithTesseractWhitelist restricts recognition to chars.
func WithTesseractWhitelist(chars string) InputOption {
	return func(in *Input) { setMeta(in, "tessedit_char_whitelist", chars) }
}

// InputFromImage PNG-encodes a page raster. The ID is "page-<n>".
func InputFromImage(page int, img image.Image, opts ...InputOption) (Input, error) {
	data, err := raster.EncodePNG(img)
	if err != nil {
		return Input{}, fmt.Errorf("encode page %d: %w", page, err)
	}
	in := Input{
		ID:     fmt.Sprintf("page-%d", page),
		Image:  data,
		Format: ImageFormatPNG,
		Page:   page,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}
