// Package ocr plugs optical recognition engines into page annotation: a page
// raster goes in, recognized text with word boxes comes out. Engines may be
// local libraries or remote services; callers only see Engine.
package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region is a rectangle in image pixels, origin top-left.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is one image submitted for recognition.
type Input struct {
	ID     string
	Image  []byte
	Format ImageFormat
	// Page is the 1-based document page the raster was taken from.
	Page int
	// DPI of the raster; zero means unknown.
	DPI       int
	Languages []string
	// Region limits recognition to part of the image; nil means all of it.
	Region *Region
	// Metadata carries engine specific variables (Tesseract "tessedit_*").
	Metadata map[string]string
}

type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the output for one Input.
type Result struct {
	InputID   string
	Page      int
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Words flattens every recognized word of r.
func (r Result) Words() []TextWord {
	var out []TextWord
	for _, b := range r.Blocks {
		for _, l := range b.Lines {
			out = append(out, l.Words...)
		}
	}
	return out
}

// Engine recognizes one image at a time.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine amortizes setup across several images.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

// JobState is the lifecycle of a recognition run.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// JobStatus reports progress in [0, 1].
type JobStatus struct {
	State    JobState
	Message  string
	Progress float64
}

// Done reports whether the run reached a terminal state.
func (s JobStatus) Done() bool {
	switch s.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// ProgressFunc receives status updates. It may be nil.
type ProgressFunc func(JobStatus)
