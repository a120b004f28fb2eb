package ocr

import (
	"context"
	"errors"
	"image"
	"reflect"
	"testing"
)

type fakeEngine struct {
	text  string
	err   error
	block chan struct{}
	seen  []Input
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	if f.block != nil {
		<-f.block
	}
	f.seen = append(f.seen, in)
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{InputID: in.ID, PlainText: f.text}, nil
}

func states(log []JobStatus) []JobState {
	out := make([]JobState, len(log))
	for i, s := range log {
		out[i] = s.State
	}
	return out
}

func TestInputFromImageAppliesOptions(t *testing.T) {
	region := Region{Width: 1, Height: 1}
	meta := map[string]string{"psm": "6"}
	in, err := InputFromImage(2, image.NewRGBA(image.Rect(0, 0, 4, 4)),
		WithLanguages("eng", "tur"), WithRegion(region), WithDPI(144), WithMetadata(meta), WithTesseractPSM(7))
	if err != nil {
		t.Fatalf("InputFromImage() error = %v", err)
	}
	if in.ID != "page-2" || in.Page != 2 || in.Format != ImageFormatPNG || len(in.Image) == 0 {
		t.Fatalf("unexpected input: %+v", in)
	}
	if !reflect.DeepEqual(in.Languages, []string{"eng", "tur"}) || in.DPI != 144 {
		t.Fatalf("options not applied: %+v", in)
	}
	if in.Region == nil || *in.Region != region {
		t.Fatalf("unexpected region: %#v", in.Region)
	}
	meta["psm"] = "1"
	if in.Metadata["psm"] != "6" || in.Metadata["tessedit_pageseg_mode"] != "7" {
		t.Fatalf("metadata not copied: %+v", in.Metadata)
	}
	WithRegion(Region{})(&in)
	if in.Region != nil {
		t.Fatalf("empty region should clear")
	}
}

func TestRecognizeImageReportsProgress(t *testing.T) {
	var log []JobStatus
	eng := &fakeEngine{text: "hello"}
	res, err := RecognizeImage(context.Background(), eng, 3, image.NewRGBA(image.Rect(0, 0, 2, 2)), func(s JobStatus) { log = append(log, s) })
	if err != nil {
		t.Fatalf("RecognizeImage() error = %v", err)
	}
	if res.PlainText != "hello" || res.Page != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []JobState{JobStatePending, JobStateRunning, JobStateSucceeded}
	if !reflect.DeepEqual(states(log), want) {
		t.Fatalf("progress states = %v, want %v", states(log), want)
	}
	if last := log[len(log)-1]; !last.Done() || last.Progress != 1 {
		t.Fatalf("final status = %+v", last)
	}
}

func TestRecognizeImageFailure(t *testing.T) {
	var last JobStatus
	_, err := RecognizeImage(context.Background(), &fakeEngine{err: errors.New("no traineddata")}, 1,
		image.NewRGBA(image.Rect(0, 0, 2, 2)), func(s JobStatus) { last = s })
	if err == nil || last.State != JobStateFailed {
		t.Fatalf("expected failure, got err=%v status=%+v", err, last)
	}
}

func TestRecognizeImageCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng := &fakeEngine{block: make(chan struct{})}
	defer close(eng.block)

	var log []JobStatus
	progress := func(s JobStatus) {
		log = append(log, s)
		if s.State == JobStateRunning {
			cancel()
		}
	}
	_, err := RecognizeImage(ctx, eng, 1, image.NewRGBA(image.Rect(0, 0, 2, 2)), progress)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RecognizeImage() error = %v, want context.Canceled", err)
	}
	if log[len(log)-1].State != JobStateCanceled {
		t.Fatalf("last state = %v", log[len(log)-1].State)
	}
}

func TestRecognizePagesSequential(t *testing.T) {
	eng := &fakeEngine{text: "x"}
	inputs := []Input{{ID: "page-1", Page: 1}, {ID: "page-2", Page: 2}}
	var progress []float64
	res, err := RecognizePages(context.Background(), eng, inputs, func(s JobStatus) { progress = append(progress, s.Progress) }, nil)
	if err != nil {
		t.Fatalf("RecognizePages() error = %v", err)
	}
	if len(res) != 2 || res[1].InputID != "page-2" {
		t.Fatalf("unexpected results: %+v", res)
	}
	if !reflect.DeepEqual(progress, []float64{0, 0.5, 1, 1}) {
		t.Fatalf("progress = %v", progress)
	}
}

func TestDefaultEngineFallsBackToNoop(t *testing.T) {
	prev := DefaultEngine()
	defer SetDefaultEngine(prev)
	SetDefaultEngine(nil)
	if DefaultEngine().Name() != "noop" {
		t.Fatalf("nil engine should reset to noop")
	}
}
