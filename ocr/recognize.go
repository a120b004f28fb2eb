package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/wudi/pdfmark/observability"
)

type outcome struct {
	res Result
	err error
}

// RecognizeImage runs engine over one page raster. Progress moves from
// pending through running to a terminal state. Canceling ctx returns at once
// with ctx.Err(); the engine call is abandoned.
func RecognizeImage(ctx context.Context, engine Engine, page int, img image.Image, progress ProgressFunc, opts ...InputOption) (Result, error) {
	report := func(s JobState, p float64, msg string) {
		if progress != nil {
			progress(JobStatus{State: s, Progress: p, Message: msg})
		}
	}
	report(JobStatePending, 0, "")
	if engine == nil {
		engine = DefaultEngine()
	}
	in, err := InputFromImage(page, img, opts...)
	if err != nil {
		report(JobStateFailed, 0, err.Error())
		return Result{}, err
	}

	report(JobStateRunning, 0.1, fmt.Sprintf("recognizing page %d", page))
	done := make(chan outcome, 1)
	go func() {
		res, err := engine.Recognize(ctx, in)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		report(JobStateCanceled, 0, ctx.Err().Error())
		return Result{}, ctx.Err()
	case o := <-done:
		if o.err != nil {
			report(JobStateFailed, 1, o.err.Error())
			return Result{}, fmt.Errorf("%s: recognize page %d: %w", engine.Name(), page, o.err)
		}
		if o.res.Page == 0 {
			o.res.Page = page
		}
		report(JobStateSucceeded, 1, "")
		return o.res, nil
	}
}

// RecognizePages runs engine over several inputs, batching when the engine
// supports it. Progress advances once per finished input.
func RecognizePages(ctx context.Context, engine Engine, inputs []Input, progress ProgressFunc, tracer observability.Tracer) ([]Result, error) {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	ctx, span := tracer.StartSpan(ctx, observability.SpanRecognize)
	defer span.Finish()
	span.SetTag("inputs", len(inputs))

	report := func(s JobState, p float64) {
		if progress != nil {
			progress(JobStatus{State: s, Progress: p})
		}
	}
	if engine == nil {
		engine = DefaultEngine()
	}
	report(JobStateRunning, 0)
	if b, ok := engine.(BatchEngine); ok {
		res, err := b.RecognizeBatch(ctx, inputs)
		if err != nil {
			span.SetError(err)
			report(stateFor(ctx), 1)
			return nil, err
		}
		report(JobStateSucceeded, 1)
		return res, nil
	}
	results := make([]Result, 0, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			report(JobStateCanceled, float64(i)/float64(len(inputs)))
			return nil, err
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			span.SetError(err)
			report(stateFor(ctx), float64(i)/float64(len(inputs)))
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
		report(JobStateRunning, float64(i+1)/float64(len(inputs)))
	}
	report(JobStateSucceeded, 1)
	return results, nil
}

func stateFor(ctx context.Context) JobState {
	if ctx.Err() != nil {
		return JobStateCanceled
	}
	return JobStateFailed
}
