// Command pdfmark flattens a JSON annotation file into a PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/export"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/pdfedit"
	"github.com/wudi/pdfmark/recovery"
)

type options struct {
	in          string
	annotations string
	out         string
	strict      bool
	verbose     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfmark: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfmark: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfmark -in doc.pdf -annotations marks.json -out annotated.pdf\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.in, "in", "", "Source PDF")
	flag.StringVar(&opts.annotations, "annotations", "", "JSON array of annotations")
	flag.StringVar(&opts.out, "out", "annotated.pdf", "Destination PDF")
	flag.BoolVar(&opts.strict, "strict", false, "Stop at the first annotation that cannot be drawn")
	flag.BoolVar(&opts.verbose, "v", false, "Log each page as it is drawn")
	flag.Parse()

	if opts.in == "" || opts.annotations == "" {
		flag.Usage()
		return options{}, fmt.Errorf("-in and -annotations are required")
	}
	return opts, nil
}

func run(opts options) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	pdf, err := os.ReadFile(opts.in)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(opts.annotations)
	if err != nil {
		return err
	}
	anns, err := annotation.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("read annotations: %w", err)
	}

	ed, err := pdfedit.Load(pdf)
	if err != nil {
		return err
	}
	layer := ed.NewLayer()
	exportOpts := []export.Option{export.WithLogger(logger)}
	if opts.strict {
		exportOpts = append(exportOpts, export.WithRecovery(recovery.NewStrictStrategy()))
	}
	report, err := export.New(exportOpts...).Export(context.Background(), anns, layer)
	if err != nil {
		return err
	}
	if err := ed.Apply(layer); err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, ed.Bytes(), 0o644); err != nil {
		return err
	}

	fmt.Printf("%s: %d annotations drawn on %d pages\n", opts.out, report.Drawn, report.Pages)
	for _, f := range report.Failures {
		fmt.Printf("  page %d, %s: %v\n", f.Page, f.AnnotationID, f.Err)
	}
	return nil
}
