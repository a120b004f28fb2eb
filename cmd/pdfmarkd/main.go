// Command pdfmarkd serves annotation sessions over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wudi/pdfmark/autosave"
	"github.com/wudi/pdfmark/config"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/ocr/tesseract"
	"github.com/wudi/pdfmark/pdfedit"
	"github.com/wudi/pdfmark/render"
	"github.com/wudi/pdfmark/server"
	"github.com/wudi/pdfmark/session"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file with PDFMARK_* settings")
	jsonLogs := flag.Bool("json", false, "Write logs as JSON")
	flag.Parse()

	if err := run(*envFile, *jsonLogs); err != nil {
		fmt.Fprintf(os.Stderr, "pdfmarkd: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string, jsonLogs bool) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	logger := observability.NewSlogLogger(slog.New(handler))

	store, closeStore, err := openAutosave(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opener := session.OpenerFunc(func(data []byte) (session.Document, error) {
		return render.Open(data)
	})
	editor := func(data []byte) (session.PageEditor, error) {
		return pdfedit.Load(data)
	}

	srv := server.New(server.Options{
		NewSession: func() *session.Session {
			return session.New(opener,
				session.WithLogger(logger),
				session.WithZoomRange(cfg.Zoom),
				session.WithHistoryLimit(cfg.HistoryLimit),
				session.WithBrushSize(cfg.BrushSize),
				session.WithEditor(editor),
			)
		},
		Autosave:       store,
		AutosaveWindow: cfg.AutosaveWindow,
		OCR:            tesseract.New(cfg.OCRLanguages...),
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Addr) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		logger.Info("shutting down", observability.String("signal", s.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// openAutosave picks the Postgres store when a DSN is set, else the file
// store when a directory is set. A nil store disables autosave.
func openAutosave(cfg config.Config) (autosave.Store, func(), error) {
	switch {
	case cfg.AutosaveDSN != "":
		pg, err := autosave.NewPostgresStore(cfg.AutosaveDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("autosave: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	case cfg.AutosaveDir != "":
		fs, err := autosave.NewFileStore(cfg.AutosaveDir)
		if err != nil {
			return nil, nil, fmt.Errorf("autosave: %w", err)
		}
		return fs, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
