// Package server exposes annotation sessions over HTTP. Each uploaded PDF
// gets its own session; overlay views are streamed over a websocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wudi/pdfmark/autosave"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/ocr"
	"github.com/wudi/pdfmark/session"
)

// DefaultMaxUpload caps request bodies.
const DefaultMaxUpload = 64 << 20

// Options configures a Server.
type Options struct {
	// NewSession builds an unopened session for each upload. Required.
	NewSession func() *session.Session

	// Autosave is optional; when set, annotations are saved after each
	// change and recovered when the same file is uploaded again.
	Autosave       autosave.Store
	AutosaveWindow time.Duration

	// OCR engine used by the recognize endpoint; nil uses ocr.DefaultEngine.
	OCR ocr.Engine

	MaxUpload int64
	Logger    observability.Logger
}

// Server routes requests to document sessions.
type Server struct {
	router   *mux.Router
	manager  *Manager
	handlers *Handlers
	logger   observability.Logger
	http     *http.Server
}

// New builds the router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	manager := newManager(opts.NewSession, opts.Autosave, opts.AutosaveWindow, logger)
	h := &Handlers{manager: manager, ocr: opts.OCR, maxBytes: opts.MaxUpload, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/ws/{id}", h.HandleWebSocket)

	api := r.PathPrefix("/api/documents").Subrouter()
	api.HandleFunc("", h.CreateDocument).Methods("POST")
	api.HandleFunc("/{id}", h.GetDocument).Methods("GET")
	api.HandleFunc("/{id}", h.DeleteDocument).Methods("DELETE")
	api.HandleFunc("/{id}/overlay", h.GetOverlay).Methods("GET")
	api.HandleFunc("/{id}/preview.png", h.GetPreview).Methods("GET")
	api.HandleFunc("/{id}/page", h.SetPage).Methods("POST")
	api.HandleFunc("/{id}/zoom", h.SetZoom).Methods("POST")
	api.HandleFunc("/{id}/settings", h.UpdateSettings).Methods("POST")
	api.HandleFunc("/{id}/annotations", h.ListAnnotations).Methods("GET")
	api.HandleFunc("/{id}/annotations", h.CreateAnnotation).Methods("POST")
	api.HandleFunc("/{id}/annotations/{annId}", h.UpdateAnnotation).Methods("PATCH")
	api.HandleFunc("/{id}/annotations/{annId}", h.DeleteAnnotation).Methods("DELETE")
	api.HandleFunc("/{id}/select", h.Select).Methods("POST")
	api.HandleFunc("/{id}/erase", h.Erase).Methods("POST")
	api.HandleFunc("/{id}/undo", h.Undo).Methods("POST")
	api.HandleFunc("/{id}/redo", h.Redo).Methods("POST")
	api.HandleFunc("/{id}/signature", h.AddSignature).Methods("POST")
	api.HandleFunc("/{id}/pages/rotate", h.RotatePage).Methods("POST")
	api.HandleFunc("/{id}/pages/blank", h.AddBlankPage).Methods("POST")
	api.HandleFunc("/{id}/pages/current", h.DeletePage).Methods("DELETE")
	api.HandleFunc("/{id}/text", h.GetText).Methods("GET")
	api.HandleFunc("/{id}/ocr", h.Recognize).Methods("POST")
	api.HandleFunc("/{id}/properties", h.GetProperties).Methods("GET")
	api.HandleFunc("/{id}/properties", h.UpdateProperties).Methods("PUT")
	api.HandleFunc("/{id}/export", h.Export).Methods("GET")

	return &Server{router: r, manager: manager, handlers: h, logger: logger}
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting annotation server", observability.String("addr", addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.manager.CloseAll()
	return err
}

// corsMiddleware answers preflight requests before method-restricted routes
// can reject them.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
