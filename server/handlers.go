package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wudi/pdfmark/annotation"
	"github.com/wudi/pdfmark/coords"
	"github.com/wudi/pdfmark/observability"
	"github.com/wudi/pdfmark/ocr"
	"github.com/wudi/pdfmark/pdfedit"
	"github.com/wudi/pdfmark/raster"
	"github.com/wudi/pdfmark/session"
)

// Handlers serves the REST and websocket surface over the Manager.
type Handlers struct {
	manager  *Manager
	ocr      ocr.Engine
	maxBytes int64
	logger   observability.Logger
}

// DocumentInfo is returned when a document is opened.
type DocumentInfo struct {
	ID        string `json:"id"`
	Pages     int    `json:"pages"`
	Recovered int    `json:"recovered"`
}

// State summarizes a session.
type State struct {
	ID          string  `json:"id"`
	Page        int     `json:"page"`
	Pages       int     `json:"pages"`
	Zoom        float64 `json:"zoom"`
	Tool        string  `json:"tool"`
	Color       string  `json:"color"`
	BrushSize   float64 `json:"brushSize"`
	Selected    string  `json:"selected,omitempty"`
	Annotations int     `json:"annotations"`
	CanUndo     bool    `json:"canUndo"`
	CanRedo     bool    `json:"canRedo"`
}

func stateOf(doc *Document) State {
	s := doc.session
	return State{
		ID:          doc.ID,
		Page:        s.Page(),
		Pages:       s.PageCount(),
		Zoom:        s.Zoom(),
		Tool:        string(s.Tool()),
		Color:       s.Color(),
		BrushSize:   s.BrushSize(),
		Selected:    s.Selected(),
		Annotations: len(s.Annotations()),
		CanUndo:     s.CanUndo(),
		CanRedo:     s.CanRedo(),
	}
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p pointRequest) point() coords.Point { return coords.Point{X: p.X, Y: p.Y} }

type pageRequest struct {
	Page      int    `json:"page"`
	Direction string `json:"direction"`
}

type zoomRequest struct {
	Direction string   `json:"direction"`
	Zoom      *float64 `json:"zoom"`
}

type settingsRequest struct {
	Tool      *string  `json:"tool"`
	Color     *string  `json:"color"`
	BrushSize *float64 `json:"brushSize"`
	TextSize  *float64 `json:"textSize"`
}

type selectRequest struct {
	ID *string  `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

// patchRequest edits one annotation. Deltas and sizes are viewport pixels.
type patchRequest struct {
	DX     float64  `json:"dx"`
	DY     float64  `json:"dy"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Text   *string  `json:"text"`
	Value  *string  `json:"value"`
}

type signatureRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

type changedResponse struct {
	Changed bool  `json:"changed"`
	State   State `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	var le *session.LoadError
	switch {
	case errors.As(err, &le):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrPageOutOfRange), errors.Is(err, session.ErrDuplicateID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrLastPage):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoEditor):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	var le *session.LoadError
	if errors.As(err, &le) {
		msg = le.Message()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", observability.Error("error", err))
	}
	http.Error(w, msg, status)
}

func (h *Handlers) document(w http.ResponseWriter, r *http.Request) (*Document, bool) {
	doc, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

// read runs fn with the document locked.
func (h *Handlers) read(w http.ResponseWriter, r *http.Request, fn func(doc *Document) error) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if err := fn(doc); err != nil {
		h.fail(w, err)
	}
}

// change runs an operation that may mutate the store, autosaves, and replies
// with the resulting state.
func (h *Handlers) change(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, s *session.Session) (bool, error)) {
	h.read(w, r, func(doc *Document) error {
		changed, err := fn(r.Context(), doc.session)
		if err != nil {
			return err
		}
		if changed {
			h.manager.save(r.Context(), doc)
		}
		writeJSON(w, http.StatusOK, changedResponse{Changed: changed, State: stateOf(doc)})
		return nil
	})
}

// restructure runs an operation that rewrites the document bytes. The
// autosave moves to a key derived from the new bytes.
func (h *Handlers) restructure(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, s *session.Session) error) {
	h.read(w, r, func(doc *Document) error {
		if err := fn(r.Context(), doc.session); err != nil {
			return err
		}
		h.manager.rekey(r.Context(), doc)
		writeJSON(w, http.StatusOK, changedResponse{Changed: true, State: stateOf(doc)})
		return nil
	})
}

// CreateDocument opens the PDF in the request body.
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		http.Error(w, "Failed to read document", http.StatusRequestEntityTooLarge)
		return
	}
	doc, recovered, err := h.manager.Open(r.Context(), data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DocumentInfo{ID: doc.ID, Pages: doc.session.PageCount(), Recovered: recovered})
}

func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		writeJSON(w, http.StatusOK, stateOf(doc))
		return nil
	})
}

func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(mux.Vars(r)["id"]); err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetOverlay(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		writeJSON(w, http.StatusOK, doc.session.View())
		return nil
	})
}

func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		img, err := raster.Preview(doc.session.View())
		if err != nil {
			return err
		}
		if v := r.URL.Query().Get("width"); v != "" {
			width, err := strconv.Atoi(v)
			if err != nil || width <= 0 {
				http.Error(w, "Invalid width", http.StatusBadRequest)
				return nil
			}
			b := img.Bounds()
			if b.Dx() > 0 && width < b.Dx() {
				img = raster.Resize(img, width, max(1, b.Dy()*width/b.Dx()))
			}
		}
		data, err := raster.EncodePNG(img)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
		return nil
	})
}

func (h *Handlers) SetPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		switch req.Direction {
		case "next":
			return s.NextPage(ctx)
		case "prev":
			return s.PrevPage(ctx)
		default:
			return s.GoToPage(ctx, req.Page)
		}
	})
}

func (h *Handlers) SetZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		switch {
		case req.Zoom != nil:
			return s.SetZoom(ctx, *req.Zoom)
		case req.Direction == "in":
			return s.ZoomIn(ctx)
		case req.Direction == "out":
			return s.ZoomOut(ctx)
		}
		return false, nil
	})
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.read(w, r, func(doc *Document) error {
		s := doc.session
		if req.Tool != nil {
			s.SetTool(session.Tool(*req.Tool))
		}
		if req.Color != nil && !s.SetColor(*req.Color) {
			http.Error(w, "Invalid color", http.StatusBadRequest)
			return nil
		}
		if req.BrushSize != nil && !s.SetBrushSize(*req.BrushSize) {
			http.Error(w, "Invalid brush size", http.StatusBadRequest)
			return nil
		}
		if req.TextSize != nil && !s.SetTextSize(*req.TextSize) {
			http.Error(w, "Invalid text size", http.StatusBadRequest)
			return nil
		}
		writeJSON(w, http.StatusOK, stateOf(doc))
		return nil
	})
}

func (h *Handlers) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		data, err := annotation.Marshal(doc.session.Annotations())
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return nil
	})
}

// CreateAnnotation adds one typed annotation in document units.
func (h *Handlers) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		http.Error(w, "Failed to read annotation", http.StatusRequestEntityTooLarge)
		return
	}
	a, err := annotation.Decode(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.read(w, r, func(doc *Document) error {
		if err := doc.session.Add(r.Context(), a); err != nil {
			if errors.Is(err, session.ErrNoDocument) {
				return err
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil
		}
		h.manager.save(r.Context(), doc)
		writeJSON(w, http.StatusCreated, a)
		return nil
	})
}

func (h *Handlers) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	id := mux.Vars(r)["annId"]
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		changed := false
		apply := func(ok bool, err error) error {
			changed = changed || ok
			return err
		}
		if req.DX != 0 || req.DY != 0 {
			if err := apply(s.Move(ctx, id, req.DX, req.DY)); err != nil {
				return changed, err
			}
		}
		if req.Width != nil && req.Height != nil {
			if err := apply(s.Resize(ctx, id, *req.Width, *req.Height)); err != nil {
				return changed, err
			}
		}
		if req.Text != nil {
			if err := apply(s.EditText(ctx, id, *req.Text)); err != nil {
				return changed, err
			}
		}
		if req.Value != nil {
			if err := apply(s.SetFormValue(ctx, id, *req.Value)); err != nil {
				return changed, err
			}
		}
		return changed, nil
	})
}

func (h *Handlers) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["annId"]
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		return s.Delete(ctx, id)
	})
}

func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.read(w, r, func(doc *Document) error {
		var err error
		switch {
		case req.ID != nil:
			_, err = doc.session.Select(r.Context(), *req.ID)
		case req.X != nil && req.Y != nil:
			_, err = doc.session.SelectAt(r.Context(), coords.Point{X: *req.X, Y: *req.Y})
		}
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, stateOf(doc))
		return nil
	})
}

func (h *Handlers) Erase(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		return s.EraseAt(ctx, req.point())
	})
}

func (h *Handlers) Undo(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		return s.Undo(ctx)
	})
}

func (h *Handlers) Redo(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, func(ctx context.Context, s *session.Session) (bool, error) {
		return s.Redo(ctx)
	})
}

// AddSignature renders typed text as a signature centered at a viewport point.
func (h *Handlers) AddSignature(w http.ResponseWriter, r *http.Request) {
	var req signatureRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.read(w, r, func(doc *Document) error {
		a, err := doc.session.AddTypedSignature(r.Context(), coords.Point{X: req.X, Y: req.Y}, req.Text)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil
		}
		h.manager.save(r.Context(), doc)
		writeJSON(w, http.StatusCreated, a)
		return nil
	})
}

func (h *Handlers) RotatePage(w http.ResponseWriter, r *http.Request) {
	h.restructure(w, r, func(ctx context.Context, s *session.Session) error {
		return s.RotatePage(ctx)
	})
}

func (h *Handlers) AddBlankPage(w http.ResponseWriter, r *http.Request) {
	h.restructure(w, r, func(ctx context.Context, s *session.Session) error {
		return s.AddBlankPage(ctx)
	})
}

func (h *Handlers) DeletePage(w http.ResponseWriter, r *http.Request) {
	h.restructure(w, r, func(ctx context.Context, s *session.Session) error {
		return s.DeletePage(ctx)
	})
}

func (h *Handlers) GetText(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		page := doc.session.Page()
		if v := r.URL.Query().Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "Invalid page", http.StatusBadRequest)
				return nil
			}
			page = n
		}
		text, err := doc.session.PageText(page)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"page": page, "text": text})
		return nil
	})
}

// Recognize runs OCR over the visible page.
// recognition is the OCR output of one page.
type recognition struct {
	Page  int           `json:"page"`
	Text  string        `json:"text"`
	Words []ocr.TextWord `json:"words"`
}

func recognitionOf(res ocr.Result) recognition {
	return recognition{Page: res.Page, Text: res.PlainText, Words: res.Words()}
}

// recognizeOptions reads OCR hints from the query: lang (comma separated),
// psm, whitelist and region ("x,y,w,h" in raster pixels).
func recognizeOptions(r *http.Request, docID string) ([]ocr.InputOption, error) {
	q := r.URL.Query()
	opts := []ocr.InputOption{ocr.WithMetadata(map[string]string{"document": docID})}
	if v := q.Get("lang"); v != "" {
		opts = append(opts, ocr.WithLanguages(strings.Split(v, ",")...))
	}
	if v := q.Get("psm"); v != "" {
		mode, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid psm %q", v)
		}
		opts = append(opts, ocr.WithTesseractPSM(mode))
	}
	if v := q.Get("whitelist"); v != "" {
		opts = append(opts, ocr.WithTesseractWhitelist(v))
	}
	if v := q.Get("region"); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid region %q", v)
		}
		var n [4]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid region %q", v)
			}
			n[i] = f
		}
		opts = append(opts, ocr.WithRegion(ocr.Region{X: n[0], Y: n[1], Width: n[2], Height: n[3]}))
	}
	return opts, nil
}

// Recognize runs OCR over the visible page, or every page with ?all=true.
func (h *Handlers) Recognize(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	opts, err := recognizeOptions(r, mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.read(w, r, func(doc *Document) error {
		var last ocr.JobStatus
		progress := func(s ocr.JobStatus) { last = s }
		var pages []recognition
		if all {
			results, err := doc.session.RecognizeAll(r.Context(), h.ocr, progress, opts...)
			if err != nil {
				return err
			}
			for _, res := range results {
				pages = append(pages, recognitionOf(res))
			}
		} else {
			res, err := doc.session.Recognize(r.Context(), h.ocr, progress, opts...)
			if err != nil {
				return err
			}
			pages = append(pages, recognitionOf(res))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": last, "pages": pages})
		return nil
	})
}

func (h *Handlers) GetProperties(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		props, err := doc.session.Properties()
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, props)
		return nil
	})
}

// UpdateProperties merges document info entries into the PDF.
func (h *Handlers) UpdateProperties(w http.ResponseWriter, r *http.Request) {
	var props map[string]string
	if err := decodeJSON(r, &props); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.read(w, r, func(doc *Document) error {
		if err := doc.session.SetProperties(props); err != nil {
			return err
		}
		h.manager.rekey(r.Context(), doc)
		merged, err := doc.session.Properties()
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, merged)
		return nil
	})
}

// Export returns the document with every annotation drawn onto its pages.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(doc *Document) error {
		ed, err := pdfedit.Load(doc.session.Bytes())
		if err != nil {
			return err
		}
		layer := ed.NewLayer()
		rep, err := doc.session.Export(r.Context(), layer)
		if err != nil {
			return err
		}
		if err := ed.Apply(layer); err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="annotated.pdf"`)
		w.Header().Set("X-Annotations-Drawn", strconv.Itoa(rep.Drawn))
		w.Header().Set("X-Annotations-Failed", strconv.Itoa(len(rep.Failures)))
		w.Write(ed.Bytes())
		return nil
	})
}

// HandleWebSocket streams overlay views of a document.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.document(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", observability.Error("error", err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !doc.hub.register(c) {
		conn.Close()
		return
	}
	doc.mu.Lock()
	view := doc.session.View()
	doc.mu.Unlock()
	doc.hub.sendTo(c, encodeView(view))

	go doc.hub.writePump(c)
	go doc.hub.readPump(c)
}
