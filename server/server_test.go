package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfmark/autosave"
	"github.com/wudi/pdfmark/ocr"
	"github.com/wudi/pdfmark/overlay"
	"github.com/wudi/pdfmark/pdfedit"
	"github.com/wudi/pdfmark/session"
)

// editorDoc serves page geometry from pdfcpu and blank rasters, so the
// tests need no native renderer.
type editorDoc struct{ e *pdfedit.Editor }

func (d editorDoc) PageCount() int { return d.e.PageCount() }
func (d editorDoc) PageSize(page int) (float64, float64, error) {
	return d.e.PageSize(page)
}
func (d editorDoc) Rasterize(ctx context.Context, page int, zoom float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 61, 79)), nil
}
func (d editorDoc) Text(page int) (string, error) { return "", nil }
func (d editorDoc) Close() error                  { return nil }

func openWithEditor(data []byte) (session.Document, error) {
	e, err := pdfedit.Load(data)
	if err != nil {
		return nil, err
	}
	return editorDoc{e}, nil
}

func loadEditor(data []byte) (session.PageEditor, error) { return pdfedit.Load(data) }

func newTestServer(t *testing.T, store autosave.Store) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, Options{Autosave: store})
}

func newTestServerWith(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	opts.NewSession = func() *session.Session {
		return session.New(session.OpenerFunc(openWithEditor), session.WithEditor(loadEditor))
	}
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Shutdown(context.Background())
	})
	return srv
}

func blankPDF(t *testing.T, pages int) []byte {
	t.Helper()
	data, err := pdfedit.NewBlankDocument(pages, 612, 792)
	require.NoError(t, err)
	return data
}

func upload(t *testing.T, srv *httptest.Server, data []byte) DocumentInfo {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/documents", "application/pdf", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info DocumentInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return info
}

func do(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func overlayOf(t *testing.T, srv *httptest.Server, id string) overlay.View {
	t.Helper()
	resp := do(t, "GET", srv.URL+"/api/documents/"+id+"/overlay", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v overlay.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const textJSON = `{"type":"text","page":1,"x":50,"y":100,"text":"hello","size":12}`

func TestUploadAndAnnotate(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 2))
	assert.Equal(t, 2, info.Pages)
	assert.NotEmpty(t, info.ID)
	base := srv.URL + "/api/documents/" + info.ID

	resp := do(t, "POST", base+"/annotations", textJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created["id"])

	v := overlayOf(t, srv, info.ID)
	require.Len(t, v.Elements, 1)
	assert.Equal(t, "hello", v.Elements[0].Text)

	resp = do(t, "POST", base+"/page", `{"page":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, overlayOf(t, srv, info.ID).Elements)

	resp = do(t, "POST", base+"/page", `{"direction":"prev"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, overlayOf(t, srv, info.ID).Elements, 1)
}

func TestUndoRedoAndErase(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	do(t, "POST", base+"/annotations", `{"type":"shape","page":1,"x":10,"y":10,"width":50,"height":50,"shapeType":"rectangle"}`)

	var res changedResponse
	resp := do(t, "POST", base+"/undo", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.State.Annotations)
	assert.True(t, res.State.CanRedo)

	resp = do(t, "POST", base+"/redo", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 1, res.State.Annotations)

	resp = do(t, "POST", base+"/erase", `{"x":500,"y":500}`)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.False(t, res.Changed)

	resp = do(t, "POST", base+"/erase", `{"x":30,"y":30}`)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.State.Annotations)
}

func TestPatchAndDeleteAnnotation(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	do(t, "POST", base+"/annotations", `{"id":"n1","type":"sticky-note","page":1,"x":10,"y":10,"text":"a"}`)
	resp := do(t, "PATCH", base+"/annotations/n1", `{"dx":5,"dy":5,"text":"b"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := overlayOf(t, srv, info.ID)
	require.Len(t, v.Elements, 1)
	assert.Equal(t, "b", v.Elements[0].Text)
	assert.Equal(t, 15.0, v.Elements[0].X)

	var res changedResponse
	resp = do(t, "PATCH", base+"/annotations/missing", `{"text":"x"}`)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.False(t, res.Changed)

	resp = do(t, "DELETE", base+"/annotations/n1", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Changed)
	assert.Empty(t, overlayOf(t, srv, info.ID).Elements)
}

func TestRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/documents", "application/pdf", strings.NewReader("not a pdf"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, do(t, "GET", srv.URL+"/api/documents/nope", "").StatusCode)

	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID
	assert.Equal(t, http.StatusBadRequest, do(t, "POST", base+"/annotations", `{"type":"balloon","page":1}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, "POST", base+"/annotations", `{"type":"text","page":5,"text":"x"}`).StatusCode)
	assert.Equal(t, http.StatusConflict, do(t, "DELETE", base+"/pages/current", "").StatusCode)
}

func TestPageStructureEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	var res changedResponse
	resp := do(t, "POST", base+"/pages/blank", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 2, res.State.Pages)

	resp = do(t, "POST", base+"/pages/rotate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, "DELETE", base+"/pages/current", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 1, res.State.Pages)
}

func TestExportReturnsPDF(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID
	do(t, "POST", base+"/annotations", textJSON)

	resp := do(t, "GET", base+"/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-Annotations-Drawn"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	_, err = pdfedit.Load(buf.Bytes())
	assert.NoError(t, err)
}

func TestPreviewIsPNG(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	resp := do(t, "GET", srv.URL+"/api/documents/"+info.ID+"/preview.png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestAutosaveRecoversOnReupload(t *testing.T) {
	store, err := autosave.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srv := newTestServer(t, store)
	data := blankPDF(t, 1)

	first := upload(t, srv, data)
	assert.Equal(t, 0, first.Recovered)
	do(t, "POST", srv.URL+"/api/documents/"+first.ID+"/annotations", textJSON)

	second := upload(t, srv, data)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Recovered)
	assert.Len(t, overlayOf(t, srv, second.ID).Elements, 1)
}

func TestWebSocketStreamsViews(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + info.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() viewMessage {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg viewMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	initial := read()
	assert.Equal(t, "view", initial.Type)
	assert.Empty(t, initial.View.Elements)

	do(t, "POST", srv.URL+"/api/documents/"+info.ID+"/annotations", textJSON)
	next := read()
	assert.Len(t, next.View.Elements, 1)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/documents", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.test", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDuplicateAnnotationIDRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	note := `{"id":"n1","type":"sticky-note","page":1,"x":10,"y":10,"text":"a"}`
	require.Equal(t, http.StatusCreated, do(t, "POST", base+"/annotations", note).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, "POST", base+"/annotations", note).StatusCode)

	var res changedResponse
	resp := do(t, "DELETE", base+"/annotations/n1", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.State.Annotations)
}

func TestPageEditMovesAutosave(t *testing.T) {
	store, err := autosave.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srv := newTestServer(t, store)
	data := blankPDF(t, 2)

	first := upload(t, srv, data)
	base := srv.URL + "/api/documents/" + first.ID
	do(t, "POST", base+"/annotations", `{"type":"text","page":2,"x":50,"y":100,"text":"second","size":12}`)
	require.Equal(t, http.StatusOK, do(t, "DELETE", base+"/pages/current", "").StatusCode)

	anns := listAnnotations(t, srv, first.ID)
	require.Len(t, anns, 1)
	assert.EqualValues(t, 1, anns[0]["page"])

	second := upload(t, srv, data)
	assert.Equal(t, 0, second.Recovered)
	assert.Empty(t, listAnnotations(t, srv, second.ID))
}

func listAnnotations(t *testing.T, srv *httptest.Server, id string) []map[string]interface{} {
	t.Helper()
	resp := do(t, "GET", srv.URL+"/api/documents/"+id+"/annotations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var anns []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&anns))
	return anns
}

func TestPropertiesRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	resp := do(t, "PUT", base+"/properties", `{"Reviewer":"qa"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, "GET", base+"/properties", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var props map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&props))
	assert.Equal(t, "qa", props["Reviewer"])
}

func TestPreviewThumbnailWidth(t *testing.T) {
	srv := newTestServer(t, nil)
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	resp := do(t, "GET", base+"/preview.png?width=100", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	assert.Equal(t, http.StatusBadRequest, do(t, "GET", base+"/preview.png?width=-3", "").StatusCode)
}

// echoEngine reports the page number of each input as its text.
type echoEngine struct{}

func (echoEngine) Name() string { return "echo" }

func (echoEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	text := "page " + strconv.Itoa(in.Page)
	word := ocr.TextWord{Text: text, Confidence: 1}
	return ocr.Result{
		InputID:   in.ID,
		PlainText: text,
		Blocks:    []ocr.TextBlock{{Lines: []ocr.TextLine{{Text: text, Words: []ocr.TextWord{word}}}}},
	}, nil
}

// captureEngine remembers the last input it was given.
type captureEngine struct{ last ocr.Input }

func (e *captureEngine) Name() string { return "capture" }

func (e *captureEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	e.last = in
	return ocr.Result{InputID: in.ID, PlainText: "ok"}, nil
}

func TestRecognizeAppliesQueryHints(t *testing.T) {
	eng := &captureEngine{}
	srv := newTestServerWith(t, Options{OCR: eng})
	info := upload(t, srv, blankPDF(t, 1))
	base := srv.URL + "/api/documents/" + info.ID

	resp := do(t, "POST", base+"/ocr?lang=eng,deu&psm=6&whitelist=0123456789&region=10,20,30,40", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"eng", "deu"}, eng.last.Languages)
	assert.Equal(t, 144, eng.last.DPI)
	assert.Equal(t, info.ID, eng.last.Metadata["document"])
	assert.Equal(t, "6", eng.last.Metadata["tessedit_pageseg_mode"])
	assert.Equal(t, "0123456789", eng.last.Metadata["tessedit_char_whitelist"])
	require.NotNil(t, eng.last.Region)
	assert.Equal(t, ocr.Region{X: 10, Y: 20, Width: 30, Height: 40}, *eng.last.Region)

	assert.Equal(t, http.StatusBadRequest, do(t, "POST", base+"/ocr?region=1,2", "").StatusCode)
}

func TestRecognizeEveryPage(t *testing.T) {
	srv := newTestServerWith(t, Options{OCR: echoEngine{}})
	info := upload(t, srv, blankPDF(t, 2))

	resp := do(t, "POST", srv.URL+"/api/documents/"+info.ID+"/ocr?all=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Pages []recognition `json:"pages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Pages, 2)
	assert.Equal(t, 2, body.Pages[1].Page)
	assert.Equal(t, "page 2", body.Pages[1].Text)
	require.Len(t, body.Pages[1].Words, 1)
}
