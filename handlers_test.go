package posterkit

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/editor"
	"github.com/eringen/posterkit/poster"
	"github.com/eringen/posterkit/removebg"
)

func newTestApp(t *testing.T, cfg Config, opts ...Option) *App {
	t.Helper()
	dir := t.TempDir()
	cfg.SessionSecret = "test-secret"
	cfg.DatabasePath = filepath.Join(dir, "posterkit.db")
	cfg.StaticDir = filepath.Join(dir, "public")

	log := logrus.New()
	log.SetOutput(io.Discard)
	a := New(cfg, append([]Option{WithLogger(log)}, opts...)...)
	if err := a.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// client carries cookies and the CSRF token between requests like a
// browser would.
type client struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, a *App) *client {
	cl := &client{t: t, app: a, cookies: map[string]*http.Cookie{}}
	if rec := cl.do(http.MethodGet, "/api/editor/state", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("state: %d %s", rec.Code, rec.Body)
	}
	return cl
}

func (cl *client) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	if ck, ok := cl.cookies["_csrf"]; ok {
		req.Header.Set("X-CSRF-Token", ck.Value)
	}
	rec := httptest.NewRecorder()
	cl.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		cl.cookies[ck.Name] = ck
	}
	return rec
}

func (cl *client) postJSON(path string, v any) *httptest.ResponseRecorder {
	body, err := json.Marshal(v)
	if err != nil {
		cl.t.Fatal(err)
	}
	return cl.do(http.MethodPost, path, bytes.NewReader(body), echo.MIMEApplicationJSON)
}

func (cl *client) upload(data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "photo.png")
	if err != nil {
		cl.t.Fatal(err)
	}
	part.Write(data)
	w.Close()
	return cl.do(http.MethodPost, "/api/editor/upload", &buf, w.FormDataContentType())
}

func (cl *client) snapshot(rec *httptest.ResponseRecorder) editor.Snapshot {
	cl.t.Helper()
	if rec.Code != http.StatusOK {
		cl.t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var snap editor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		cl.t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 255, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body, err)
	}
	return resp.Error
}

func TestEditorPage(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	rec := cl.do(http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`name="csrf-token" content="` + cl.cookies["_csrf"].Value + `"`,
		`id="stage"`,
		`data-name="Oferta"`,
		`data-name="Descuento"`,
		`/public/overlays/1.png`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestEmbeddedAssetsServed(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	for _, path := range []string{"/public/editor.js", "/public/editor.css", "/public/overlays/2.png"} {
		rec := cl.do(http.MethodGet, path, nil, "")
		if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
			t.Errorf("GET %s = %d (%d bytes)", path, rec.Code, rec.Body.Len())
		}
	}
}

func TestEditorScriptDragListeners(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	script := cl.do(http.MethodGet, "/public/editor.js", nil, "").Body.String()

	// Move and up listeners live only between pointerdown and release.
	for _, global := range []string{
		`document.addEventListener("pointermove"`,
		`document.addEventListener("pointerup"`,
	} {
		if strings.Contains(script, global) {
			t.Errorf("script attaches %s for the page lifetime", global)
		}
	}
	if !strings.Contains(script, "document.removeEventListener") {
		t.Error("script never detaches drag listeners")
	}
	// The release waits for queued moves before sending up.
	if !regexp.MustCompile(`released = flushMove\(\)\s*\.then\(function \(\) \{ return request\("/api/editor/pointer/up"`).MatchString(script) {
		t.Error("pointer up is not chained after the pending moves")
	}
}

func TestPostRequiresCSRFToken(t *testing.T) {
	a := newTestApp(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/editor/center", nil)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestTemplatesEndpoint(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	rec := cl.do(http.MethodGet, "/api/templates", nil, "")
	var got []poster.Template
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Name != "Oferta" {
		t.Errorf("templates = %+v", got)
	}
}

func TestSelectTemplate(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))

	rec := cl.postJSON("/api/editor/template", map[string]string{"name": "Nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d", rec.Code)
	}

	snap := cl.snapshot(cl.postJSON("/api/editor/template", map[string]string{"name": "Nuevo"}))
	if snap.Template == nil || snap.Template.Name != "Nuevo" {
		t.Fatalf("template = %+v", snap.Template)
	}
	if snap.State.PricePosition != poster.DefaultPricePosition {
		t.Error("selecting a template moved the price")
	}

	snap = cl.snapshot(cl.postJSON("/api/editor/template/price-area", nil))
	if snap.State.PricePosition != (poster.Position{X: 540, Y: 960}) || snap.State.PriceFontSize != 80 {
		t.Errorf("price area not applied: %+v", snap.State)
	}
}

func TestUploadAndBackground(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	img := testPNG(t, 8, 8)

	snap := cl.snapshot(cl.upload(img))
	if !snap.HasImage || snap.Version != 1 {
		t.Fatalf("snapshot after upload = %+v", snap)
	}

	rec := cl.do(http.MethodGet, "/editor/background", nil, "")
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), img) {
		t.Fatalf("background = %d (%d bytes)", rec.Code, rec.Body.Len())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}

	req := httptest.NewRequest(http.MethodGet, "/editor/background", nil)
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	rec = httptest.NewRecorder()
	cl.app.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional GET = %d, want 304", rec.Code)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	rec := cl.upload([]byte("definitely not a picture"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorOf(t, rec); msg != "the file is not a supported image" {
		t.Errorf("error = %q", msg)
	}
	if rec := cl.do(http.MethodGet, "/editor/background", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("background after rejected upload = %d, want 404", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{MaxUploadSize: 1 << 10}))
	rec := cl.upload(bytes.Repeat([]byte{0}, 2<<10))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestScaleFontAndPrice(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	cl.upload(testPNG(t, 4, 4))

	snap := cl.snapshot(cl.postJSON("/api/editor/scale", map[string]float64{"factor": 1.1}))
	if snap.State.BgScale != 1.1 {
		t.Errorf("scale = %v", snap.State.BgScale)
	}
	if rec := cl.postJSON("/api/editor/scale", map[string]float64{"factor": -1}); rec.Code != http.StatusBadRequest {
		t.Errorf("negative factor status = %d", rec.Code)
	}

	snap = cl.snapshot(cl.postJSON("/api/editor/font-size", map[string]int{"delta": 5}))
	if snap.State.PriceFontSize != poster.DefaultFontSize+5 {
		t.Errorf("font size = %d", snap.State.PriceFontSize)
	}
	snap = cl.snapshot(cl.postJSON("/api/editor/font-size", map[string]int{"size": 999}))
	if snap.State.PriceFontSize != poster.MaxFontSize {
		t.Errorf("font size = %d", snap.State.PriceFontSize)
	}

	snap = cl.snapshot(cl.postJSON("/api/editor/price", map[string]string{"price": "$9.99", "color": "#ff0000"}))
	if snap.State.Price != "$9.99" || snap.State.PriceColor != "#ff0000" {
		t.Errorf("price = %q %q", snap.State.Price, snap.State.PriceColor)
	}
	rec := cl.postJSON("/api/editor/price", map[string]string{"color": "url(javascript:x)"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad color status = %d", rec.Code)
	}
}

func TestToggleAndCenter(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))

	rec := cl.postJSON("/api/editor/toggle/grid", nil)
	var tr toggleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil || !tr.On || tr.Name != "grid" {
		t.Errorf("toggle = %+v, %v", tr, err)
	}
	if rec := cl.postJSON("/api/editor/toggle/ruler", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown toggle status = %d", rec.Code)
	}

	snap := cl.snapshot(cl.postJSON("/api/editor/center", nil))
	if snap.State.BgPosition != (poster.Position{X: 540, Y: 960}) {
		t.Errorf("centered without image at %v", snap.State.BgPosition)
	}
}

func TestPointerDrag(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))
	cl.postJSON("/api/editor/price", map[string]string{"price": "$1"})

	snap := cl.snapshot(cl.postJSON("/api/editor/pointer/down", map[string]any{"subject": "price", "x": 100, "y": 100}))
	if !snap.DraggingPrice {
		t.Error("price drag not active")
	}
	cl.postJSON("/api/editor/pointer/move", map[string]any{"x": 104, "y": 103})
	cl.postJSON("/api/editor/pointer/move", map[string]any{"touches": []map[string]float64{{"x": 110, "y": 95}}})
	snap = cl.snapshot(cl.postJSON("/api/editor/pointer/up", nil))

	want := poster.DefaultPricePosition.Add(poster.Position{X: 10, Y: -5})
	if snap.State.PricePosition != want {
		t.Errorf("price at %v, want %v", snap.State.PricePosition, want)
	}
	if snap.DraggingPrice {
		t.Error("drag still active after up")
	}

	// A move arriving after up is not part of the drag.
	snap = cl.snapshot(cl.postJSON("/api/editor/pointer/move", map[string]any{"x": 300, "y": 300}))
	if snap.State.PricePosition != want {
		t.Errorf("late move applied: price at %v, want %v", snap.State.PricePosition, want)
	}

	rec := cl.postJSON("/api/editor/pointer/down", map[string]any{"subject": "background"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("background drag without image = %d, want 422", rec.Code)
	}
	if rec := cl.postJSON("/api/editor/pointer/down", map[string]any{"subject": "logo"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown subject = %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{}))

	if rec := cl.do(http.MethodGet, "/export/poster.png", nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("export without background = %d, want 204", rec.Code)
	}

	cl.upload(testPNG(t, 16, 16))
	cl.postJSON("/api/editor/price", map[string]string{"price": "$5"})
	rec := cl.do(http.MethodGet, "/export/poster.png", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != `attachment; filename="poster.png"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if cfg.Width != 1080 || cfg.Height != 1920 {
		t.Errorf("export = %dx%d, want 1080x1920", cfg.Width, cfg.Height)
	}

	// The embedded overlay's top band covers the background.
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(540, 20).RGBA()
	if r>>8 < 150 || g>>8 > 100 || b>>8 > 100 {
		t.Errorf("overlay pixel = %v, want the red band", color.RGBA64{uint16(r), uint16(g), uint16(b), 0xffff})
	}
}

type stubRemover struct {
	calls atomic.Int32
}

// Remove hands back a copy of img.
func (s *stubRemover) Remove(ctx context.Context, key string, img *poster.Resource) (*poster.Resource, error) {
	s.calls.Add(1)
	return poster.NewResource(bytes.Clone(img.Data)), nil
}

func TestRemoveBackgroundMissingKey(t *testing.T) {
	remover := &stubRemover{}
	cl := newClient(t, newTestApp(t, Config{}, WithRemover(remover)))
	img := testPNG(t, 4, 4)
	cl.upload(img)

	rec := cl.postJSON("/api/editor/remove-background", map[string]string{"api_key": ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if msg := errorOf(t, rec); msg != removebg.MsgMissingAPIKey {
		t.Errorf("error = %q", msg)
	}
	if remover.calls.Load() != 0 {
		t.Errorf("remover called %d times without a key", remover.calls.Load())
	}
	bg := cl.do(http.MethodGet, "/editor/background", nil, "")
	if !bytes.Equal(bg.Body.Bytes(), img) {
		t.Error("background changed after failed removal")
	}
}

func TestRemoveBackgroundReplacesImage(t *testing.T) {
	processed := testPNG(t, 4, 4)
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-Api-Key"))
		w.Write(processed)
	}))
	defer srv.Close()

	cl := newClient(t, newTestApp(t, Config{RemoveBgEndpoint: srv.URL, RemoveBgAPIKey: "server-key"}))
	cl.upload(testPNG(t, 6, 6))

	snap := cl.snapshot(cl.postJSON("/api/editor/remove-background", map[string]string{}))
	if snap.Version != 2 {
		t.Errorf("version = %d, want 2", snap.Version)
	}
	if gotKey.Load() != "server-key" {
		t.Errorf("api key = %v, want the configured fallback", gotKey.Load())
	}
	bg := cl.do(http.MethodGet, "/editor/background", nil, "")
	if !bytes.Equal(bg.Body.Bytes(), processed) {
		t.Error("background not replaced by processed image")
	}
}

func TestRemoveBackgroundRateLimited(t *testing.T) {
	cl := newClient(t, newTestApp(t, Config{RemovalLimit: 2}, WithRemover(&stubRemover{})))
	cl.upload(testPNG(t, 4, 4))
	body := map[string]string{"api_key": "k"}
	for i := range 2 {
		if rec := cl.postJSON("/api/editor/remove-background", body); rec.Code != http.StatusOK {
			t.Fatalf("call %d = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := cl.postJSON("/api/editor/remove-background", body); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third call = %d, want 429", rec.Code)
	}
}

func TestRejectedRemovalKeepsRateLimitSlot(t *testing.T) {
	remover := &stubRemover{}
	cl := newClient(t, newTestApp(t, Config{RemovalLimit: 1}, WithRemover(remover)))

	if rec := cl.postJSON("/api/editor/remove-background", map[string]string{"api_key": "k"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("without image = %d, want 422", rec.Code)
	}
	cl.upload(testPNG(t, 4, 4))
	if rec := cl.postJSON("/api/editor/remove-background", map[string]string{}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("without key = %d, want 422", rec.Code)
	}
	if rec := cl.postJSON("/api/editor/remove-background", map[string]string{"api_key": "k"}); rec.Code != http.StatusOK {
		t.Errorf("first valid call = %d, want 200", rec.Code)
	}
	if remover.calls.Load() != 1 {
		t.Errorf("remover calls = %d, want 1", remover.calls.Load())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	a := newTestApp(t, Config{})
	alice, bob := newClient(t, a), newClient(t, a)

	alice.postJSON("/api/editor/price", map[string]string{"price": "$1"})
	snap := bob.snapshot(bob.do(http.MethodGet, "/api/editor/state", nil, ""))
	if snap.State.Price != "" {
		t.Errorf("bob sees alice's price %q", snap.State.Price)
	}
	if a.Sessions.Len() != 2 {
		t.Errorf("sessions = %d, want 2", a.Sessions.Len())
	}
}
