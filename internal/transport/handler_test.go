package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-idphoto-guide/internal/compliance"
	"go-idphoto-guide/internal/compositor"
	"go-idphoto-guide/internal/config"
	"go-idphoto-guide/internal/geometry"
)

type fixedFinder struct {
	face *geometry.RawFace
}

func (f *fixedFinder) Find(ctx context.Context, frame image.Image) (*geometry.RawFace, error) {
	return f.face, nil
}

func (f *fixedFinder) Close() error { return nil }

type fullMaskSegmenter struct{}

func (fullMaskSegmenter) Segment(ctx context.Context, frame image.Image) (*image.Gray, error) {
	b := frame.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}
	return mask, nil
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 10 << 20,
	}
}

func newTestHandler(finder *fixedFinder) http.Handler {
	gin.SetMode(gin.TestMode)
	return NewHandler(Deps{
		Config:    testConfig(),
		Finder:    finder,
		Analyzer:  geometry.NewAnalyzer(),
		Evaluator: compliance.NewEvaluator(),
		Engine:    compositor.NewEngine(fullMaskSegmenter{}),
	})
}

func frameUpload(t *testing.T, extraFields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 255
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("frame", "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	for k, v := range extraFields {
		w.WriteField(k, v)
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListSpecs(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/specs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Specs []struct {
			Code    string `json:"code"`
			WidthPX int    `json:"width_px"`
		} `json:"specs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Specs) == 0 {
		t.Fatal("expected a non-empty spec catalog")
	}
	for _, s := range resp.Specs {
		if s.WidthPX <= 0 {
			t.Errorf("spec %s has non-positive pixel width", s.Code)
		}
	}
}

func TestAnalyzeNoFace(t *testing.T) {
	h := newTestHandler(&fixedFinder{face: nil})

	body, contentType := frameUpload(t, nil)
	req := httptest.NewRequest("POST", "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Compliant bool   `json:"compliant"`
		Code      string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Compliant {
		t.Error("expected non-compliant verdict without a face")
	}
	if resp.Code != compliance.CodeNoFace {
		t.Errorf("expected %q, got %q", compliance.CodeNoFace, resp.Code)
	}
}

func TestAnalyzeMissingFrame(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	req := httptest.NewRequest("POST", "/analyze", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("expected an error status for a non-multipart request")
	}
}

func TestProcessReturnsImage(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	body, contentType := frameUpload(t, map[string]string{
		"background": "#ff0000",
		"spec_code":  "one_inch",
	})
	req := httptest.NewRequest("POST", "/process", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 295 || img.Bounds().Dy() != 413 {
		t.Errorf("expected 295x413 one inch photo, got %v", img.Bounds().Size())
	}
}

func TestProcessUnknownSpec(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	body, contentType := frameUpload(t, map[string]string{"spec_code": "postcard"})
	req := httptest.NewRequest("POST", "/process", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown spec, got %d", rec.Code)
	}
}

func TestSwapBackgroundRequiresProcess(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	payload, _ := json.Marshal(map[string]interface{}{"background": "#00ff00"})
	req := httptest.NewRequest("POST", "/background", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 before any processing, got %d", rec.Code)
	}
}

func TestSwapBackgroundAfterProcess(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	body, contentType := frameUpload(t, map[string]string{"background": "#ff0000"})
	req := httptest.NewRequest("POST", "/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("process failed: %d %s", rec.Code, rec.Body.String())
	}

	payload, _ := json.Marshal(map[string]interface{}{"background": "#0000ff"})
	swap := httptest.NewRequest("POST", "/background", bytes.NewReader(payload))
	swap.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, swap)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := png.Decode(rec.Body); err != nil {
		t.Errorf("swap response is not a PNG: %v", err)
	}
}

func TestGuidanceWithoutSession(t *testing.T) {
	h := newTestHandler(&fixedFinder{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/state", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a live session, got %d", rec.Code)
	}
}

func TestParseHexColor(t *testing.T) {
	got, err := parseHexColor("#336699")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := parseHexColor("red"); err == nil {
		t.Error("expected error for non-hex color")
	}
	if _, err := parseHexColor("#fff"); err == nil {
		t.Error("expected error for short hex color")
	}
}
