package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/ocr"
	"ocrarchive/internal/review"
	"ocrarchive/pkg/models"
)

type fakeRecognizer struct{ text string }

func (f *fakeRecognizer) ProcessImage(context.Context, image.Image) (string, error) {
	return f.text, nil
}

func (f *fakeRecognizer) ProcessImageWithMetadata(context.Context, image.Image) (*ocr.OCRResult, error) {
	return &ocr.OCRResult{Text: f.text}, nil
}

type fakeArchiver struct {
	subs   []*models.Submission
	err    error
	ctxErr error
}

func (f *fakeArchiver) Archive(ctx context.Context, sub *models.Submission) (*archival.Receipt, error) {
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	f.subs = append(f.subs, sub)
	return &archival.Receipt{ReferenceNumber: sub.ReferenceNumber, FolderID: "folder-1"}, nil
}

func setupTestRouter(arch *fakeArchiver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := review.NewService(&fakeRecognizer{text: "TOTAL 42.50"}, arch)
	return NewRouter(NewHandler(svc, 1<<20))
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func submitRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := serve(setupTestRouter(&fakeArchiver{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestIndexShowsArchivedNotice(t *testing.T) {
	w := serve(setupTestRouter(&fakeArchiver{}), httptest.NewRequest(http.MethodGet, "/?archived=INV007", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Archived INV007.") {
		t.Errorf("notice missing from page")
	}
	if strings.Contains(w.Body.String(), `id="review"`) {
		t.Errorf("empty page should not render the review form")
	}
}

func TestExtractShowsTextWithSubmitDisabled(t *testing.T) {
	w := serve(setupTestRouter(&fakeArchiver{}), multipartUpload(t, "receipt.png", testPNG(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "TOTAL 42.50") {
		t.Error("extracted text missing from page")
	}
	if !strings.Contains(body, `id="submit" disabled`) {
		t.Error("submit should be disabled before reference and rating are set")
	}
	if !strings.Contains(body, "data:image/png;base64,") {
		t.Error("image preview missing")
	}
}

func TestExtractRejectsUnsupportedType(t *testing.T) {
	w := serve(setupTestRouter(&fakeArchiver{}), multipartUpload(t, "receipt.gif", testPNG(t)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestExtractRejectsOversizedImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := review.NewService(&fakeRecognizer{}, nil)
	r := NewRouter(NewHandler(svc, 16))

	w := serve(r, multipartUpload(t, "receipt.png", testPNG(t)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", w.Code)
	}
}

func validSubmit(t *testing.T) url.Values {
	return url.Values{
		"image_name":       {"receipt.png"},
		"image_data":       {base64.StdEncoding.EncodeToString(testPNG(t))},
		"extracted_text":   {"TOTAL 42.50"},
		"error_notes":      {""},
		"rating":           {"4"},
		"reference_number": {"INV007"},
	}
}

func TestSubmitWithoutReferenceIsRejected(t *testing.T) {
	arch := &fakeArchiver{}
	values := validSubmit(t)
	values.Set("reference_number", "")

	w := serve(setupTestRouter(arch), submitRequest(values))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if len(arch.subs) != 0 {
		t.Fatal("archiver must not run for a gated submit")
	}
}

func TestSubmitArchivesAndRedirects(t *testing.T) {
	arch := &fakeArchiver{}
	w := serve(setupTestRouter(arch), submitRequest(validSubmit(t)))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/?archived=INV007" {
		t.Errorf("Location = %q", loc)
	}
	if len(arch.subs) != 1 {
		t.Fatalf("expected one archived submission, got %d", len(arch.subs))
	}
	sub := arch.subs[0]
	if sub.ReferenceNumber != "INV007" || sub.Rating != 4 || sub.ExtractedText != "TOTAL 42.50" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if !bytes.Equal(sub.Image, testPNG(t)) {
		t.Error("archived image differs from the uploaded bytes")
	}
}

func TestSubmitUploadFailureKeepsInputs(t *testing.T) {
	arch := &fakeArchiver{err: errors.New("drive: 403 insufficient permissions")}
	values := validSubmit(t)
	values.Set("error_notes", "cents misread")

	w := serve(setupTestRouter(arch), submitRequest(values))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Upload failed") {
		t.Error("failure message missing")
	}
	if !strings.Contains(body, `value="INV007"`) || !strings.Contains(body, "cents misread") {
		t.Error("inputs were not preserved")
	}
}

func TestSubmitSurvivesClientDisconnect(t *testing.T) {
	arch := &fakeArchiver{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := submitRequest(validSubmit(t)).WithContext(ctx)
	w := serve(setupTestRouter(arch), req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d: %s", w.Code, w.Body.String())
	}
	if arch.ctxErr != nil {
		t.Errorf("archival context cancelled with the request: %v", arch.ctxErr)
	}
	if len(arch.subs) != 1 {
		t.Fatalf("expected one archived submission, got %d", len(arch.subs))
	}
}
