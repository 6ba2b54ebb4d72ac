// Package web serves the single-page review surface.
//
// The page keeps no server-side session: after extraction the image travels
// back to the browser as a base64 hidden field and returns with the submit.
package web

import (
	"embed"
	"encoding/base64"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ocrarchive/internal/logger"
	"ocrarchive/internal/review"
	"ocrarchive/pkg/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var allowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Handler serves the review page.
type Handler struct {
	review         *review.Service
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewHandler creates a handler that rejects images larger than maxUploadBytes.
func NewHandler(svc *review.Service, maxUploadBytes int64) *Handler {
	return &Handler{
		review:         svc,
		maxUploadBytes: maxUploadBytes,
		log:            logger.WithComponent("web"),
	}
}

// NewRouter registers the page routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))
	r.MaxMultipartMemory = h.maxUploadBytes

	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/", h.Index)
	r.POST("/extract", h.Extract)
	r.POST("/submit", h.Submit)

	return r
}

// pageData is everything the template renders.
type pageData struct {
	Form               review.Form
	HasImage           bool
	ImageData          string
	ImageURL           template.URL
	CanSubmit          bool
	Archived           string
	Error              string
	Ratings            []int
	MaxReferenceLength int
}

func newPage(form review.Form) pageData {
	p := pageData{
		Form:               form,
		HasImage:           len(form.Image) > 0,
		CanSubmit:          form.CanSubmit(),
		Ratings:            []int{1, 2, 3, 4, 5},
		MaxReferenceLength: models.MaxReferenceLength,
	}
	if p.HasImage {
		p.ImageData = base64.StdEncoding.EncodeToString(form.Image)
		p.ImageURL = imageURL(form.Image, p.ImageData)
	}
	return p
}

// imageURL builds a data URL for the preview. Only sniffed image types are
// trusted.
func imageURL(data []byte, encoded string) template.URL {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	return template.URL("data:" + mimeType + ";base64," + encoded)
}

func (h *Handler) render(c *gin.Context, status int, page pageData) {
	c.HTML(status, "index.html", page)
}

// Index renders an empty page, noting a just-archived reference number.
func (h *Handler) Index(c *gin.Context) {
	page := newPage(review.Form{})
	page.Archived = c.Query("archived")
	h.render(c, http.StatusOK, page)
}

// Extract accepts the uploaded image and shows the recognized text.
func (h *Handler) Extract(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, review.Form{}, "The image is too large.")
			return
		}
		h.fail(c, http.StatusBadRequest, review.Form{}, "Choose an image to upload.")
		return
	}
	defer file.Close()

	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		h.fail(c, http.StatusBadRequest, review.Form{}, "Only PNG, JPG and JPEG images are supported.")
		return
	}
	if header.Size > h.maxUploadBytes {
		h.fail(c, http.StatusRequestEntityTooLarge, review.Form{}, "The image is too large.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, http.StatusBadRequest, review.Form{}, "The upload could not be read.")
		return
	}

	form := review.Form{ImageName: header.Filename, Image: data}

	text, err := h.review.Extract(c.Request.Context(), header.Filename, data)
	if err != nil {
		h.log.Error().Err(err).Str("image", header.Filename).Msg("Text extraction failed")
		h.fail(c, http.StatusUnprocessableEntity, review.Form{}, "Text extraction failed: "+err.Error())
		return
	}
	form.ExtractedText = text

	h.render(c, http.StatusOK, newPage(form))
}

// Submit archives the reviewed image. Success redirects to a cleared page;
// failures re-render the page with the inputs kept.
func (h *Handler) Submit(c *gin.Context) {
	image, err := base64.StdEncoding.DecodeString(c.PostForm("image_data"))
	if err != nil || len(image) == 0 {
		h.fail(c, http.StatusBadRequest, review.Form{}, "Upload an image before submitting.")
		return
	}

	rating, _ := strconv.Atoi(c.PostForm("rating"))
	form := review.Form{
		ImageName:       c.PostForm("image_name"),
		Image:           image,
		ExtractedText:   c.PostForm("extracted_text"),
		ErrorNotes:      c.PostForm("error_notes"),
		Rating:          rating,
		ReferenceNumber: c.PostForm("reference_number"),
	}

	if !form.CanSubmit() {
		h.fail(c, http.StatusBadRequest, form, "Enter a reference number and choose a rating before submitting.")
		return
	}

	ref := strings.TrimSpace(form.ReferenceNumber)
	receipt, err := h.review.Submit(c.Request.Context(), &form)
	if err != nil {
		h.log.Error().Err(err).Str("reference_number", ref).Msg("Submission failed")
		if errors.Is(err, models.ErrInvalidSubmission) {
			h.fail(c, http.StatusBadRequest, form, err.Error())
			return
		}
		h.fail(c, http.StatusBadGateway, form, "Upload failed: "+err.Error())
		return
	}

	h.log.Info().
		Str("reference_number", receipt.ReferenceNumber).
		Str("folder_id", receipt.FolderID).
		Msg("Submission archived")

	c.Redirect(http.StatusSeeOther, "/?archived="+url.QueryEscape(ref))
}

func (h *Handler) fail(c *gin.Context, status int, form review.Form, message string) {
	page := newPage(form)
	page.Error = message
	h.render(c, status, page)
}

// requestLogger logs each request through zerolog instead of gin's default writer.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}
