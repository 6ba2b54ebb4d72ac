// Package review holds the reviewer's inputs for one image and drives
// recognition and archival. Both the web page and the terminal UI build on it.
package review

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/imaging"
	"ocrarchive/internal/logger"
	"ocrarchive/internal/ocr"
	"ocrarchive/pkg/models"
)

// ErrSubmitDisabled is returned when Submit is called before the reference
// number and rating are set.
var ErrSubmitDisabled = errors.New("submit requires a reference number and a rating between 1 and 5")

// Form is the state of one review. The zero value is an empty form.
type Form struct {
	ImageName       string
	Image           []byte
	ExtractedText   string
	ErrorNotes      string
	Rating          int // 0 means not chosen yet
	ReferenceNumber string
}

// CanSubmit reports whether the submit action is available.
func (f *Form) CanSubmit() bool {
	ref := strings.TrimSpace(f.ReferenceNumber)
	return ref != "" &&
		utf8.RuneCountInString(ref) <= models.MaxReferenceLength &&
		f.Rating >= models.MinRating && f.Rating <= models.MaxRating
}

// Submission converts the form into an archivable submission.
func (f *Form) Submission() (*models.Submission, error) {
	sub, err := models.NewSubmission(f.ReferenceNumber, f.ExtractedText, f.ErrorNotes, f.Rating, f.Image)
	if err != nil {
		return nil, err
	}
	sub.ImageName = f.ImageName
	return sub, nil
}

// Reset clears every input.
func (f *Form) Reset() {
	*f = Form{}
}

// Archiver is the part of the archival controller the review session uses.
type Archiver interface {
	Archive(ctx context.Context, sub *models.Submission) (*archival.Receipt, error)
}

// Service runs the recognize and archive steps of a review.
type Service struct {
	recognizer ocr.OCRService
	archiver   Archiver
	log        zerolog.Logger
}

// NewService creates a review service. archiver may be nil for read-only use.
func NewService(recognizer ocr.OCRService, archiver Archiver) *Service {
	return &Service{
		recognizer: recognizer,
		archiver:   archiver,
		log:        logger.WithComponent("review"),
	}
}

// Extract decodes the uploaded image, binarizes it and recognizes its text.
// An image without text yields an empty string, not an error.
func (s *Service) Extract(ctx context.Context, name string, data []byte) (string, error) {
	const op = "Extract"

	img, format, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	text, err := s.recognizer.ProcessImage(ctx, imaging.Normalize(img))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("image", name).
		Str("format", format).
		Int("bytes", len(data)).
		Int("text_length", len(text)).
		Msg("Extracted text")

	return text, nil
}

// Submit archives the form. It refuses while CanSubmit is false; on success
// the form is reset. Cancelling ctx does not interrupt a started archival.
func (s *Service) Submit(ctx context.Context, form *Form) (*archival.Receipt, error) {
	const op = "Submit"

	if !form.CanSubmit() {
		return nil, ErrSubmitDisabled
	}
	if s.archiver == nil {
		return nil, fmt.Errorf("%s: no archive configured", op)
	}

	sub, err := form.Submission()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	receipt, err := s.archiver.Archive(context.WithoutCancel(ctx), sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	form.Reset()
	return receipt, nil
}
