// Package ocr recognizes text in normalized review images.
//
// Several engines implement OCRService; the review workflow treats them all as
// a black box that turns one image into one string of text:
//   - vision: Google Cloud Vision document text detection (default)
//   - documentai: a Google Document AI OCR processor
//   - openai: a vision-capable OpenAI chat model asked to transcribe the image
//   - tesseract: the local tesseract command line tool
//
// Credentials for the Google engines come from GOOGLE_CREDENTIALS (inline JSON)
// or GOOGLE_APPLICATION_CREDENTIALS (file path), falling back to application
// default credentials.
//
// An image with no recognizable text is not an error: the empty string is
// returned so the reviewer can record the miss in the error notes.
package ocr

import (
	"context"
	"fmt"
	"image"
	"time"

	"ocrarchive/internal/imaging"
)

// MaxImageBytes is the largest encoded image sent to a remote engine (20MB).
const MaxImageBytes = 20 * 1024 * 1024

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// ProcessImage returns the text recognized in img.
	ProcessImage(ctx context.Context, img image.Image) (string, error)

	// ProcessImageWithMetadata returns the recognized text with engine details.
	ProcessImageWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error)
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the recognized text in reading order.
	Text string `json:"text"`

	// Engine names the engine that produced Text.
	Engine string `json:"engine"`

	// Confidence is the average confidence reported by the engine (0.0 to 1.0),
	// or zero when the engine does not report one.
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages, when reported.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// finish stamps timing information on a result.
func finish(result *OCRResult, start time.Time) *OCRResult {
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(start)
	return result
}

// encode serializes img for a remote engine and enforces MaxImageBytes.
func encode(op string, img image.Image) ([]byte, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}
	if len(data) > MaxImageBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("encoded size: %d bytes", len(data)))
	}
	return data, nil
}
