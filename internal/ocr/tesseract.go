package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ocrarchive/internal/imaging"
	"ocrarchive/internal/logger"
)

// TesseractOCRService runs the tesseract binary on a temporary PNG.
type TesseractOCRService struct {
	path     string
	language string
	log      zerolog.Logger
}

// NewTesseractOCRService creates an engine that shells out to path (usually "tesseract").
func NewTesseractOCRService(path, language string) *TesseractOCRService {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractOCRService{
		path:     path,
		language: language,
		log:      logger.WithComponent("ocr-tesseract"),
	}
}

// ProcessImage extracts text from a normalized image.
func (t *TesseractOCRService) ProcessImage(ctx context.Context, img image.Image) (string, error) {
	result, err := t.ProcessImageWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata writes img to a temp file and reads tesseract's stdout.
func (t *TesseractOCRService) ProcessImageWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}

	tmp, err := os.CreateTemp("", "ocrarchive-*.png")
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create temp image")
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			t.log.Warn().Err(rmErr).Str("file", tmp.Name()).Msg("Failed to remove temp image")
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, WrapOCRError(op, err, "failed to write temp image")
	}
	if err := tmp.Close(); err != nil {
		return nil, WrapOCRError(op, err, "failed to close temp image")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, tmp.Name(), "stdout", "-l", t.language)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, WrapOCRError(op, ErrEngineUnavailable, fmt.Sprintf("cannot run %s: %v", t.path, execErr.Err))
		}
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("tesseract: %v: %s", err, strings.TrimSpace(stderr.String())))
	}

	text := strings.TrimRight(stdout.String(), "\n\f ")

	t.log.Debug().
		Str("language", t.language).
		Int("text_length", len(text)).
		Msg("Tesseract OCR completed")

	return finish(&OCRResult{Text: text, Engine: "tesseract", LanguageCodes: []string{t.language}}, startTime), nil
}
