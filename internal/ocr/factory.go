package ocr

import (
	"context"
	"fmt"
	"time"
)

// Settings selects and configures an engine for NewService.
type Settings struct {
	Engine string // vision, documentai, openai, tesseract

	ProjectID   string
	Location    string
	ProcessorID string

	OpenAIAPIKey string
	OpenAIModel  string

	TesseractPath     string
	TesseractLanguage string
}

// NewService builds the engine named by settings.Engine. Engines holding
// network clients also implement io.Closer.
func NewService(ctx context.Context, settings Settings) (OCRService, error) {
	switch settings.Engine {
	case "", "vision":
		svc, err := NewGoogleVisionOCRService(ctx)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case "documentai":
		svc, err := NewDocumentAIOCRService(ctx, DocumentAIConfig{
			ProjectID:   settings.ProjectID,
			Location:    settings.Location,
			ProcessorID: settings.ProcessorID,
			Timeout:     60 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case "openai":
		svc, err := NewOpenAIOCRService(settings.OpenAIAPIKey, settings.OpenAIModel)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case "tesseract":
		return NewTesseractOCRService(settings.TesseractPath, settings.TesseractLanguage), nil
	default:
		return nil, WrapOCRError("NewService", ErrUnknownEngine, fmt.Sprintf("engine %q", settings.Engine))
	}
}
