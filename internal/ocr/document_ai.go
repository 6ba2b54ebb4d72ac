package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"ocrarchive/internal/gcloud"
	"ocrarchive/internal/logger"
)

// DocumentAIConfig identifies the Document AI OCR processor to call.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu"
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIOCRService implements OCRService with a Document AI OCR processor.
type DocumentAIOCRService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIOCRService creates a Document AI client for the configured location.
func NewDocumentAIOCRService(ctx context.Context, config DocumentAIConfig) (*DocumentAIOCRService, error) {
	const op = "NewDocumentAIOCRService"

	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	clientOptions, err := gcloud.ClientOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to load credentials")
	}

	// Non-US processors live behind a regional endpoint
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIOCRService{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}, nil
}

// ProcessImage extracts text from a normalized image.
func (p *DocumentAIOCRService) ProcessImage(ctx context.Context, img image.Image) (string, error) {
	result, err := p.ProcessImageWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata sends the image to the OCR processor as a raw PNG document.
func (p *DocumentAIOCRService) ProcessImageWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, err := encode(op, img)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: "image/png",
			},
		},
	})
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	result := &OCRResult{
		Text:   strings.TrimRight(resp.Document.Text, "\n"),
		Engine: "documentai",
	}
	for _, page := range resp.Document.Pages {
		if page.Layout != nil {
			result.Confidence += page.Layout.Confidence
		}
		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode != "" {
				result.LanguageCodes = appendUnique(result.LanguageCodes, lang.LanguageCode)
			}
		}
	}
	if n := len(resp.Document.Pages); n > 0 {
		result.Confidence /= float32(n)
	}

	p.log.Debug().
		Str("processor", p.config.ProcessorID).
		Int("text_length", len(result.Text)).
		Msg("Document AI OCR completed")

	return finish(result, startTime), nil
}

func (p *DocumentAIOCRService) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// Close closes the underlying Document AI client.
func (p *DocumentAIOCRService) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
