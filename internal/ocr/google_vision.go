package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"ocrarchive/internal/gcloud"
	"ocrarchive/internal/logger"
)

// GoogleVisionOCRService implements OCRService using Google Cloud Vision API.
type GoogleVisionOCRService struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewGoogleVisionOCRService creates a new OCR service with credentials from environment.
func NewGoogleVisionOCRService(ctx context.Context) (*GoogleVisionOCRService, error) {
	const op = "NewGoogleVisionOCRService"

	opts, err := gcloud.ClientOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to load credentials")
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewGoogleVisionOCRServiceWithClient(client), nil
}

// NewGoogleVisionOCRServiceWithClient creates a new OCR service with an explicit client (for testing).
func NewGoogleVisionOCRServiceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionOCRService {
	return &GoogleVisionOCRService{
		client: client,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// ProcessImage extracts text from a normalized image.
func (g *GoogleVisionOCRService) ProcessImage(ctx context.Context, img image.Image) (string, error) {
	result, err := g.ProcessImageWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata extracts text with confidence and language details.
func (g *GoogleVisionOCRService) ProcessImageWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, err := encode(op, img)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.Responses[0]
	if imageResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.Error.Message))
	}

	result := resultFromAnnotation(imageResp.FullTextAnnotation)

	g.log.Debug().
		Int("text_length", len(result.Text)).
		Float32("confidence", result.Confidence).
		Msg("Vision text detection completed")

	return finish(result, startTime), nil
}

// resultFromAnnotation collects text, average page confidence, and languages.
func resultFromAnnotation(annotation *visionpb.TextAnnotation) *OCRResult {
	result := &OCRResult{Engine: "vision"}
	if annotation == nil {
		return result
	}

	result.Text = strings.TrimRight(annotation.Text, "\n")

	var confidenceSum float32
	languageSet := make(map[string]bool)
	for _, page := range annotation.Pages {
		confidenceSum += page.Confidence
		if page.Property == nil {
			continue
		}
		for _, lang := range page.Property.DetectedLanguages {
			if lang.LanguageCode != "" && !languageSet[lang.LanguageCode] {
				languageSet[lang.LanguageCode] = true
				result.LanguageCodes = append(result.LanguageCodes, lang.LanguageCode)
			}
		}
	}
	if len(annotation.Pages) > 0 {
		result.Confidence = confidenceSum / float32(len(annotation.Pages))
	}

	return result
}

// Close closes the underlying Vision client.
func (g *GoogleVisionOCRService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
