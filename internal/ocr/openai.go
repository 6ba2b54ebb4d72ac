package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"ocrarchive/internal/logger"
)

const transcribePrompt = `Transcribe all text visible in this image exactly as written.
Preserve line breaks and reading order. Do not correct spelling, translate, summarize, or add commentary.
If the image contains no text, answer with an empty response.`

// OpenAIOCRService implements OCRService by asking a vision-capable chat model
// to transcribe the image.
type OpenAIOCRService struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIOCRService creates an engine backed by the OpenAI chat completions API.
func NewOpenAIOCRService(apiKey, model string) (*OpenAIOCRService, error) {
	if apiKey == "" {
		return nil, WrapOCRError("NewOpenAIOCRService", ErrMissingCredentials, "OPENAI_API_KEY is not set")
	}
	return NewOpenAIOCRServiceWithClient(openai.NewClient(apiKey), model), nil
}

// NewOpenAIOCRServiceWithClient creates the engine with an explicit client (for testing).
func NewOpenAIOCRServiceWithClient(client *openai.Client, model string) *OpenAIOCRService {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIOCRService{
		client: client,
		model:  model,
		log:    logger.WithComponent("ocr-openai"),
	}
}

// ProcessImage extracts text from a normalized image.
func (s *OpenAIOCRService) ProcessImage(ctx context.Context, img image.Image) (string, error) {
	result, err := s.ProcessImageWithMetadata(ctx, img)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata sends the image inline as a data URL.
func (s *OpenAIOCRService) ProcessImageWithMetadata(ctx context.Context, img image.Image) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	content, err := encode(op, img)
	if err != nil {
		return nil, err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(content)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: transcribePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("OpenAI request failed: %v", err))
	}
	if len(resp.Choices) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response choices from OpenAI")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)

	s.log.Debug().
		Str("model", s.model).
		Int("text_length", len(text)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("OpenAI transcription completed")

	return finish(&OCRResult{Text: text, Engine: "openai"}, startTime), nil
}
