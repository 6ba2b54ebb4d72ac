package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ocrarchive/internal/imaging"
	"ocrarchive/internal/ocr"
)

// Example demonstrates basic usage of the OCR service.
func Example() {
	// Credentials come from GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS;
	// main loads .env with godotenv before anything runs.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ocrService, err := ocr.NewGoogleVisionOCRService(ctx)
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer ocrService.Close()

	file, err := os.Open("receipt.jpg")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer file.Close()

	img, _, err := imaging.Decode(file)
	if err != nil {
		log.Fatalf("Failed to decode image: %v", err)
	}

	// Engines expect the binarized image
	text, err := ocrService.ProcessImage(ctx, imaging.Normalize(img))
	if err != nil {
		log.Fatalf("Failed to process image: %v", err)
	}

	fmt.Printf("Extracted text (%d characters):\n%s\n", len(text), text)
}

// Example_metadata demonstrates OCR processing with detailed metadata.
func Example_metadata() {
	ctx := context.Background()

	ocrService, err := ocr.NewService(ctx, ocr.Settings{Engine: "tesseract"})
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}

	file, err := os.Open("receipt.png")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer file.Close()

	img, _, err := imaging.Decode(file)
	if err != nil {
		log.Fatalf("Failed to decode image: %v", err)
	}

	result, err := ocrService.ProcessImageWithMetadata(ctx, imaging.Normalize(img))
	if err != nil {
		log.Fatalf("Failed to process image: %v", err)
	}

	fmt.Printf("OCR Results:\n")
	fmt.Printf("  Engine: %s\n", result.Engine)
	fmt.Printf("  Confidence: %.2f%%\n", result.Confidence*100)
	fmt.Printf("  Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
	fmt.Printf("  Processing time: %v\n", result.ProcessingDuration)
	fmt.Printf("\nExtracted text:\n%s\n", result.Text)
}

// Example_errorHandling demonstrates proper error handling patterns.
func Example_errorHandling() {
	ctx := context.Background()

	ocrService, err := ocr.NewService(ctx, ocr.Settings{Engine: os.Getenv("OCR_ENGINE")})
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Fatalf("Please set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
		case errors.Is(err, ocr.ErrUnknownEngine):
			log.Fatalf("OCR_ENGINE must be one of vision, documentai, openai, tesseract")
		}
		log.Fatalf("Failed to create OCR service: %v", err)
	}

	file, err := os.Open("scan.tiff")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer file.Close()

	img, _, err := imaging.Decode(file)
	if err != nil {
		log.Fatalf("Failed to decode image: %v", err)
	}

	text, err := ocrService.ProcessImage(ctx, imaging.Normalize(img))
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrImageTooLarge):
			log.Printf("Image is too large for processing. Maximum size is 20MB.")
			return
		case errors.Is(err, ocr.ErrEngineUnavailable):
			log.Printf("The tesseract binary is not installed.")
			return
		default:
			log.Fatalf("OCR processing failed: %v", err)
		}
	}

	// An image without text is not an error
	if text == "" {
		fmt.Println("No text found")
	}
}
