package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/logger"
	"ocrarchive/internal/review"
	"ocrarchive/pkg/models"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [image-file]",
	Short: "Archive a reviewed image without the interactive review",
	Long: `Extract text from an image and archive it together with a rating and
error notes, exactly as the review page would on submit.

A folder named after the reference number is reused if it exists and created
otherwise. The extracted text, the original image and the rating are uploaded
into it, and one row is appended to the ledger.

Use --text-file to archive a text you already reviewed instead of running OCR.

Environment:
  ARCHIVE_BACKEND        drive (default) or gcs
  DRIVE_PARENT_FOLDER_ID Drive folder that holds the per-reference folders
  GCS_ARCHIVE_BUCKET     Bucket for the gcs archive
  LEDGER_BACKEND         sheets (default), firestore or none`,
	Example: `  # Extract and archive under INV007 with rating 4
  ocrarchive archive receipt.png --ref INV007 --rating 4

  # Record recognition mistakes
  ocrarchive archive receipt.png --ref INV007 --rating 2 --errors "total misread"

  # Archive a corrected text without running OCR
  ocrarchive archive receipt.png --ref INV007 --rating 5 --text-file reviewed.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().String("ref", "", "Reference number (required, at most 10 characters)")
	archiveCmd.Flags().Int("rating", 0, "Quality rating from 1 to 5 (required)")
	archiveCmd.Flags().String("errors", "", "Notes on recognition errors")
	archiveCmd.Flags().String("text-file", "", "Use this text instead of running OCR")
	archiveCmd.Flags().String("engine", "", "OCR engine (vision, documentai, openai, tesseract)")
	archiveCmd.Flags().Int("timeout", 300, "OCR timeout in seconds; a started archival always runs to completion")
	archiveCmd.Flags().Bool("json", false, "Print the receipt as JSON")

	_ = archiveCmd.MarkFlagRequired("ref")
	_ = archiveCmd.MarkFlagRequired("rating")
}

// receiptOutput is the JSON form of an archival receipt.
type receiptOutput struct {
	SubmissionID    string   `json:"submission_id"`
	ReferenceNumber string   `json:"reference_number"`
	FolderID        string   `json:"folder_id"`
	FolderCreated   bool     `json:"folder_created"`
	Files           []string `json:"files"`
}

func runArchive(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("archive")

	ref, _ := cmd.Flags().GetString("ref")
	rating, _ := cmd.Flags().GetInt("rating")
	notes, _ := cmd.Flags().GetString("errors")
	textFile, _ := cmd.Flags().GetString("text-file")
	engine, _ := cmd.Flags().GetString("engine")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	imagePath := args[0]
	ref = strings.TrimSpace(ref)

	// Fail on bad inputs before any client is created
	if err := models.ValidateReferenceNumber(ref); err != nil {
		return err
	}
	if err := models.ValidateRating(rating); err != nil {
		return err
	}

	if _, err := validateImageFile(imagePath, log); err != nil {
		return err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var clients closers
	defer clients.closeAll(log)

	controller, err := newController(ctx, cfg, &clients)
	if err != nil {
		return err
	}

	form := &review.Form{
		ImageName:       filepath.Base(imagePath),
		Image:           data,
		ErrorNotes:      notes,
		Rating:          rating,
		ReferenceNumber: ref,
	}

	var svc *review.Service
	if textFile != "" {
		text, err := os.ReadFile(textFile)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		form.ExtractedText = string(text)
		svc = review.NewService(nil, controller)
	} else {
		ocrService, err := createOCRService(ctx, cfg, engine, log)
		if err != nil {
			return err
		}
		clients.add(ocrService)
		svc = review.NewService(ocrService, controller)

		text, err := svc.Extract(ctx, form.ImageName, data)
		if err != nil {
			return handleOCRError(err, log)
		}
		form.ExtractedText = text
	}

	receipt, err := svc.Submit(ctx, form)
	if err != nil {
		if errors.Is(err, review.ErrSubmitDisabled) {
			return fmt.Errorf("a reference number and a rating from 1 to 5 are required")
		}
		return fmt.Errorf("archival failed: %w", err)
	}

	return printReceipt(os.Stdout, receipt, jsonOutput)
}

// printReceipt reports the archived files. Ledger and cleanup outcomes are
// logged by the controller and not shown here.
func printReceipt(w io.Writer, receipt *archival.Receipt, jsonOutput bool) error {
	out := receiptOutput{
		SubmissionID:    receipt.SubmissionID,
		ReferenceNumber: receipt.ReferenceNumber,
		FolderID:        receipt.FolderID,
		FolderCreated:   receipt.FolderCreated,
	}
	for _, e := range receipt.Entries {
		out.Files = append(out.Files, e.Name)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	folder := "existing folder"
	if out.FolderCreated {
		folder = "new folder"
	}
	if _, err := fmt.Fprintf(w, "Archived %s in %s %s\n", out.ReferenceNumber, folder, out.FolderID); err != nil {
		return err
	}
	for _, name := range out.Files {
		if _, err := fmt.Fprintf(w, "  %s\n", name); err != nil {
			return err
		}
	}
	return nil
}
