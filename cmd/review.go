package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ocrarchive/internal/logger"
	"ocrarchive/internal/review"
	"ocrarchive/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [image-file]",
	Short: "Review an image in the terminal",
	Long: `Extract text from an image and review it in the terminal.

Keys:
  tab / shift+tab  Move between errors, rating and reference number
  1-5, left/right  Set the rating
  ctrl+s           Submit (needs a reference number and a rating)
  esc / ctrl+c     Quit without archiving`,
	Example: `  ocrarchive review receipt.png`,
	Args:    cobra.ExactArgs(1),
	RunE:    runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().String("engine", "", "OCR engine (vision, documentai, openai, tesseract)")
}

func runReview(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("review")

	engine, _ := cmd.Flags().GetString("engine")
	imagePath := args[0]

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var clients closers
	defer clients.closeAll(log)

	ocrService, err := createOCRService(ctx, cfg, engine, log)
	if err != nil {
		return err
	}
	clients.add(ocrService)

	controller, err := newController(ctx, cfg, &clients)
	if err != nil {
		return err
	}

	model := tui.New(ctx, review.NewService(ocrService, controller), filepath.Base(imagePath), data)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("review session failed: %w", err)
	}

	if ref := model.Archived(); ref != "" {
		fmt.Printf("Archived %s\n", ref)
		return nil
	}
	if err := model.Err(); err != nil {
		return err
	}
	fmt.Println("Review closed without archiving")
	return nil
}
