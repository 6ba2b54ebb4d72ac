package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ocrarchive/internal/logger"
	"ocrarchive/internal/review"
	"ocrarchive/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review page",
	Long: `Start the browser review surface.

Upload an image, read the extracted text, note recognition errors, rate the
result and enter a reference number. Submit stays disabled until both a
reference number and a rating are set.

The server listens on HTTP_ADDR (default :8501) and stops gracefully on
SIGINT or SIGTERM.`,
	Example: `  # Serve on the default address
  ocrarchive serve

  # Serve on another port with the tesseract engine
  ocrarchive serve --addr :9000 --engine tesseract`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().String("engine", "", "OCR engine (vision, documentai, openai, tesseract)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	engine, _ := cmd.Flags().GetString("engine")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := web.NewHandler(review.NewService(ocrService, controller), cfg.MaxUploadBytes)
	server := &http.Server{
		Addr:              addr,
		Handler:           web.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("engine", cfg.OCREngine).
			Str("archive", cfg.ArchiveBackend).
			Str("ledger", cfg.LedgerBackend).
			Msg("Review server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("review server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down review server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down review server: %w", err)
	}
	return nil
}
