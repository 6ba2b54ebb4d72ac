package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/archive"
	"ocrarchive/internal/config"
	"ocrarchive/internal/ledger"
	"ocrarchive/internal/ocr"
)

// closers releases the clients a command opened.
type closers []io.Closer

func (c *closers) add(v interface{}) {
	if closer, ok := v.(io.Closer); ok {
		*c = append(*c, closer)
	}
}

func (c closers) closeAll(log zerolog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close client")
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newOCRService builds the configured engine; engine overrides OCR_ENGINE when set.
func newOCRService(ctx context.Context, cfg *config.Config, engine string) (ocr.OCRService, error) {
	if engine != "" {
		cfg.OCREngine = engine
	}
	if err := cfg.ValidateRecognizer(); err != nil {
		return nil, err
	}

	return ocr.NewService(ctx, ocr.Settings{
		Engine:            cfg.OCREngine,
		ProjectID:         cfg.GoogleCloudProject,
		Location:          cfg.GoogleCloudLocation,
		ProcessorID:       cfg.DocumentAIProcessorID,
		OpenAIAPIKey:      cfg.OpenAIAPIKey,
		OpenAIModel:       cfg.OpenAIModel,
		TesseractPath:     cfg.TesseractPath,
		TesseractLanguage: cfg.TesseractLanguage,
	})
}

func newRepository(ctx context.Context, cfg *config.Config) (archive.Repository, error) {
	if err := cfg.ValidateArchive(); err != nil {
		return nil, err
	}

	switch cfg.ArchiveBackend {
	case config.ArchiveGCS:
		repo, err := archive.NewGCSRepository(ctx, cfg.GCSArchiveBucket, cfg.GCSArchivePrefix)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.ArchiveDrive:
		repo, err := archive.NewDriveRepository(ctx, cfg.DriveParentFolderID)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: %q", archive.ErrUnknownBackend, cfg.ArchiveBackend)
	}
}

func newLedger(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
	if err := cfg.ValidateLedger(); err != nil {
		return nil, err
	}

	switch cfg.LedgerBackend {
	case config.LedgerNone:
		return ledger.NewDiscard(), nil
	case config.LedgerFirestore:
		l, err := ledger.NewFirestoreLedger(ctx, cfg.GoogleCloudProject, cfg.LedgerFirestoreCollection)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		l, err := ledger.NewSheetsLedger(ctx, ledger.SheetsConfig{
			URL:          cfg.GoogleSheetURL,
			Name:         cfg.LedgerSpreadsheetName,
			WriteHeaders: cfg.LedgerWriteHeaders,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// newController wires the archive repository and ledger into a controller.
// Opened clients are registered with c.
func newController(ctx context.Context, cfg *config.Config, c *closers) (*archival.Controller, error) {
	repo, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive repository: %w", err)
	}
	c.add(repo)

	l, err := newLedger(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	c.add(l)

	return archival.NewController(repo, l, archival.Config{
		StagingDir: cfg.StagingDir,
		Retry: archival.RetryPolicy{
			MaxAttempts: cfg.DeleteMaxAttempts,
			Delay:       cfg.DeleteRetryDelay,
		},
	}), nil
}
