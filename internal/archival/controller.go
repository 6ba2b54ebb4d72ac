// Package archival turns a completed review into durable records: a folder
// named after the reference number holding the extracted text, the original
// image and the rating, plus one ledger row.
package archival

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ocrarchive/internal/archive"
	"ocrarchive/internal/ledger"
	"ocrarchive/internal/logger"
	"ocrarchive/pkg/models"
)

// Config controls where artifacts are staged and how cleanup is retried.
type Config struct {
	StagingDir string
	Retry      RetryPolicy
}

// Receipt describes what one Archive call did.
type Receipt struct {
	SubmissionID    string
	ReferenceNumber string
	FolderID        string
	FolderCreated   bool
	Entries         []archive.Entry
	CleanupFailures []string // Staged files that could not be deleted
	LedgerRecorded  bool
	LedgerErr       error // Logged and suppressed; never returned by Archive
}

// Controller runs the archival workflow. Archive calls are serialized because
// staged file names are derived from the reference number alone.
type Controller struct {
	repo   archive.Repository
	ledger ledger.Ledger
	config Config

	remove func(string) error
	sleep  func(time.Duration)

	mu  sync.Mutex
	log zerolog.Logger
}

// NewController creates a controller. A nil ledger records nothing.
func NewController(repo archive.Repository, l ledger.Ledger, config Config) *Controller {
	if l == nil {
		l = ledger.NewDiscard()
	}
	if config.StagingDir == "" {
		config.StagingDir = "."
	}
	if config.Retry.MaxAttempts < 1 {
		config.Retry.MaxAttempts = 1
	}

	return &Controller{
		repo:   repo,
		ledger: l,
		config: config,
		remove: os.Remove,
		sleep:  time.Sleep,
		log:    logger.WithComponent("archival"),
	}
}

// artifact is one file written to the archive folder.
type artifact struct {
	name    string
	content []byte
}

// artifacts lists the files for sub in upload order: text, image, rating.
func artifacts(sub *models.Submission) []artifact {
	ref := sub.ReferenceNumber
	return []artifact{
		{name: ref + "_extracted_text.txt", content: []byte(sub.ExtractedText)},
		{name: ref + ".png", content: sub.Image},
		{name: ref + "_rating.txt", content: []byte(models.RatingText(sub.Rating))},
	}
}

// Archive resolves the folder, uploads the artifacts in order and appends
// the ledger row. Folder and upload errors are returned; cleanup and ledger
// errors are logged and reported on the receipt only. Archiving the same
// submission twice stores everything twice.
func (c *Controller) Archive(ctx context.Context, sub *models.Submission) (*Receipt, error) {
	const op = "Archive"

	if sub == nil {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("submission", nil, "submission is required"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.WithSubmission(c.log, sub.ID, sub.ReferenceNumber)
	startTime := time.Now()

	folder, created, err := c.resolveFolder(ctx, log, sub.ReferenceNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve folder: %w", op, err)
	}

	receipt := &Receipt{
		SubmissionID:    sub.ID,
		ReferenceNumber: sub.ReferenceNumber,
		FolderID:        folder.ID,
		FolderCreated:   created,
	}

	for _, a := range artifacts(sub) {
		entry, err := c.upload(ctx, log, folder.ID, a, receipt)
		if err != nil {
			log.Error().Err(err).Str("file", a.name).Msg("Upload failed, archival aborted")
			return nil, fmt.Errorf("%s: failed to upload %s: %w", op, a.name, err)
		}
		receipt.Entries = append(receipt.Entries, *entry)
	}

	row := ledger.Row{
		ReferenceNumber: sub.ReferenceNumber,
		Rating:          sub.Rating,
		ErrorNotes:      sub.ErrorNotes,
	}
	if err := c.ledger.Append(ctx, row); err != nil {
		log.Error().Err(err).Msg("Ledger append failed, artifacts remain archived")
		receipt.LedgerErr = err
	} else {
		receipt.LedgerRecorded = true
	}

	log.Info().
		Str("folder_id", folder.ID).
		Bool("folder_created", created).
		Int("entries", len(receipt.Entries)).
		Int("cleanup_failures", len(receipt.CleanupFailures)).
		Bool("ledger_recorded", receipt.LedgerRecorded).
		Dur("duration", time.Since(startTime)).
		Msg("Submission archived")

	return receipt, nil
}

// resolveFolder reuses the first folder called name or creates one. Lookup
// and creation are separate calls, so concurrent sessions may both create it.
func (c *Controller) resolveFolder(ctx context.Context, log zerolog.Logger, name string) (*archive.Folder, bool, error) {
	folders, err := c.repo.FindFolders(ctx, name)
	if err != nil {
		return nil, false, err
	}

	if len(folders) > 0 {
		if len(folders) > 1 {
			log.Warn().Int("matches", len(folders)).Msg("Several archive folders share this name, using the first")
		}
		return &folders[0], false, nil
	}

	folder, err := c.repo.CreateFolder(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return folder, true, nil
}

// upload stages a, uploads it and removes the staged copy whether or not the
// upload succeeded.
func (c *Controller) upload(ctx context.Context, log zerolog.Logger, folderID string, a artifact, receipt *Receipt) (*archive.Entry, error) {
	path := filepath.Join(c.config.StagingDir, a.name)
	if err := os.WriteFile(path, a.content, 0600); err != nil {
		return nil, fmt.Errorf("failed to stage file: %w", err)
	}

	entry, err := c.repo.Upload(ctx, folderID, a.name, path)

	if cleanupErr := c.removeStaged(log, path); cleanupErr != nil {
		receipt.CleanupFailures = append(receipt.CleanupFailures, path)
	}

	if err != nil {
		return nil, err
	}
	return entry, nil
}

// removeStaged deletes path, retrying while the OS reports it locked.
// A file that is already gone counts as deleted.
func (c *Controller) removeStaged(log zerolog.Logger, path string) error {
	policy := c.config.Retry

	var err error
	attempt := 1
	for ; attempt <= policy.MaxAttempts; attempt++ {
		err = c.remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if !isLocked(err) {
			break
		}
		log.Debug().Err(err).Str("file", path).Int("attempt", attempt).Msg("Staged file locked")
		if attempt < policy.MaxAttempts {
			c.sleep(policy.Delay)
		}
	}

	log.Warn().
		Err(err).
		Str("file", path).
		Int("attempts", min(attempt, policy.MaxAttempts)).
		Msg("Failed to delete staged file")
	return err
}
