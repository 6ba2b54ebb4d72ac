// Package ledger records one row per archived submission in an append-only table.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ocrarchive/internal/logger"
)

// Headers is the optional first row of a spreadsheet ledger.
var Headers = []interface{}{"Reference Number", "Rating", "Errors"}

// Row is one ledger record. Rows are appended, never updated.
type Row struct {
	ReferenceNumber string
	Rating          int
	ErrorNotes      string
	RecordedAt      time.Time // Set by backends that track it; zero otherwise
}

// Ledger appends rows.
type Ledger interface {
	Append(ctx context.Context, row Row) error
}

// Lister is implemented by ledgers that can read their rows back.
type Lister interface {
	List(ctx context.Context) ([]Row, error)
}

var (
	// ErrSpreadsheetNotFound is returned when no spreadsheet matches the configured name.
	ErrSpreadsheetNotFound = errors.New("ledger spreadsheet not found")

	// ErrInvalidSheetURL is returned when GOOGLE_SHEET_URL has no spreadsheet id.
	ErrInvalidSheetURL = errors.New("invalid Google Sheets URL format")

	// ErrNoSheets is returned when the spreadsheet has no worksheet to append to.
	ErrNoSheets = errors.New("spreadsheet has no sheets")
)

// LedgerError wraps a failed ledger call with the backend and operation.
type LedgerError struct {
	Op      string
	Backend string
	Err     error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger/%s: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func wrapError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return err
	}
	return &LedgerError{Op: op, Backend: backend, Err: err}
}

// Discard drops every row. It backs LEDGER_BACKEND=none.
type Discard struct {
	log zerolog.Logger
}

// NewDiscard returns a ledger that records nothing.
func NewDiscard() *Discard {
	return &Discard{log: logger.WithComponent("ledger-none")}
}

// Append logs the row and drops it.
func (d *Discard) Append(_ context.Context, row Row) error {
	d.log.Debug().Str("reference_number", row.ReferenceNumber).Msg("Ledger disabled, row not recorded")
	return nil
}
