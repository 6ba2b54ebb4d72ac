package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ocrarchive/internal/gcloud"
	"ocrarchive/internal/logger"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// SheetsConfig locates the ledger spreadsheet. URL wins over Name.
type SheetsConfig struct {
	URL          string
	Name         string
	WriteHeaders bool
}

// SheetsLedger appends rows to the first worksheet of a Google spreadsheet.
type SheetsLedger struct {
	sheetsService *sheets.Service
	driveService  *drive.Service
	config        SheetsConfig

	spreadsheetID string
	sheetTitle    string
	sheetID       int64

	log zerolog.Logger
}

// NewSheetsLedger creates Sheets and Drive clients from the environment credentials.
// The spreadsheet itself is resolved on first use.
func NewSheetsLedger(ctx context.Context, config SheetsConfig) (*SheetsLedger, error) {
	const op = "NewSheetsLedger"

	client, err := gcloud.HTTPClient(ctx, sheets.SpreadsheetsScope, drive.DriveReadonlyScope)
	if err != nil {
		return nil, wrapError("sheets", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, wrapError("sheets", op, fmt.Errorf("failed to create sheets service: %w", err))
	}

	driveService, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, wrapError("sheets", op, fmt.Errorf("failed to create drive service: %w", err))
	}

	return NewSheetsLedgerWithServices(sheetsService, driveService, config)
}

// NewSheetsLedgerWithServices creates the ledger with explicit services (for testing).
func NewSheetsLedgerWithServices(sheetsService *sheets.Service, driveService *drive.Service, config SheetsConfig) (*SheetsLedger, error) {
	const op = "NewSheetsLedgerWithServices"

	l := &SheetsLedger{
		sheetsService: sheetsService,
		driveService:  driveService,
		config:        config,
		log:           logger.WithComponent("ledger-sheets"),
	}

	if config.URL != "" {
		id, err := extractSpreadsheetID(config.URL)
		if err != nil {
			return nil, wrapError("sheets", op, err)
		}
		l.spreadsheetID = id
	} else if config.Name == "" {
		return nil, wrapError("sheets", op, fmt.Errorf("%w: neither URL nor name configured", ErrSpreadsheetNotFound))
	}

	return l, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", ErrInvalidSheetURL
	}
	return matches[1], nil
}

// Append writes one row below the existing data, values stored as entered.
func (l *SheetsLedger) Append(ctx context.Context, row Row) error {
	const op = "Append"

	if err := l.resolve(ctx); err != nil {
		return wrapError("sheets", op, err)
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{row.ReferenceNumber, row.Rating, row.ErrorNotes}},
	}

	_, err := l.sheetsService.Spreadsheets.Values.Append(
		l.spreadsheetID,
		l.columns(),
		valueRange,
	).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return wrapError("sheets", op, fmt.Errorf("failed to append row: %w", err))
	}

	l.log.Info().
		Str("reference_number", row.ReferenceNumber).
		Int("rating", row.Rating).
		Str("sheet", l.sheetTitle).
		Msg("Appended ledger row")

	return nil
}

// List reads all rows, skipping a header row if present.
func (l *SheetsLedger) List(ctx context.Context) ([]Row, error) {
	const op = "List"

	if err := l.resolve(ctx); err != nil {
		return nil, wrapError("sheets", op, err)
	}

	values, err := l.ReadRange(ctx, l.columns())
	if err != nil {
		return nil, wrapError("sheets", op, err)
	}

	rows := make([]Row, 0, len(values))
	for i, value := range values {
		if i == 0 && len(value) > 0 && fmt.Sprint(value[0]) == Headers[0] {
			continue
		}
		rows = append(rows, rowFromValues(value))
	}
	return rows, nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (l *SheetsLedger) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	l.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := l.sheetsService.Spreadsheets.Values.Get(l.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	return resp.Values, nil
}

// resolve finds the spreadsheet (by name when no URL is configured) and its
// first worksheet.
func (l *SheetsLedger) resolve(ctx context.Context) error {
	const op = "resolve"

	if l.sheetTitle != "" {
		return nil
	}

	if l.spreadsheetID == "" {
		id, err := l.findSpreadsheet(ctx, l.config.Name)
		if err != nil {
			return err
		}
		l.spreadsheetID = id
	}

	spreadsheet, err := l.sheetsService.Spreadsheets.Get(l.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}
	if len(spreadsheet.Sheets) == 0 || spreadsheet.Sheets[0].Properties == nil {
		return fmt.Errorf("%s: %w", op, ErrNoSheets)
	}

	l.sheetTitle = spreadsheet.Sheets[0].Properties.Title
	l.sheetID = spreadsheet.Sheets[0].Properties.SheetId

	l.log.Debug().
		Str("spreadsheet_id", l.spreadsheetID).
		Str("sheet", l.sheetTitle).
		Msg("Resolved ledger spreadsheet")

	if l.config.WriteHeaders {
		if err := l.ensureHeaders(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *SheetsLedger) findSpreadsheet(ctx context.Context, name string) (string, error) {
	const op = "findSpreadsheet"

	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name), spreadsheetMimeType)

	resp, err := l.driveService.Files.List().
		Q(query).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%s: failed to search spreadsheets: %w", op, err)
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("%s: %w: %q", op, ErrSpreadsheetNotFound, name)
	}
	return resp.Files[0].Id, nil
}

// ensureHeaders writes the header row into an empty sheet.
func (l *SheetsLedger) ensureHeaders(ctx context.Context) error {
	const op = "ensureHeaders"

	headerRange := quoteSheet(l.sheetTitle) + "!A1:C1"
	resp, err := l.sheetsService.Spreadsheets.Values.Get(l.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	l.log.Info().Str("sheet", l.sheetTitle).Msg("Adding headers to sheet")

	_, err = l.sheetsService.Spreadsheets.Values.Update(
		l.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{Headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := l.formatHeaders(ctx); err != nil {
		l.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold
func (l *SheetsLedger) formatHeaders(ctx context.Context) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          l.sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(Headers)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        l.sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := l.sheetsService.Spreadsheets.BatchUpdate(l.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *SheetsLedger) columns() string {
	return quoteSheet(l.sheetTitle) + "!A:C"
}

// quoteSheet quotes a worksheet title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// rowFromValues accepts both formatted strings and raw numbers in the rating cell.
func rowFromValues(values []interface{}) Row {
	var row Row
	if len(values) > 0 {
		row.ReferenceNumber = fmt.Sprint(values[0])
	}
	if len(values) > 1 {
		if rating, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(values[1]))); err == nil {
			row.Rating = rating
		}
	}
	if len(values) > 2 {
		row.ErrorNotes = fmt.Sprint(values[2])
	}
	return row
}
