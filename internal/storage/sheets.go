package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrRowNotFound is returned when no row in column A matches the wanted id.
var ErrRowNotFound = errors.New("row not found")

// Worksheet is the slice of spreadsheet behaviour the stores depend on. Rows
// and columns are 1-indexed, matching the sheet UI.
type Worksheet interface {
	// FindRowByID scans column A for a cell whose text equals id and returns
	// its row. This is a linear scan over the sheet, O(rows); the spreadsheet
	// offers no real index.
	FindRowByID(id string) (int, error)
	ReadCell(row, col int) (string, error)
	UpdateCell(row, col int, value interface{}) error
	// UpdateRange writes one row of values into an A1 range like "A5:E5".
	UpdateRange(rangeA1 string, values []interface{}) error
	AppendRow(values []interface{}) error
	// RowCount reports the number of non-empty rows, header included.
	RowCount() (int, error)
}

// NewSheetsService builds a Sheets API client from a service account file.
func NewSheetsService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

// GoogleWorksheet is a Worksheet over the first sheet of one spreadsheet.
// Ranges without a sheet prefix address the first sheet, which matches the
// single-sheet layout of both backing tables.
type GoogleWorksheet struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

func NewGoogleWorksheet(svc *sheets.Service, spreadsheetID string, logger *zap.Logger) *GoogleWorksheet {
	return &GoogleWorksheet{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}
}

func (w *GoogleWorksheet) FindRowByID(id string) (int, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, "A:A").Do()
	if err != nil {
		return 0, fmt.Errorf("failed to read id column: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == id {
			return i + 1, nil
		}
	}
	w.logger.Debug("Id not present in sheet", zap.String("id", id), zap.Int("rows_scanned", len(resp.Values)))
	return 0, ErrRowNotFound
}

func (w *GoogleWorksheet) ReadCell(row, col int) (string, error) {
	cell := cellRef(row, col)
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, cell).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read cell %s: %w", cell, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

func (w *GoogleWorksheet) UpdateCell(row, col int, value interface{}) error {
	cell := cellRef(row, col)
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, cell, vr).
		ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("failed to update cell %s: %w", cell, err)
	}
	return nil
}

func (w *GoogleWorksheet) UpdateRange(rangeA1 string, values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rangeA1, vr).
		ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("failed to update range %s: %w", rangeA1, err)
	}
	return nil
}

func (w *GoogleWorksheet) AppendRow(values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, "A:F", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	w.logger.Debug("Appended row", zap.String("spreadsheet_id", w.spreadsheetID), zap.Int("columns", len(values)))
	return nil
}

func (w *GoogleWorksheet) RowCount() (int, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, "A:A").Do()
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return len(resp.Values), nil
}

// cellRef converts 1-indexed coordinates to an A1 reference.
func cellRef(row, col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return fmt.Sprintf("%s%d", letters, row)
}
