package storage

import (
	"fmt"
	"strings"
)

// fakeWorksheet is an in-memory Worksheet used across the storage tests.
// Rows are stored as strings, mirroring how the spreadsheet hands cells back.
type fakeWorksheet struct {
	rows [][]string

	findErr   error
	readErr   error
	updateErr error
	appendErr error
	countErr  error

	rangeUpdates []string // A1 ranges passed to UpdateRange, in order
}

func newFakeWorksheet(rows ...[]string) *fakeWorksheet {
	return &fakeWorksheet{rows: rows}
}

func (f *fakeWorksheet) FindRowByID(id string) (int, error) {
	if f.findErr != nil {
		return 0, f.findErr
	}
	for i, row := range f.rows {
		if len(row) > 0 && row[0] == id {
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

func (f *fakeWorksheet) ReadCell(row, col int) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	if row < 1 || row > len(f.rows) {
		return "", nil
	}
	cells := f.rows[row-1]
	if col < 1 || col > len(cells) {
		return "", nil
	}
	return cells[col-1], nil
}

func (f *fakeWorksheet) UpdateCell(row, col int, value interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	cells := f.rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = fmt.Sprint(value)
	f.rows[row-1] = cells
	return nil
}

func (f *fakeWorksheet) UpdateRange(rangeA1 string, values []interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rangeUpdates = append(f.rangeUpdates, rangeA1)

	// Only ranges of the form A<row>:<col><row> are used by the stores.
	var startCol, endCol byte
	var row, row2 int
	if _, err := fmt.Sscanf(rangeA1, "%c%d:%c%d", &startCol, &row, &endCol, &row2); err != nil {
		return fmt.Errorf("unsupported range %q: %w", rangeA1, err)
	}
	for i, v := range values {
		col := int(startCol-'A') + 1 + i
		if err := f.UpdateCell(row, col, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeWorksheet) AppendRow(values []interface{}) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeWorksheet) RowCount() (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.rows), nil
}

func (f *fakeWorksheet) cell(row, col int) string {
	v, _ := f.ReadCell(row, col)
	return v
}

func (f *fakeWorksheet) lastRow() []string {
	if len(f.rows) == 0 {
		return nil
	}
	return f.rows[len(f.rows)-1]
}

func (f *fakeWorksheet) String() string {
	var b strings.Builder
	for _, row := range f.rows {
		b.WriteString(strings.Join(row, "|"))
		b.WriteString("\n")
	}
	return b.String()
}
