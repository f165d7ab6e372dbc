package services

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"spreadsheet-data-cleaner/internal/models"
)

const outputSheetName = "Sheet1"

// SpreadsheetStore reads and writes xlsx workbooks. Only the first sheet of a
// workbook is read.
type SpreadsheetStore struct{}

// NewSpreadsheetStore creates a new spreadsheet store
func NewSpreadsheetStore() *SpreadsheetStore {
	return &SpreadsheetStore{}
}

// ReadPreview returns up to maxRows raw rows with no header interpretation
func (s *SpreadsheetStore) ReadPreview(path string, maxRows int) ([][]string, error) {
	rows, err := s.readRows(path)
	if err != nil {
		return nil, err
	}
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows, nil
}

// ReadTable parses the first sheet using row headerRow (0-based) as column
// names. Rows above the header are skipped; rows below it become data. An
// empty sheet read from row 0 yields an empty dataset.
func (s *SpreadsheetStore) ReadTable(path string, headerRow int) (*models.Dataset, error) {
	rows, err := s.readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && headerRow == 0 {
		return models.NewDataset(0), nil
	}
	if headerRow < 0 || headerRow >= len(rows) {
		return nil, fmt.Errorf("header row %d is outside the sheet (%d rows) in %s", headerRow, len(rows), path)
	}

	header := rows[headerRow]
	data := rows[headerRow+1:]

	width := len(header)
	for _, row := range data {
		if len(row) > width {
			width = len(row)
		}
	}

	names := uniqueHeaderNames(header, width)
	ds := models.NewDataset(len(data))
	for c, name := range names {
		cells := make([]models.Cell, len(data))
		for r, row := range data {
			if c < len(row) {
				cells[r] = models.TextCell(row[c])
			}
		}
		if err := ds.AddColumn(name, cells); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// WriteTable writes ds to path as a single-sheet workbook with a header row.
// Missing cells are left blank; numeric text is written as a number.
func (s *SpreadsheetStore) WriteTable(path string, ds *models.Dataset) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for c, col := range ds.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(outputSheetName, cell, col.Name); err != nil {
			return fmt.Errorf("failed to write header %q: %w", col.Name, err)
		}

		for r, value := range col.Cells {
			if value.IsNull() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(outputSheetName, cell, cellValue(value)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	// Save next to the target and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create temp workbook for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := f.SaveAs(tmpPath); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move workbook into %s: %w", path, err)
	}
	return nil
}

func (s *SpreadsheetStore) readRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening Excel file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in %s", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", path, err)
	}
	return rows, nil
}

// uniqueHeaderNames names blank header cells "Unnamed: <index>" and suffixes
// repeated names with ".1", ".2", ...
func uniqueHeaderNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = header[i]
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}

		base := name
		for n := seen[base]; seen[name] > 0; n++ {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		seen[base]++
		if name != base {
			seen[name]++
		}
		names[i] = name
	}
	return names
}

// cellValue writes numbers back as numbers when the text round-trips exactly
func cellValue(c models.Cell) interface{} {
	if f, err := strconv.ParseFloat(c.Value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		if strconv.FormatFloat(f, 'f', -1, 64) == c.Value {
			return f
		}
	}
	return c.Value
}
