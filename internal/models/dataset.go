package models

import "fmt"

// Cell is a single spreadsheet value. A cell that is not Present is treated as
// missing (null) by alignment and sparsity filtering.
type Cell struct {
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// NullCell returns an absent cell
func NullCell() Cell {
	return Cell{}
}

// TextCell returns a cell holding value. Only the empty string, which is how a
// blank spreadsheet cell reads, is treated as missing.
func TextCell(value string) Cell {
	if value == "" {
		return Cell{}
	}
	return Cell{Value: value, Present: true}
}

// IsNull reports whether the cell is missing
func (c Cell) IsNull() bool {
	return !c.Present
}

// Column is a named, ordered sequence of cells
type Column struct {
	Name  string `json:"name"`
	Cells []Cell `json:"cells"`
}

// Dataset is an ordered set of named columns that all share the same row count.
// RowCount is kept explicitly so a dataset with no columns still has rows.
type Dataset struct {
	Columns  []Column `json:"columns"`
	RowCount int      `json:"row_count"`
}

// NewDataset creates an empty dataset with the given row count
func NewDataset(rowCount int) *Dataset {
	return &Dataset{RowCount: rowCount}
}

// AddColumn appends a column. The column must have exactly RowCount cells.
func (d *Dataset) AddColumn(name string, cells []Cell) error {
	if len(cells) != d.RowCount {
		return fmt.Errorf("column %q has %d cells, dataset has %d rows", name, len(cells), d.RowCount)
	}
	d.Columns = append(d.Columns, Column{Name: name, Cells: cells})
	return nil
}

// AddNullColumn appends a column where every cell is missing
func (d *Dataset) AddNullColumn(name string) {
	d.Columns = append(d.Columns, Column{Name: name, Cells: make([]Cell, d.RowCount)})
}

// ColumnNames returns the column names in order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the column with the given name
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// Row returns the cells of row i across all columns
func (d *Dataset) Row(i int) []Cell {
	row := make([]Cell, len(d.Columns))
	for c, col := range d.Columns {
		row[c] = col.Cells[i]
	}
	return row
}

// MissingInRow counts the missing cells in row i
func (d *Dataset) MissingInRow(i int) int {
	missing := 0
	for _, col := range d.Columns {
		if col.Cells[i].IsNull() {
			missing++
		}
	}
	return missing
}

// SelectRows builds a new dataset with the same columns containing only the
// given rows, in the given order.
func (d *Dataset) SelectRows(rows []int) *Dataset {
	out := NewDataset(len(rows))
	for _, col := range d.Columns {
		cells := make([]Cell, len(rows))
		for j, r := range rows {
			cells[j] = col.Cells[r]
		}
		out.Columns = append(out.Columns, Column{Name: col.Name, Cells: cells})
	}
	return out
}
