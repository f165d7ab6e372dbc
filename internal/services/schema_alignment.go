package services

import (
	"fmt"
	"math"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
)

// SchemaAligner rebuilds messy data in the shape of the template
type SchemaAligner struct {
	log *logger.Logger
}

// NewSchemaAligner creates a new schema aligner
func NewSchemaAligner(log *logger.Logger) *SchemaAligner {
	return &SchemaAligner{log: log.With("component", "SchemaAligner")}
}

// AlignToTemplate returns a dataset with exactly templateColumns, in order.
// Each column copies the mapped messy column by row position; a column whose
// mapping is empty or names a column the messy dataset does not have is
// entirely null. The result has the messy dataset's row count.
func (a *SchemaAligner) AlignToTemplate(templateColumns []string, messy *models.Dataset, mapping models.ColumnMapping) *models.Dataset {
	aligned := models.NewDataset(messy.RowCount)

	for _, templateCol := range templateColumns {
		messyName, ok := mapping.Resolve(templateCol)
		if !ok {
			aligned.AddNullColumn(templateCol)
			continue
		}

		source, found := messy.Column(messyName)
		if !found {
			a.log.Warn("Mapped column not present in messy data", "template_column", templateCol, "messy_column", messyName)
			aligned.AddNullColumn(templateCol)
			continue
		}

		cells := make([]models.Cell, messy.RowCount)
		copy(cells, source.Cells)
		aligned.Columns = append(aligned.Columns, models.Column{Name: templateCol, Cells: cells})
	}

	return aligned
}

// SparsityFilter splits rows by how many of their cells are missing
type SparsityFilter struct {
	threshold float64
}

// NewSparsityFilter creates a filter allowing floor(columns*threshold) missing
// cells per row. threshold must be within [0, 1].
func NewSparsityFilter(threshold float64) (*SparsityFilter, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("sparsity threshold must be between 0 and 1, got %v", threshold)
	}
	return &SparsityFilter{threshold: threshold}, nil
}

// Threshold returns the configured ratio
func (f *SparsityFilter) Threshold() float64 {
	return f.threshold
}

// MaxMissing returns the largest missing-cell count a row may have and still be kept
func (f *SparsityFilter) MaxMissing(columnCount int) int {
	return int(math.Floor(float64(columnCount) * f.threshold))
}

// Partition returns the kept and rejected rows, each in input order
func (f *SparsityFilter) Partition(ds *models.Dataset) (kept, rejected *models.Dataset) {
	maxMissing := f.MaxMissing(len(ds.Columns))

	var keptRows, rejectedRows []int
	for i := 0; i < ds.RowCount; i++ {
		if ds.MissingInRow(i) <= maxMissing {
			keptRows = append(keptRows, i)
		} else {
			rejectedRows = append(rejectedRows, i)
		}
	}

	return ds.SelectRows(keptRows), ds.SelectRows(rejectedRows)
}
