package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"spreadsheet-data-cleaner/internal/models"
)

// gatewayCall records one Complete call made against stubGateway
type gatewayCall struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// stubGateway answers Complete with queued responses, or err when set
type stubGateway struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []gatewayCall
}

func newStubGateway(responses ...string) *stubGateway {
	return &stubGateway{responses: responses}
}

func (s *stubGateway) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, gatewayCall{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("%w: no queued response", models.ErrGateway)
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// writeWorkbook writes rows to the first sheet of a new workbook. nil values
// leave the cell empty.
func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

// readWorkbook returns the raw rows of the first sheet
func readWorkbook(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	return rows
}

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// datasetFromRows builds a dataset from string rows where "" is a missing cell
func datasetFromRows(t *testing.T, names []string, rows [][]string) *models.Dataset {
	t.Helper()

	ds := models.NewDataset(len(rows))
	for c, name := range names {
		cells := make([]models.Cell, len(rows))
		for r, row := range rows {
			cells[r] = models.TextCell(row[c])
		}
		require.NoError(t, ds.AddColumn(name, cells))
	}
	return ds
}
