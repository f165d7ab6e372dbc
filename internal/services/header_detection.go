package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"spreadsheet-data-cleaner/internal/logger"
)

// Header detection request settings
const (
	headerDetectionTemperature = 0.1
	headerDetectionMaxTokens   = 10
)

// HeaderRowDetector asks the language model which raw row holds the column headers
type HeaderRowDetector struct {
	gateway Gateway
	log     *logger.Logger
}

// NewHeaderRowDetector creates a new header row detector
func NewHeaderRowDetector(gateway Gateway, log *logger.Logger) *HeaderRowDetector {
	return &HeaderRowDetector{
		gateway: gateway,
		log:     log.With("component", "HeaderRowDetector"),
	}
}

// HeaderDetection is the outcome of one header detection call
type HeaderDetection struct {
	Index    int
	FellBack bool
}

// DetectHeaderRow returns the 0-based index of the header row within preview.
// It never fails: gateway errors, unparseable answers and indexes outside the
// preview all fall back to 0.
func (d *HeaderRowDetector) DetectHeaderRow(ctx context.Context, preview [][]string) int {
	return d.Detect(ctx, preview).Index
}

// Detect is DetectHeaderRow that also reports whether the default was used
func (d *HeaderRowDetector) Detect(ctx context.Context, preview [][]string) HeaderDetection {
	fallback := HeaderDetection{Index: 0, FellBack: true}
	if len(preview) == 0 {
		return fallback
	}

	response, err := d.gateway.Complete(ctx, assistantSystemPrompt, d.buildPrompt(preview), headerDetectionTemperature, headerDetectionMaxTokens)
	if err != nil {
		d.log.Error("Header row detection failed", "error", err)
		return fallback
	}

	index, err := parseRowIndex(response)
	if err != nil {
		d.log.Error("Header row detection failed", "error", err, "response", response)
		return fallback
	}

	if index >= len(preview) {
		d.log.Error("Header row detection failed", "error", "index outside preview", "index", index, "preview_rows", len(preview))
		return fallback
	}

	return HeaderDetection{Index: index}
}

// buildPrompt renders the preview as one line per row
func (d *HeaderRowDetector) buildPrompt(preview [][]string) string {
	var b strings.Builder
	for i, row := range preview {
		fmt.Fprintf(&b, "%d: %s\n", i, formatPreviewRow(row))
	}

	return fmt.Sprintf(`You're a data analyst. Below is a preview of an Excel sheet.
Each row is a list of column values. Identify the row index (0-based) that most likely contains the column headers.

Data Preview:
%s
Respond only with a single integer.`, b.String())
}

func formatPreviewRow(row []string) string {
	cells := make([]string, len(row))
	for i, cell := range row {
		if cell == "" {
			cells[i] = "NaN"
			continue
		}
		cells[i] = cell
	}
	return "[" + strings.Join(cells, ", ") + "]"
}

// parseRowIndex parses a model answer as a single non-negative integer
func parseRowIndex(response string) (int, error) {
	cleaned := strings.Trim(strings.TrimSpace(response), "`.")
	index, err := strconv.Atoi(strings.TrimSpace(cleaned))
	if err != nil {
		return 0, fmt.Errorf("response is not an integer: %w", err)
	}
	if index < 0 {
		return 0, fmt.Errorf("negative row index %d", index)
	}
	return index, nil
}
