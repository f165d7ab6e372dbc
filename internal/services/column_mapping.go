package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
)

// Column mapping request settings
const (
	columnMappingTemperature = 0.2
	columnMappingMaxTokens   = 500
)

var (
	openingFencePattern = regexp.MustCompile("^```[A-Za-z0-9_-]*\\s*")
	closingFencePattern = regexp.MustCompile("\\s*```$")
)

// ColumnMapper asks the language model to match template columns to messy columns
type ColumnMapper struct {
	gateway Gateway
	log     *logger.Logger
}

// NewColumnMapper creates a new column mapper
func NewColumnMapper(gateway Gateway, log *logger.Logger) *ColumnMapper {
	return &ColumnMapper{
		gateway: gateway,
		log:     log.With("component", "ColumnMapper"),
	}
}

// MappingOutcome is the result of one column mapping call
type MappingOutcome struct {
	Mapping  models.ColumnMapping
	FellBack bool
}

// MapColumns returns a mapping with one entry per template column. It never
// fails: any gateway or parsing problem yields a mapping where every template
// column is unmapped.
func (m *ColumnMapper) MapColumns(ctx context.Context, templateColumns, messyColumns []string) models.ColumnMapping {
	return m.Map(ctx, templateColumns, messyColumns).Mapping
}

// Map is MapColumns that also reports whether the empty fallback was used
func (m *ColumnMapper) Map(ctx context.Context, templateColumns, messyColumns []string) MappingOutcome {
	response, err := m.gateway.Complete(ctx, assistantSystemPrompt, m.buildPrompt(templateColumns, messyColumns), columnMappingTemperature, columnMappingMaxTokens)
	if err != nil {
		m.log.Error("Column mapping failed", "error", err)
		return MappingOutcome{Mapping: emptyMapping(templateColumns), FellBack: true}
	}

	parsed, err := parseMappingResponse(response)
	if err != nil {
		m.log.Error("Column mapping failed", "error", err, "response", response)
		return MappingOutcome{Mapping: emptyMapping(templateColumns), FellBack: true}
	}

	mapping := emptyMapping(templateColumns)
	for key, value := range parsed {
		if _, ok := mapping[key]; !ok {
			m.log.Debug("Dropping mapping for unknown template column", "column", key, "value", value)
			continue
		}
		mapping[key] = value
	}

	m.log.Debug("Column mapping", "mapping", map[string]string(mapping))
	return MappingOutcome{Mapping: mapping}
}

// buildPrompt lists both column sets and asks for a raw JSON object
func (m *ColumnMapper) buildPrompt(templateColumns, messyColumns []string) string {
	return fmt.Sprintf(`You are a data assistant. Map the following template columns to the most appropriate messy dataset columns.

Template Columns:
%s

Messy Columns:
%s

Return a JSON dictionary with template column names as keys, and messy column names as values.
Do NOT include any explanations. Only return raw JSON.`, quoteList(templateColumns), quoteList(messyColumns))
}

func quoteList(names []string) string {
	encoded, err := json.Marshal(names)
	if err != nil {
		return strings.Join(names, ", ")
	}
	return string(encoded)
}

func emptyMapping(templateColumns []string) models.ColumnMapping {
	mapping := make(models.ColumnMapping, len(templateColumns))
	for _, col := range templateColumns {
		mapping[col] = ""
	}
	return mapping
}

// parseMappingResponse turns a model answer into a flat name-to-name mapping.
// Null values become "" (no match).
func parseMappingResponse(response string) (map[string]string, error) {
	cleaned := cleanJSONResponse(response)

	span, ok := extractJSONObject(cleaned)
	if !ok {
		return nil, fmt.Errorf("could not extract JSON from model response")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse mapping JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("response is not a valid dictionary")
	}

	mapping := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			mapping[key] = v
		case nil:
			mapping[key] = ""
		default:
			return nil, fmt.Errorf("mapping value for %q is %T, expected a column name", key, value)
		}
	}
	return mapping, nil
}

// cleanJSONResponse removes a surrounding markdown code fence from a model response
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = openingFencePattern.ReplaceAllString(cleaned, "")
		cleaned = closingFencePattern.ReplaceAllString(cleaned, "")
	}

	return strings.TrimSpace(cleaned)
}

// extractJSONObject returns the span from the first '{' to the last '}',
// dropping any prose before or after it
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return strings.TrimSpace(text[start : end+1]), true
}
