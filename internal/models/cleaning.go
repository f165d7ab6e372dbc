package models

import (
	"fmt"
	"regexp"
	"time"
)

// Output file slot names inside the upload folder
const (
	TemplateFileName = "template.xlsx"
	MessyFileName    = "messy.xlsx"
	CleanedFileName  = "cleaned_output.xlsx"
	RejectedFileName = "rejected_rows.xlsx"
)

// Cleaning run status constants
const (
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// Cleaning run trigger constants
const (
	TriggerHTTP   = "http"
	TriggerLambda = "lambda"
	TriggerCLI    = "cli"
)

// DefaultSparsityThreshold is the fraction of missing cells a row may have
// before it is rejected
const DefaultSparsityThreshold = 0.4

// DefaultPreviewRows bounds the raw rows sent for header detection
const DefaultPreviewRows = 15

// ColumnMapping maps a template column name to a messy column name.
// An empty value means the template column has no match.
type ColumnMapping map[string]string

// Resolve returns the messy column mapped to templateColumn, if any
func (m ColumnMapping) Resolve(templateColumn string) (string, bool) {
	name, ok := m[templateColumn]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Unmapped lists the template columns, in order, that have no usable match in
// messyColumns
func (m ColumnMapping) Unmapped(templateColumns, messyColumns []string) []string {
	present := make(map[string]bool, len(messyColumns))
	for _, name := range messyColumns {
		present[name] = true
	}

	unmapped := []string{}
	for _, col := range templateColumns {
		name, ok := m.Resolve(col)
		if !ok || !present[name] {
			unmapped = append(unmapped, col)
		}
	}
	return unmapped
}

// CleaningResult is the summary returned to the caller of a pipeline run
type CleaningResult struct {
	Message          string        `json:"message"`
	SavedAs          string        `json:"saved_as"`
	RejectedSavedAs  string        `json:"rejected_rows_saved_as"`
	CleanedRowCount  int           `json:"cleaned_row_count"`
	RejectedRowCount int           `json:"rejected_row_count"`
	RunID            string        `json:"run_id"`
	HeaderRowIndex   int           `json:"header_row_index"`
	ColumnMapping    ColumnMapping `json:"column_mapping"`
	UnmappedColumns  []string      `json:"unmapped_columns"`
	ProcessingMS     int64         `json:"processing_ms"`
	ArchivedKeys     []string      `json:"archived_keys,omitempty"`
}

// TotalRows returns kept plus rejected rows
func (r *CleaningResult) TotalRows() int {
	return r.CleanedRowCount + r.RejectedRowCount
}

// CleaningRun is the persisted history record of one pipeline run
type CleaningRun struct {
	// Primary Keys
	PK string `json:"PK" dynamodbav:"PK"` // RUN#{run_id}
	SK string `json:"SK" dynamodbav:"SK"` // RUN

	// GSI for date-ordered listing
	RunsKey   string `json:"RunsKey" dynamodbav:"RunsKey"`     // RUNS#{yyyy-mm-dd}
	StartedAt string `json:"StartedAt" dynamodbav:"StartedAt"` // RFC3339, GSI sort key

	RunID            string        `json:"run_id" dynamodbav:"run_id"`
	Status           string        `json:"status" dynamodbav:"status"`
	Trigger          string        `json:"trigger" dynamodbav:"trigger"`
	TemplateSource   string        `json:"template_source" dynamodbav:"template_source"`
	MessySource      string        `json:"messy_source" dynamodbav:"messy_source"`
	HeaderRowIndex   int           `json:"header_row_index" dynamodbav:"header_row_index"`
	ColumnMapping    ColumnMapping `json:"column_mapping" dynamodbav:"column_mapping"`
	UnmappedColumns  []string      `json:"unmapped_columns" dynamodbav:"unmapped_columns"`
	CleanedRowCount  int           `json:"cleaned_row_count" dynamodbav:"cleaned_row_count"`
	RejectedRowCount int           `json:"rejected_row_count" dynamodbav:"rejected_row_count"`
	ArchivedKeys     []string      `json:"archived_keys,omitempty" dynamodbav:"archived_keys,omitempty"`
	ProcessingMS     int64         `json:"processing_ms" dynamodbav:"processing_ms"`
	Error            string        `json:"error,omitempty" dynamodbav:"error,omitempty"`
	CompletedAt      time.Time     `json:"completed_at" dynamodbav:"completed_at"`
	TTL              int64         `json:"ttl,omitempty" dynamodbav:"ttl,omitempty"`
}

// NewCleaningRun creates an in-progress run record
func NewCleaningRun(runID, trigger, templateSource, messySource string, startedAt time.Time) *CleaningRun {
	return &CleaningRun{
		PK:             CreateRunPK(runID),
		SK:             RunRecordSK,
		RunsKey:        GenerateRunsKey(startedAt),
		StartedAt:      startedAt.UTC().Format(time.RFC3339),
		RunID:          runID,
		Status:         RunStatusInProgress,
		Trigger:        trigger,
		TemplateSource: templateSource,
		MessySource:    messySource,
	}
}

// Complete fills the record from a successful result
func (r *CleaningRun) Complete(result *CleaningResult, completedAt time.Time) {
	r.Status = RunStatusCompleted
	r.HeaderRowIndex = result.HeaderRowIndex
	r.ColumnMapping = result.ColumnMapping
	r.UnmappedColumns = result.UnmappedColumns
	r.CleanedRowCount = result.CleanedRowCount
	r.RejectedRowCount = result.RejectedRowCount
	r.ArchivedKeys = result.ArchivedKeys
	r.ProcessingMS = result.ProcessingMS
	r.CompletedAt = completedAt
}

// Fail marks the record as failed
func (r *CleaningRun) Fail(err error, completedAt time.Time) {
	r.Status = RunStatusFailed
	r.Error = err.Error()
	r.CompletedAt = completedAt
}

// Validate checks the record before it is stored
func (r *CleaningRun) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	switch r.Status {
	case RunStatusInProgress, RunStatusCompleted, RunStatusFailed:
	default:
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.CleanedRowCount < 0 || r.RejectedRowCount < 0 {
		return fmt.Errorf("row counts cannot be negative")
	}
	return nil
}

// RunRecordSK is the sort key used for every run record
const RunRecordSK = "RUN"

// CreateRunPK builds the partition key for a run
func CreateRunPK(runID string) string {
	return fmt.Sprintf("RUN#%s", runID)
}

// GenerateRunsKey builds the listing GSI partition key for a start time
func GenerateRunsKey(startedAt time.Time) string {
	return fmt.Sprintf("RUNS#%s", startedAt.UTC().Format("2006-01-02"))
}

// RunArchivePrefix is the object key prefix for a run's archived files
func RunArchivePrefix(runID string) string {
	return fmt.Sprintf("runs/%s/", runID)
}

// CleaningJobEvent is the payload the cleaning Lambda is invoked with
type CleaningJobEvent struct {
	RunID       string `json:"run_id"`
	Bucket      string `json:"bucket,omitempty"`
	TemplateKey string `json:"template_key"`
	MessyKey    string `json:"messy_key"`
}

// runIDPattern admits ids that are safe as a single path segment and key part
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// Validate checks that both input keys are present and the run id is safe
// to use as a directory name and archive prefix
func (e *CleaningJobEvent) Validate() error {
	if !runIDPattern.MatchString(e.RunID) {
		return fmt.Errorf("invalid run_id: %q", e.RunID)
	}
	if e.TemplateKey == "" || e.MessyKey == "" {
		return fmt.Errorf("template_key and messy_key are required")
	}
	return nil
}

// RunInputKey is the object key an input file is staged under for a run
func RunInputKey(runID, fileName string) string {
	return RunArchivePrefix(runID) + "inputs/" + fileName
}
