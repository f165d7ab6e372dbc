package services

import (
	"context"
	"time"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
)

// CleanedMessage is the summary message of a successful run
const CleanedMessage = "Data mapped and cleaned successfully"

// PipelineOptions configures a CleaningPipeline. Archive, History and Metrics
// are optional.
type PipelineOptions struct {
	SparsityThreshold float64
	PreviewRows       int
	Archive           *S3Client
	History           *RunHistoryStore
	Metrics           *CleaningMetrics
}

// RunInput names the files of one run. RunID and Trigger are filled in when
// empty; the sources default to the local paths.
type RunInput struct {
	RunID          string
	Trigger        string
	TemplatePath   string
	MessyPath      string
	CleanedPath    string
	RejectedPath   string
	TemplateSource string
	MessySource    string
}

// CleaningPipeline runs header detection, column mapping, alignment and
// sparsity filtering over one template/messy pair
type CleaningPipeline struct {
	store       *SpreadsheetStore
	detector    *HeaderRowDetector
	mapper      *ColumnMapper
	aligner     *SchemaAligner
	filter      *SparsityFilter
	previewRows int
	archive     *S3Client
	history     *RunHistoryStore
	metrics     *CleaningMetrics
	log         *logger.Logger
}

// NewCleaningPipeline creates a new cleaning pipeline
func NewCleaningPipeline(gateway Gateway, store *SpreadsheetStore, opts PipelineOptions, log *logger.Logger) (*CleaningPipeline, error) {
	filter, err := NewSparsityFilter(opts.SparsityThreshold)
	if err != nil {
		return nil, err
	}

	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = models.DefaultPreviewRows
	}

	return &CleaningPipeline{
		store:       store,
		detector:    NewHeaderRowDetector(gateway, log),
		mapper:      NewColumnMapper(gateway, log),
		aligner:     NewSchemaAligner(log),
		filter:      filter,
		previewRows: previewRows,
		archive:     opts.Archive,
		history:     opts.History,
		metrics:     opts.Metrics,
		log:         log.With("component", "CleaningPipeline"),
	}, nil
}

// RunSlots runs the pipeline over the upload folder slots while holding the
// slots' write lock
func (p *CleaningPipeline) RunSlots(ctx context.Context, slots *FileSlots, runID, trigger string) (*models.CleaningResult, error) {
	var result *models.CleaningResult
	err := slots.WithExclusive(func() error {
		var runErr error
		result, runErr = p.Run(ctx, RunInput{
			RunID:        runID,
			Trigger:      trigger,
			TemplatePath: slots.Path(SlotTemplate),
			MessyPath:    slots.Path(SlotMessy),
			CleanedPath:  slots.Path(SlotCleaned),
			RejectedPath: slots.Path(SlotRejected),
		})
		return runErr
	})
	return result, err
}

// Run executes one cleaning run. Load and write failures return a
// *models.PipelineError; archive and history failures are only logged.
func (p *CleaningPipeline) Run(ctx context.Context, in RunInput) (*models.CleaningResult, error) {
	start := time.Now()
	if in.RunID == "" {
		in.RunID = models.GenerateRunID()
	}
	if in.Trigger == "" {
		in.Trigger = models.TriggerHTTP
	}
	if in.TemplateSource == "" {
		in.TemplateSource = in.TemplatePath
	}
	if in.MessySource == "" {
		in.MessySource = in.MessyPath
	}

	log := p.log.With("run_id", in.RunID, "trigger", in.Trigger)
	log.Info("Starting cleaning run",
		"template", in.TemplateSource,
		"messy", in.MessySource,
		"sparsity_threshold", p.filter.Threshold())

	run := models.NewCleaningRun(in.RunID, in.Trigger, in.TemplateSource, in.MessySource, start)

	result, outcome, err := p.execute(ctx, in, log)
	outcome.Trigger = in.Trigger
	outcome.ProcessingTime = time.Since(start)

	if err != nil {
		log.Error("Cleaning run failed", "error", err)
		outcome.Err = err
		run.Fail(err, time.Now())
		p.recordHistory(ctx, run, log)
		p.recordMetrics(outcome, log)
		return nil, err
	}

	result.RunID = in.RunID
	result.ArchivedKeys = p.archiveOutputs(ctx, in, log)
	result.ProcessingMS = outcome.ProcessingTime.Milliseconds()

	run.Complete(result, time.Now())
	p.recordHistory(ctx, run, log)

	outcome.Success = true
	p.recordMetrics(outcome, log)

	log.Info("Cleaning run completed",
		"rows", models.FormatRowCounts(result.CleanedRowCount, result.RejectedRowCount),
		"total_rows", result.TotalRows(),
		"header_row_index", result.HeaderRowIndex,
		"unmapped_columns", result.UnmappedColumns,
		"processing_ms", result.ProcessingMS)

	return result, nil
}

func (p *CleaningPipeline) execute(ctx context.Context, in RunInput, log *logger.Logger) (*models.CleaningResult, RunOutcome, error) {
	var outcome RunOutcome

	preview, err := p.store.ReadPreview(in.MessyPath, p.previewRows)
	if err != nil {
		return nil, outcome, models.NewPipelineError("read messy preview", err)
	}

	header := p.detector.Detect(ctx, preview)
	outcome.HeaderFellBack = header.FellBack
	log.Debug("Detected header row", "index", header.Index, "fell_back", header.FellBack)

	template, err := p.store.ReadTable(in.TemplatePath, 0)
	if err != nil {
		return nil, outcome, models.NewPipelineError("load template", err)
	}
	messy, err := p.store.ReadTable(in.MessyPath, header.Index)
	if err != nil {
		return nil, outcome, models.NewPipelineError("load messy file", err)
	}

	templateColumns := template.ColumnNames()
	messyColumns := messy.ColumnNames()

	mapped := p.mapper.Map(ctx, templateColumns, messyColumns)
	outcome.MappingFellBack = mapped.FellBack

	aligned := p.aligner.AlignToTemplate(templateColumns, messy, mapped.Mapping)
	kept, rejected := p.filter.Partition(aligned)
	outcome.RowsKept = kept.RowCount
	outcome.RowsRejected = rejected.RowCount

	if err := p.store.WriteTable(in.CleanedPath, kept); err != nil {
		return nil, outcome, models.NewPipelineError("write cleaned output", err)
	}
	if err := p.store.WriteTable(in.RejectedPath, rejected); err != nil {
		return nil, outcome, models.NewPipelineError("write rejected rows", err)
	}

	return &models.CleaningResult{
		Message:          CleanedMessage,
		SavedAs:          in.CleanedPath,
		RejectedSavedAs:  in.RejectedPath,
		CleanedRowCount:  kept.RowCount,
		RejectedRowCount: rejected.RowCount,
		HeaderRowIndex:   header.Index,
		ColumnMapping:    mapped.Mapping,
		UnmappedColumns:  mapped.Mapping.Unmapped(templateColumns, messyColumns),
	}, outcome, nil
}

func (p *CleaningPipeline) archiveOutputs(ctx context.Context, in RunInput, log *logger.Logger) []string {
	if p.archive == nil {
		return nil
	}
	keys, err := p.archive.ArchiveRun(ctx, in.RunID, []string{in.CleanedPath, in.RejectedPath})
	if err != nil {
		log.Warn("Failed to archive run outputs", "error", err, "bucket", p.archive.GetBucketName())
	}
	return keys
}

func (p *CleaningPipeline) recordHistory(ctx context.Context, run *models.CleaningRun, log *logger.Logger) {
	if p.history == nil {
		return
	}
	if err := p.history.PutRun(ctx, run); err != nil {
		log.Warn("Failed to record run history", "error", err)
	}
}

func (p *CleaningPipeline) recordMetrics(outcome RunOutcome, log *logger.Logger) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordRun(outcome)
	for _, alert := range p.metrics.CheckAlerts() {
		log.Warn("Cleaning alert", "type", alert.Type, "severity", alert.Severity, "message", alert.Message)
	}
}
