package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"spreadsheet-data-cleaner/internal/app"
	"spreadsheet-data-cleaner/internal/config"
	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
	"spreadsheet-data-cleaner/internal/services"
)

// LambdaResponse represents the function response
type LambdaResponse struct {
	Success        bool                   `json:"success"`
	Message        string                 `json:"message"`
	RunID          string                 `json:"run_id"`
	Result         *models.CleaningResult `json:"result,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ProcessingTime int64                  `json:"processing_time_ms"`
}

// cleaningRunner downloads a run's inputs and cleans them. The pipeline
// archives the outputs under runs/{run_id}/ in the configured bucket.
type cleaningRunner struct {
	pipeline *services.CleaningPipeline
	archive  *services.S3Client
	workDir  string
	log      *logger.Logger
}

// newCleaningRunner loads configuration and builds the pipeline. The function
// needs a bucket to read its inputs from.
func newCleaningRunner(ctx context.Context) (*cleaningRunner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if application.Archive == nil {
		return nil, fmt.Errorf("S3_BUCKET_NAME is required for the cleaning function")
	}

	return &cleaningRunner{
		pipeline: application.Pipeline,
		archive:  application.Archive,
		workDir:  os.TempDir(),
		log:      log.With("component", "CleaningLambda"),
	}, nil
}

// HandleLambdaEvent is the main Lambda handler function
func (r *cleaningRunner) HandleLambdaEvent(ctx context.Context, event models.CleaningJobEvent) (LambdaResponse, error) {
	start := time.Now()
	if event.RunID == "" {
		event.RunID = models.GenerateRunID()
	}
	log := r.log.With("run_id", event.RunID)
	log.Info("Cleaning function started", "template_key", event.TemplateKey, "messy_key", event.MessyKey)

	fail := func(message string, err error) LambdaResponse {
		log.Error(message, "error", err)
		return LambdaResponse{
			Success:        false,
			Message:        message,
			RunID:          event.RunID,
			Error:          err.Error(),
			ProcessingTime: time.Since(start).Milliseconds(),
		}
	}

	if err := event.Validate(); err != nil {
		return fail("Invalid event", err), nil
	}

	runDir, err := os.MkdirTemp(r.workDir, "run-*")
	if err != nil {
		return fail("Failed to prepare work directory", err), err
	}
	defer os.RemoveAll(runDir)

	archive := r.archive.WithBucket(event.Bucket)
	in := services.RunInput{
		RunID:          event.RunID,
		Trigger:        models.TriggerLambda,
		TemplatePath:   filepath.Join(runDir, models.TemplateFileName),
		MessyPath:      filepath.Join(runDir, models.MessyFileName),
		CleanedPath:    filepath.Join(runDir, models.CleanedFileName),
		RejectedPath:   filepath.Join(runDir, models.RejectedFileName),
		TemplateSource: "s3://" + archive.GetBucketName() + "/" + event.TemplateKey,
		MessySource:    "s3://" + archive.GetBucketName() + "/" + event.MessyKey,
	}

	if err := archive.DownloadFile(ctx, event.TemplateKey, in.TemplatePath); err != nil {
		return fail("Failed to download template", err), notFoundIsFinal(err)
	}
	if err := archive.DownloadFile(ctx, event.MessyKey, in.MessyPath); err != nil {
		return fail("Failed to download messy file", err), notFoundIsFinal(err)
	}

	result, err := r.pipeline.Run(ctx, in)
	if err != nil {
		// Pipeline errors are deterministic, so the invocation is not retried
		var pipelineErr *models.PipelineError
		if errors.As(err, &pipelineErr) {
			return fail("Processing failed", err), nil
		}
		return fail("Processing failed", err), err
	}

	response := LambdaResponse{
		Success:        true,
		Message:        result.Message,
		RunID:          event.RunID,
		Result:         result,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	log.Info("Cleaning function completed",
		"rows", models.FormatRowCounts(result.CleanedRowCount, result.RejectedRowCount),
		"processing_ms", response.ProcessingTime)

	return response, nil
}

// notFoundIsFinal drops errors for missing objects so they are not retried
func notFoundIsFinal(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

// main is the entry point for the Lambda function
func main() {
	runner, err := newCleaningRunner(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize:", err)
		os.Exit(1)
	}
	lambda.Start(runner.HandleLambdaEvent)
}
