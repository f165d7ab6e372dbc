package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdaclient "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
)

// lambdaAPI is the subset of the Lambda client used here
type lambdaAPI interface {
	Invoke(ctx context.Context, params *lambdaclient.InvokeInput, optFns ...func(*lambdaclient.Options)) (*lambdaclient.InvokeOutput, error)
}

// AsyncDispatcher stages slot files in S3 and hands the run to the cleaning Lambda
type AsyncDispatcher struct {
	lambda       lambdaAPI
	archive      *S3Client
	functionName string
	log          *logger.Logger
}

// NewAsyncDispatcher creates a dispatcher over existing clients
func NewAsyncDispatcher(api lambdaAPI, archive *S3Client, functionName string, log *logger.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{
		lambda:       api,
		archive:      archive,
		functionName: functionName,
		log:          log.With("component", "AsyncDispatcher"),
	}
}

// NewAsyncDispatcherFromConfig loads AWS configuration and creates a dispatcher
func NewAsyncDispatcherFromConfig(ctx context.Context, functionName, region string, archive *S3Client, log *logger.Logger) (*AsyncDispatcher, error) {
	if functionName == "" || archive == nil {
		return nil, fmt.Errorf("%w: async cleaning needs a function name and an S3 bucket", models.ErrNotConfigured)
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAsyncDispatcher(lambdaclient.NewFromConfig(cfg), archive, functionName, log), nil
}

// Dispatch uploads the template and messy files and invokes the cleaning
// function asynchronously. It returns the event that was sent.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, runID, templatePath, messyPath string) (*models.CleaningJobEvent, error) {
	event := &models.CleaningJobEvent{
		RunID:       runID,
		Bucket:      d.archive.GetBucketName(),
		TemplateKey: models.RunInputKey(runID, models.TemplateFileName),
		MessyKey:    models.RunInputKey(runID, models.MessyFileName),
	}

	if _, err := d.archive.UploadFile(ctx, event.TemplateKey, templatePath, XLSXContentType); err != nil {
		return nil, fmt.Errorf("failed to stage template: %w", err)
	}
	if _, err := d.archive.UploadFile(ctx, event.MessyKey, messyPath, XLSXContentType); err != nil {
		return nil, fmt.Errorf("failed to stage messy file: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cleaning event: %w", err)
	}

	_, err = d.lambda.Invoke(ctx, &lambdaclient.InvokeInput{
		FunctionName:   aws.String(d.functionName),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke cleaning function: %w", err)
	}

	d.log.Info("Dispatched async cleaning run", "run_id", runID, "function", d.functionName)
	return event, nil
}

// DispatchSlots dispatches the uploaded template and messy slots. Both slots
// must exist; a missing one returns a NotFoundError.
func (d *AsyncDispatcher) DispatchSlots(ctx context.Context, slots *FileSlots, runID string) (*models.CleaningJobEvent, error) {
	var event *models.CleaningJobEvent
	err := slots.WithShared(func() error {
		for _, slot := range []Slot{SlotTemplate, SlotMessy} {
			if !slots.existsLocked(slot) {
				return models.NewNotFoundError("file", string(slot))
			}
		}
		var dispatchErr error
		event, dispatchErr = d.Dispatch(ctx, runID, slots.Path(SlotTemplate), slots.Path(SlotMessy))
		return dispatchErr
	})
	return event, err
}
