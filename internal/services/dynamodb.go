package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"spreadsheet-data-cleaner/internal/models"
)

// runsDateIndex is the GSI keyed by RunsKey and StartedAt
const runsDateIndex = "runs-date-index"

// runRetention is how long run records are kept before DynamoDB expires them
const runRetention = 90 * 24 * time.Hour

// dynamoAPI is the subset of the DynamoDB client used here
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// RunHistoryStore persists one record per cleaning run
type RunHistoryStore struct {
	client    dynamoAPI
	runsTable string
}

// NewRunHistoryStore creates a store over an existing DynamoDB client
func NewRunHistoryStore(client dynamoAPI, runsTable string) *RunHistoryStore {
	return &RunHistoryStore{
		client:    client,
		runsTable: runsTable,
	}
}

// NewRunHistoryStoreFromConfig loads AWS configuration and creates a store
func NewRunHistoryStoreFromConfig(ctx context.Context, runsTable, region string) (*RunHistoryStore, error) {
	if runsTable == "" {
		return nil, fmt.Errorf("%w: runs table name is empty", models.ErrNotConfigured)
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewRunHistoryStore(dynamodb.NewFromConfig(cfg), runsTable), nil
}

// PutRun creates or replaces a run record
func (s *RunHistoryStore) PutRun(ctx context.Context, run *models.CleaningRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid cleaning run: %w", err)
	}
	if run.TTL == 0 {
		run.TTL = models.CalculateTTL(runRetention)
	}

	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return fmt.Errorf("failed to marshal cleaning run: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.runsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put cleaning run: %w", err)
	}

	return nil
}

// GetRun retrieves a run record by id
func (s *RunHistoryStore) GetRun(ctx context.Context, runID string) (*models.CleaningRun, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.runsTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreateRunPK(runID)},
			"SK": &types.AttributeValueMemberS{Value: models.RunRecordSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cleaning run: %w", err)
	}

	if result.Item == nil {
		return nil, models.NewNotFoundError("run", runID)
	}

	var run models.CleaningRun
	if err := attributevalue.UnmarshalMap(result.Item, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cleaning run: %w", err)
	}

	return &run, nil
}

// ListRunsByDate returns the runs started on day, newest first
func (s *RunHistoryStore) ListRunsByDate(ctx context.Context, day time.Time, limit int32) ([]models.CleaningRun, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.runsTable),
		IndexName:              aws.String(runsDateIndex),
		KeyConditionExpression: aws.String("RunsKey = :runsKey"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":runsKey": &types.AttributeValueMemberS{Value: models.GenerateRunsKey(day)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query cleaning runs: %w", err)
	}

	var runs []models.CleaningRun
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &runs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cleaning runs: %w", err)
	}

	return runs, nil
}

// ListRecentRuns walks back day by day from now until limit runs are found
// or days have been searched
func (s *RunHistoryStore) ListRecentRuns(ctx context.Context, days int, limit int32) ([]models.CleaningRun, error) {
	runs := []models.CleaningRun{}
	now := time.Now().UTC()
	for d := 0; d < days && int32(len(runs)) < limit; d++ {
		dayRuns, err := s.ListRunsByDate(ctx, now.AddDate(0, 0, -d), limit-int32(len(runs)))
		if err != nil {
			return nil, err
		}
		runs = append(runs, dayRuns...)
	}
	return runs, nil
}
