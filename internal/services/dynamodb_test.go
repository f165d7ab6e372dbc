package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadsheet-data-cleaner/internal/models"
)

func TestRunHistoryStore_NotConfigured(t *testing.T) {
	_, err := NewRunHistoryStoreFromConfig(context.Background(), "", "us-west-2")
	assert.True(t, errors.Is(err, models.ErrNotConfigured))
}

func TestRunHistoryStore_PutAndGet(t *testing.T) {
	api := newFakeDynamo()
	store := NewRunHistoryStore(api, "cleaning-runs")
	ctx := context.Background()

	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	run := models.NewCleaningRun("run_abc", models.TriggerHTTP, "template.xlsx", "messy.xlsx", started)
	run.Complete(&models.CleaningResult{
		CleanedRowCount:  2,
		RejectedRowCount: 1,
		HeaderRowIndex:   3,
		ColumnMapping:    models.ColumnMapping{"Name": "full_name", "Email": ""},
		UnmappedColumns:  []string{"Email"},
		ProcessingMS:     120,
	}, started.Add(time.Second))

	require.NoError(t, store.PutRun(ctx, run))
	assert.Equal(t, "cleaning-runs", *api.lastPut.TableName)
	assert.NotZero(t, run.TTL, "a retention TTL is set")

	got, err := store.GetRun(ctx, "run_abc")
	require.NoError(t, err)
	assert.Equal(t, "RUN#run_abc", got.PK)
	assert.Equal(t, "RUN", got.SK)
	assert.Equal(t, "RUNS#2026-03-14", got.RunsKey)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.CleanedRowCount)
	assert.Equal(t, 1, got.RejectedRowCount)
	assert.Equal(t, 3, got.HeaderRowIndex)
	assert.Equal(t, "full_name", got.ColumnMapping["Name"])
	assert.Equal(t, []string{"Email"}, got.UnmappedColumns)
}

func TestRunHistoryStore_GetMissing(t *testing.T) {
	store := NewRunHistoryStore(newFakeDynamo(), "cleaning-runs")

	_, err := store.GetRun(context.Background(), "run_missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRunHistoryStore_PutRejectsInvalid(t *testing.T) {
	api := newFakeDynamo()
	store := NewRunHistoryStore(api, "cleaning-runs")

	err := store.PutRun(context.Background(), &models.CleaningRun{Status: models.RunStatusCompleted})
	assert.Error(t, err)
	assert.Nil(t, api.lastPut)
}

func TestRunHistoryStore_ListRecentRuns(t *testing.T) {
	api := newFakeDynamo()
	store := NewRunHistoryStore(api, "cleaning-runs")
	ctx := context.Background()

	now := time.Now().UTC()
	for id, started := range map[string]time.Time{
		"a": now.Add(-2 * time.Minute),
		"b": now.Add(-1 * time.Minute),
		"c": now.AddDate(0, 0, -1),
		"d": now.AddDate(0, 0, -30),
	} {
		require.NoError(t, store.PutRun(ctx, models.NewCleaningRun(id, models.TriggerCLI, "t", "m", started)))
	}

	runs, err := store.ListRecentRuns(ctx, 7, 25)
	require.NoError(t, err)

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	// Runs near midnight fall on the previous day, so only membership is checked
	assert.Subset(t, ids, []string{"a", "b", "c"})
	assert.NotContains(t, ids, "d")

	limited, err := store.ListRecentRuns(ctx, 7, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NotEmpty(t, api.queries)
	assert.Equal(t, runsDateIndex, *api.queries[0].IndexName)
	assert.False(t, *api.queries[0].ScanIndexForward)
}
