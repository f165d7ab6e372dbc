package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
	"spreadsheet-data-cleaner/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedGateway answers Complete with queued responses
type scriptedGateway struct {
	mu        sync.Mutex
	responses []string
}

func (g *scriptedGateway) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.responses) == 0 {
		return "", fmt.Errorf("%w: no queued response", models.ErrGateway)
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

// memDynamo keeps items by partition key. Query always returns no items.
type memDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMemDynamo() *memDynamo {
	return &memDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *memDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := params.Item["PK"].(*types.AttributeValueMemberS).Value
	m.items[pk] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := params.Key["PK"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[pk]}, nil
}

func (m *memDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{}, nil
}

type testServer struct {
	router  *gin.Engine
	slots   *services.FileSlots
	metrics *services.CleaningMetrics
	history *services.RunHistoryStore
}

// newTestServer wires the router over a temp upload folder. history is left
// nil when withHistory is false.
func newTestServer(t *testing.T, gateway services.Gateway, withHistory bool) *testServer {
	t.Helper()

	log := logger.Nop()
	slots, err := services.NewFileSlots(t.TempDir())
	require.NoError(t, err)

	var history *services.RunHistoryStore
	if withHistory {
		history = services.NewRunHistoryStore(newMemDynamo(), "runs")
	}

	metrics := services.NewCleaningMetrics(log)
	pipeline, err := services.NewCleaningPipeline(gateway, services.NewSpreadsheetStore(), services.PipelineOptions{
		SparsityThreshold: models.DefaultSparsityThreshold,
		History:           history,
		Metrics:           metrics,
	}, log)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Log:                log,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		CleaningHandler:    NewCleaningHandler(log, slots, pipeline, nil, history),
		RunsHandler:        NewRunsHandler(log, history),
		HealthHandler:      NewHealthHandler(metrics, nil),
	})

	return &testServer{router: router, slots: slots, metrics: metrics, history: history}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// workbookBytes renders rows as an xlsx file
func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with one file part named field
func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
