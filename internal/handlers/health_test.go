package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/services"
)

type fixedTokens int

func (f fixedTokens) TokensUsed() int { return int(f) }

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, &scriptedGateway{}, false)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMetrics(t *testing.T) {
	metrics := services.NewCleaningMetrics(logger.Nop())
	metrics.RecordRun(services.RunOutcome{Trigger: "http", Success: true, RowsKept: 4, RowsRejected: 1})

	router := gin.New()
	router.GET("/metrics", NewHealthHandler(metrics, fixedTokens(42)).Metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["llm_tokens_used"])

	runs := body["runs"].(map[string]interface{})
	assert.Equal(t, float64(1), runs["total"])

	rows := body["rows"].(map[string]interface{})
	assert.Equal(t, float64(4), rows["kept"])
}

func TestMetrics_WithoutTokenCounter(t *testing.T) {
	srv := newTestServer(t, &scriptedGateway{}, false)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "llm_tokens_used")
}

func TestResetMetrics(t *testing.T) {
	srv := newTestServer(t, &scriptedGateway{}, false)
	srv.metrics.RecordRun(services.RunOutcome{Trigger: "http", Success: true, RowsKept: 3})

	w := srv.do(httptest.NewRequest(http.MethodPost, "/metrics/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Metrics reset")

	w = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	runs := body["runs"].(map[string]interface{})
	assert.Equal(t, float64(0), runs["total"])
	rows := body["rows"].(map[string]interface{})
	assert.Equal(t, float64(0), rows["kept"])
}
