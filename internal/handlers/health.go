package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spreadsheet-data-cleaner/internal/services"
)

// TokenCounter reports language model token usage
type TokenCounter interface {
	TokensUsed() int
}

// HealthHandler serves liveness and run metrics
type HealthHandler struct {
	metrics *services.CleaningMetrics
	tokens  TokenCounter
}

// NewHealthHandler creates a health handler. tokens may be nil.
func NewHealthHandler(metrics *services.CleaningMetrics, tokens TokenCounter) *HealthHandler {
	return &HealthHandler{metrics: metrics, tokens: tokens}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Metrics handles GET /metrics
func (h *HealthHandler) Metrics(c *gin.Context) {
	dashboard := h.metrics.GetDashboardMetrics()
	if h.tokens != nil {
		dashboard["llm_tokens_used"] = h.tokens.TokensUsed()
	}
	RespondOK(c, dashboard)
}

// ResetMetrics handles POST /metrics/reset
func (h *HealthHandler) ResetMetrics(c *gin.Context) {
	h.metrics.ResetMetrics()
	RespondOK(c, gin.H{"message": "Metrics reset"})
}
