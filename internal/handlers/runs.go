package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
	"spreadsheet-data-cleaner/internal/services"
)

const (
	defaultRunsDays  = 7
	maxRunsDays      = 90
	defaultRunsLimit = 25
)

// RunsHandler exposes the run history table
type RunsHandler struct {
	log     *logger.Logger
	history *services.RunHistoryStore
}

// NewRunsHandler creates a new runs handler. history may be nil.
func NewRunsHandler(log *logger.Logger, history *services.RunHistoryStore) *RunsHandler {
	return &RunsHandler{
		log:     log.With("handler", "RunsHandler"),
		history: history,
	}
}

// ListRuns handles GET /runs?days=7&limit=25
func (h *RunsHandler) ListRuns(c *gin.Context) {
	if h.history == nil {
		RespondError(c, http.StatusServiceUnavailable, "Run history is not configured", nil)
		return
	}

	days := parseDays(c.Query("days"))
	limit := parseLimit(c.Query("limit"))

	runs, err := h.history.ListRecentRuns(c.Request.Context(), days, limit)
	if err != nil {
		h.log.Error("Failed to list runs", "error", err)
		RespondError(c, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	RespondOK(c, gin.H{
		"runs":  runs,
		"count": len(runs),
		"days":  days,
	})
}

// GetRun handles GET /runs/:id
func (h *RunsHandler) GetRun(c *gin.Context) {
	if h.history == nil {
		RespondError(c, http.StatusServiceUnavailable, "Run history is not configured", nil)
		return
	}

	run, err := h.history.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "Run not found", nil)
			return
		}
		h.log.Error("Failed to get run", "run_id", c.Param("id"), "error", err)
		RespondError(c, http.StatusInternalServerError, "Failed to get run", err)
		return
	}

	RespondOK(c, run)
}

func parseLimit(limitStr string) int32 {
	switch limitStr {
	case "10":
		return 10
	case "25":
		return 25
	case "50":
		return 50
	case "100":
		return 100
	default:
		return defaultRunsLimit
	}
}

func parseDays(daysStr string) int {
	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		return defaultRunsDays
	}
	if days > maxRunsDays {
		return maxRunsDays
	}
	return days
}
