package services

import (
	"fmt"
	"sync"
	"time"

	"spreadsheet-data-cleaner/internal/logger"
)

// CleaningMetrics tracks outcomes and row quality across pipeline runs
type CleaningMetrics struct {
	mu                sync.RWMutex
	TotalRuns         int64            `json:"total_runs"`
	SuccessfulRuns    int64            `json:"successful_runs"`
	FailedRuns        int64            `json:"failed_runs"`
	HeaderFallbacks   int64            `json:"header_fallbacks"`
	MappingFallbacks  int64            `json:"mapping_fallbacks"`
	RowsKept          int64            `json:"rows_kept"`
	RowsRejected      int64            `json:"rows_rejected"`
	AvgProcessingTime float64          `json:"avg_processing_time_ms"`
	FailureStreak     int              `json:"failure_streak"`
	LastSuccessfulRun time.Time        `json:"last_successful_run"`
	LastFailedRun     time.Time        `json:"last_failed_run"`
	LastError         string           `json:"last_error,omitempty"`
	RunsByTrigger     map[string]int64 `json:"runs_by_trigger"`
	AlertThresholds   *AlertThresholds `json:"alert_thresholds"`
	LastUpdated       time.Time        `json:"last_updated"`
	log               *logger.Logger
}

// AlertThresholds defines when to raise alerts
type AlertThresholds struct {
	MinSuccessRate      float64 `json:"min_success_rate"`       // Alert if success rate drops below this
	MaxRejectionRate    float64 `json:"max_rejection_rate"`     // Alert if the share of rejected rows exceeds this
	MaxFallbackRate     float64 `json:"max_fallback_rate"`      // Alert if model fallbacks exceed this share of runs
	MaxFailureStreak    int     `json:"max_failure_streak"`     // Alert after this many consecutive failures
	MaxProcessingTimeMs int64   `json:"max_processing_time_ms"` // Alert if average processing exceeds this
}

// CleaningAlert represents an alert condition
type CleaningAlert struct {
	Type      string    `json:"type"`     // success_rate|rejection_rate|fallback_rate|failure_streak|processing_time
	Severity  string    `json:"severity"` // warning|error
	Message   string    `json:"message"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// RunOutcome is what the pipeline reports after each run
type RunOutcome struct {
	Trigger         string
	Success         bool
	Err             error
	HeaderFellBack  bool
	MappingFellBack bool
	RowsKept        int
	RowsRejected    int
	ProcessingTime  time.Duration
}

// DefaultAlertThresholds returns the thresholds used by NewCleaningMetrics
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		MinSuccessRate:      0.8,
		MaxRejectionRate:    0.5,
		MaxFallbackRate:     0.5,
		MaxFailureStreak:    3,
		MaxProcessingTimeMs: 60000,
	}
}

// NewCleaningMetrics creates an empty metrics collector
func NewCleaningMetrics(log *logger.Logger) *CleaningMetrics {
	return &CleaningMetrics{
		RunsByTrigger:   make(map[string]int64),
		AlertThresholds: DefaultAlertThresholds(),
		LastUpdated:     time.Now(),
		log:             log.With("component", "CleaningMetrics"),
	}
}

// RecordRun records a finished pipeline run
func (cm *CleaningMetrics) RecordRun(outcome RunOutcome) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.TotalRuns++
	cm.RunsByTrigger[outcome.Trigger]++
	now := time.Now()

	if outcome.Success {
		cm.SuccessfulRuns++
		cm.FailureStreak = 0
		cm.LastSuccessfulRun = now
		cm.RowsKept += int64(outcome.RowsKept)
		cm.RowsRejected += int64(outcome.RowsRejected)
	} else {
		cm.FailedRuns++
		cm.FailureStreak++
		cm.LastFailedRun = now
		if outcome.Err != nil {
			cm.LastError = outcome.Err.Error()
		}
	}

	if outcome.HeaderFellBack {
		cm.HeaderFallbacks++
	}
	if outcome.MappingFellBack {
		cm.MappingFallbacks++
	}

	processingTimeMs := float64(outcome.ProcessingTime.Nanoseconds()) / 1e6
	if cm.AvgProcessingTime == 0 {
		cm.AvgProcessingTime = processingTimeMs
	} else {
		// Exponential moving average
		cm.AvgProcessingTime = 0.8*cm.AvgProcessingTime + 0.2*processingTimeMs
	}

	cm.LastUpdated = now

	cm.log.Debug("Recorded run",
		"trigger", outcome.Trigger,
		"success", outcome.Success,
		"rows_kept", outcome.RowsKept,
		"rows_rejected", outcome.RowsRejected,
		"processing_ms", processingTimeMs)
}

// CheckAlerts returns the alert conditions that currently hold
func (cm *CleaningMetrics) CheckAlerts() []CleaningAlert {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.checkAlertsLocked(time.Now())
}

func (cm *CleaningMetrics) checkAlertsLocked(now time.Time) []CleaningAlert {
	alerts := []CleaningAlert{}
	t := cm.AlertThresholds

	// Rates are only meaningful after a few runs
	if cm.TotalRuns >= 5 {
		successRate := float64(cm.SuccessfulRuns) / float64(cm.TotalRuns)
		if successRate < t.MinSuccessRate {
			alerts = append(alerts, CleaningAlert{
				Type:      "success_rate",
				Severity:  "warning",
				Message:   fmt.Sprintf("Run success rate (%.1f%%) is below threshold (%.1f%%)", successRate*100, t.MinSuccessRate*100),
				Metric:    "success_rate",
				Value:     successRate,
				Threshold: t.MinSuccessRate,
				Timestamp: now,
			})
		}

		fallbackRate := float64(cm.MappingFallbacks) / float64(cm.TotalRuns)
		if fallbackRate > t.MaxFallbackRate {
			alerts = append(alerts, CleaningAlert{
				Type:      "fallback_rate",
				Severity:  "warning",
				Message:   fmt.Sprintf("Column mapping fell back on %.1f%% of runs", fallbackRate*100),
				Metric:    "mapping_fallback_rate",
				Value:     fallbackRate,
				Threshold: t.MaxFallbackRate,
				Timestamp: now,
			})
		}
	}

	if total := cm.RowsKept + cm.RowsRejected; total > 0 {
		rejectionRate := float64(cm.RowsRejected) / float64(total)
		if rejectionRate > t.MaxRejectionRate {
			alerts = append(alerts, CleaningAlert{
				Type:      "rejection_rate",
				Severity:  "warning",
				Message:   fmt.Sprintf("Rejected row share (%.1f%%) exceeds threshold (%.1f%%)", rejectionRate*100, t.MaxRejectionRate*100),
				Metric:    "rejection_rate",
				Value:     rejectionRate,
				Threshold: t.MaxRejectionRate,
				Timestamp: now,
			})
		}
	}

	if cm.FailureStreak >= t.MaxFailureStreak {
		alerts = append(alerts, CleaningAlert{
			Type:      "failure_streak",
			Severity:  "error",
			Message:   fmt.Sprintf("%d consecutive runs failed, last error: %s", cm.FailureStreak, cm.LastError),
			Metric:    "failure_streak",
			Value:     float64(cm.FailureStreak),
			Threshold: float64(t.MaxFailureStreak),
			Timestamp: now,
		})
	}

	if cm.AvgProcessingTime > float64(t.MaxProcessingTimeMs) {
		alerts = append(alerts, CleaningAlert{
			Type:      "processing_time",
			Severity:  "warning",
			Message:   fmt.Sprintf("Average processing time (%.1fms) exceeds threshold (%dms)", cm.AvgProcessingTime, t.MaxProcessingTimeMs),
			Metric:    "avg_processing_time",
			Value:     cm.AvgProcessingTime,
			Threshold: float64(t.MaxProcessingTimeMs),
			Timestamp: now,
		})
	}

	return alerts
}

// GetDashboardMetrics returns metrics formatted for the /metrics endpoint
func (cm *CleaningMetrics) GetDashboardMetrics() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var successRate float64
	if cm.TotalRuns > 0 {
		successRate = float64(cm.SuccessfulRuns) / float64(cm.TotalRuns)
	}

	var rejectionRate float64
	if total := cm.RowsKept + cm.RowsRejected; total > 0 {
		rejectionRate = float64(cm.RowsRejected) / float64(total)
	}

	byTrigger := make(map[string]int64, len(cm.RunsByTrigger))
	for k, v := range cm.RunsByTrigger {
		byTrigger[k] = v
	}

	return map[string]interface{}{
		"runs": map[string]interface{}{
			"total":          cm.TotalRuns,
			"successful":     cm.SuccessfulRuns,
			"failed":         cm.FailedRuns,
			"success_rate":   successRate,
			"failure_streak": cm.FailureStreak,
			"by_trigger":     byTrigger,
		},
		"fallbacks": map[string]interface{}{
			"header_row": cm.HeaderFallbacks,
			"mapping":    cm.MappingFallbacks,
		},
		"rows": map[string]interface{}{
			"kept":           cm.RowsKept,
			"rejected":       cm.RowsRejected,
			"rejection_rate": rejectionRate,
		},
		"avg_processing_time_ms": cm.AvgProcessingTime,
		"last_successful_run":    cm.LastSuccessfulRun,
		"last_failed_run":        cm.LastFailedRun,
		"alerts":                 cm.checkAlertsLocked(time.Now()),
		"last_updated":           cm.LastUpdated,
	}
}

// ResetMetrics clears all counters
func (cm *CleaningMetrics) ResetMetrics() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.TotalRuns = 0
	cm.SuccessfulRuns = 0
	cm.FailedRuns = 0
	cm.HeaderFallbacks = 0
	cm.MappingFallbacks = 0
	cm.RowsKept = 0
	cm.RowsRejected = 0
	cm.AvgProcessingTime = 0
	cm.FailureStreak = 0
	cm.LastError = ""
	cm.RunsByTrigger = make(map[string]int64)
	cm.LastUpdated = time.Now()

	cm.log.Info("Metrics reset")
}
