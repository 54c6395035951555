// Package health provides health checking functionality for the scheduled crawler.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/jcrcrawler/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	schedule  []time.Duration
	now       func() time.Time
}

// NewHealthChecker creates a new health checker. schedule holds the daily
// crawl times as offsets from midnight, in ascending order.
func NewHealthChecker(dataStore interfaces.DataStore, schedule []time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		schedule:  schedule,
		now:       time.Now,
	}
}

// HealthCheck returns HTTP-specific health data.
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	rows := h.dataStore.GetRows()
	lastUpdate := h.dataStore.GetLastUpdated()
	failedAt, failure := h.dataStore.GetLastFailure()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)
	lastRunFailed := !failedAt.IsZero() && failedAt.After(lastUpdate)

	switch {
	case len(rows) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case lastRunFailed:
		// Serving the previous list
		status = "degraded"
		httpStatus = http.StatusOK

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"rows":           len(rows),
		"is_updating":    isUpdating,
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if lastRunFailed {
		data["last_failure"] = failedAt.Format(time.RFC3339)
		data["last_error"] = failure
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled crawl time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return nextUpdate(h.now(), h.schedule)
}

func nextUpdate(now time.Time, schedule []time.Duration) time.Time {
	if len(schedule) == 0 {
		return time.Time{}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, offset := range schedule {
		if at := midnight.Add(offset); at.After(now) {
			return at
		}
	}

	// Past the last run of the day
	tomorrow := midnight.AddDate(0, 0, 1)
	return tomorrow.Add(schedule[0])
}
