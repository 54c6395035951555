// Package handlers provides the HTTP handlers of the scheduled mode: the
// abbreviation list download and the health report.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/jcrcrawler/interfaces"
	"github.com/giygas/jcrcrawler/logging"
	"github.com/giygas/jcrcrawler/tabulator"
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, healthChecker interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		healthChecker: healthChecker,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	LastUpdate    string         `json:"last_update"`
	DataAgeHours  float64        `json:"data_age_hours"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	LastRun       *LastRun       `json:"last_run,omitempty"`
	System        map[string]any `json:"system"`
}

// LastRun summarizes the last successful crawl
type LastRun struct {
	StartedAt     string  `json:"started_at"`
	DurationSecs  float64 `json:"duration_seconds"`
	ResponseBytes int     `json:"response_bytes"`
	Lines         int     `json:"lines"`
	Malformed     int     `json:"malformed"`
	Duplicates    int     `json:"duplicates"`
	DecodeErrors  int     `json:"decode_errors"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// ServeAbbreviations returns the latest list in the same tab separated layout
// as the output file
func (h *HTTPHandlerImpl) ServeAbbreviations(w http.ResponseWriter, r *http.Request) {
	rows := h.dataStore.GetRows()
	if len(rows) == 0 {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Abbreviation list not available yet")
		return
	}

	lastUpdate := h.dataStore.GetLastUpdated().UTC()
	if since, err := http.ParseTime(r.Header.Get("If-Modified-Since")); err == nil {
		if !lastUpdate.Truncate(time.Second).After(since) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	var buf bytes.Buffer
	if err := tabulator.WriteRows(&buf, rows); err != nil {
		logging.Error("Failed to encode abbreviation list", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to encode abbreviation list")
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="UBC.txt"`)
	w.Header().Set("Last-Modified", lastUpdate.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// formatUptimeHuman formats duration into a human-readable string
func (h *HTTPHandlerImpl) formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()

	uptime := time.Duration(0)
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	dataAge, _ := data["data_age_hours"].(float64)

	response := HealthResponse{
		Status:        status,
		LastUpdate:    h.dataStore.GetLastUpdated().Format(time.RFC3339),
		DataAgeHours:  dataAge,
		Uptime:        h.formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	if result := h.dataStore.GetLastResult(); result != nil && !result.StartedAt.IsZero() {
		response.LastRun = &LastRun{
			StartedAt:     result.StartedAt.Format(time.RFC3339),
			DurationSecs:  result.Duration.Seconds(),
			ResponseBytes: result.ResponseBytes,
			Lines:         result.Stats.Lines,
			Malformed:     result.Stats.Malformed,
			Duplicates:    result.Stats.Duplicates,
			DecodeErrors:  result.DecodeErrors,
		}
	}

	h.RespondWithJSON(w, httpStatus, response)
}
