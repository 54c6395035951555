// Package interfaces defines the abstractions shared by the scheduled mode:
// the crawl job, the store holding its latest output and the HTTP surface
// reading from it.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/jcrcrawler/crawler"
	"github.com/giygas/jcrcrawler/tabulator"
)

// DataStore defines the contract for the latest abbreviation list.
// It provides thread-safe access with atomic replacement on update.
type DataStore interface {
	// Data retrieval methods
	GetRows() []tabulator.Row
	GetLastResult() *crawler.Result
	GetLastUpdated() time.Time
	GetLastFailure() (time.Time, string)
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(result *crawler.Result)
	UpdateDataAt(result *crawler.Result, producedAt time.Time)
	RecordFailure(err error)
	BeginUpdate() bool
	EndUpdate()
}

// Crawler runs the fetch, normalize and tabulate pipeline once
type Crawler interface {
	Crawl(ctx context.Context) (*crawler.Result, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	ServeAbbreviations(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status name, the response data and the HTTP status
	HealthCheck() (status string, data map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled crawl time
	CalculateNextUpdate() time.Time
}
