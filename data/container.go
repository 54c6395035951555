// Package data provides thread-safe storage of the latest crawl output for the
// scheduled mode. The DataContainer swaps whole snapshots atomically so readers
// never observe a half-updated list.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/jcrcrawler/crawler"
	"github.com/giygas/jcrcrawler/interfaces"
	"github.com/giygas/jcrcrawler/logging"
	"github.com/giygas/jcrcrawler/tabulator"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

type failure struct {
	at      time.Time
	message string
}

// DataContainer holds the latest crawl output with atomic pointers for zero-downtime updates
type DataContainer struct {
	rows            atomic.Value // []tabulator.Row
	lastResult      atomic.Pointer[crawler.Result]
	lastUpdated     atomic.Value // time.Time
	lastFailure     atomic.Pointer[failure]
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.rows.Store(make([]tabulator.Row, 0))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetRows returns the latest abbreviation list
func (dc *DataContainer) GetRows() []tabulator.Row {
	if v := dc.rows.Load(); v != nil {
		if rows, ok := v.([]tabulator.Row); ok {
			return rows
		}
	}

	logging.Warn("Abbreviation list is empty or invalid")
	return []tabulator.Row{}
}

// GetLastResult returns the result of the last successful crawl, or nil
func (dc *DataContainer) GetLastResult() *crawler.Result {
	return dc.lastResult.Load()
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// GetLastFailure returns when the last failed crawl happened and why.
// The time is zero when the last crawl succeeded.
func (dc *DataContainer) GetLastFailure() (time.Time, string) {
	if f := dc.lastFailure.Load(); f != nil {
		return f.at, f.message
	}
	return time.Time{}, ""
}

// IsUpdating returns true if a crawl is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the stored list with the result's rows
func (dc *DataContainer) UpdateData(result *crawler.Result) {
	dc.UpdateDataAt(result, time.Now())
}

// UpdateDataAt replaces the stored list and records producedAt as its age.
// A list reloaded from disk keeps the time it was originally written.
func (dc *DataContainer) UpdateDataAt(result *crawler.Result, producedAt time.Time) {
	if result == nil {
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = make([]tabulator.Row, 0)
	}

	// Atomic swap (zero downtime replacement)
	dc.rows.Store(rows)
	dc.lastResult.Store(result)
	dc.lastUpdated.Store(producedAt)
	dc.lastFailure.Store(nil)
}

// RecordFailure remembers a failed crawl; the stored list is kept
func (dc *DataContainer) RecordFailure(err error) {
	if err == nil {
		return
	}
	dc.lastFailure.Store(&failure{at: time.Now(), message: err.Error()})
}

// BeginUpdate marks the start of a crawl.
// Returns true if the crawl can proceed, false if another one is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a crawl
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
