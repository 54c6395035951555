// Package scheduler runs the crawl on a daily schedule for the service mode.
// It performs an initial crawl on Start, re-crawls at the configured times,
// and keeps the data container current.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/giygas/jcrcrawler/crawler"
	"github.com/giygas/jcrcrawler/interfaces"
	"github.com/giygas/jcrcrawler/logging"
	"github.com/giygas/jcrcrawler/tabulator"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles crawls and staleness monitoring using dependency injection
type Scheduler struct {
	dataStore    interfaces.DataStore
	crawler      interfaces.Crawler
	scheduler    *gocron.Scheduler
	at           string
	fallbackFile string
	staleAfter   time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithFallbackFile serves the list previously written to path when the
// initial crawl fails
func WithFallbackFile(path string) Option {
	return func(s *Scheduler) {
		s.fallbackFile = path
	}
}

// WithLocation sets the time zone the schedule is interpreted in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.scheduler = gocron.NewScheduler(loc)
	}
}

// NewScheduler creates a new scheduler crawling daily at the given
// semicolon separated HH:MM times
func NewScheduler(dataStore interfaces.DataStore, c interfaces.Crawler, at string, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		dataStore:  dataStore,
		crawler:    c,
		scheduler:  gocron.NewScheduler(time.Local),
		at:         at,
		staleAfter: 25 * time.Hour,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the initial crawl, then schedules the daily ones
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil {
		if !s.loadFallback(err) {
			logging.Error("Failed to perform initial crawl", "error", err)
			return fmt.Errorf("initial crawl failed: %w", err)
		}
	}

	_, err := s.scheduler.Every(1).Days().At(s.at).Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to update abbreviation list", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule crawls", "error", err)
		return fmt.Errorf("failed to schedule crawls: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Crawls scheduled", "at", s.at)

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and cancels a crawl in progress
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// updateData performs one crawl and stores its result
func (s *Scheduler) updateData() error {
	// Prevent concurrent crawls
	if !s.dataStore.BeginUpdate() {
		logging.Info("Crawl already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting abbreviation list update", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	result, err := s.crawler.Crawl(s.ctx)
	if err != nil {
		s.dataStore.RecordFailure(err)
		if errors.Is(err, crawler.ErrFetchFailed) {
			return fmt.Errorf("keeping the previous list: %w", err)
		}
		return fmt.Errorf("crawl failed: %w", err)
	}

	s.dataStore.UpdateData(result)

	logging.Info("Abbreviation list update completed",
		"duration", time.Since(start).String(),
		"rows", len(result.Rows))

	return nil
}

// loadFallback seeds the store from the last written list after a failed
// initial crawl. It reports whether anything was loaded.
func (s *Scheduler) loadFallback(cause error) bool {
	if s.fallbackFile == "" {
		return false
	}

	rows, err := tabulator.ReadRows(s.fallbackFile)
	if err != nil || len(rows) == 0 {
		logging.Warn("No previous abbreviation list to fall back to", "file", s.fallbackFile, "error", err)
		return false
	}

	producedAt := time.Now()
	if info, err := os.Stat(s.fallbackFile); err == nil {
		producedAt = info.ModTime()
	}

	s.dataStore.UpdateDataAt(&crawler.Result{Rows: rows, Stats: tabulator.Stats{Rows: len(rows)}}, producedAt)
	s.dataStore.RecordFailure(cause)

	logging.Warn("Initial crawl failed, serving the previous list",
		"file", s.fallbackFile,
		"rows", len(rows),
		"written_at", producedAt.Format(time.RFC3339),
		"error", cause)
	return true
}

// startHealthMonitoring warns when the list has not been refreshed for too long
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkStaleness()
			}
		}
	}()
}

func (s *Scheduler) checkStaleness() bool {
	lastUpdate := s.dataStore.GetLastUpdated()
	if time.Since(lastUpdate) > s.staleAfter {
		logging.Warn("Abbreviation list hasn't been updated recently",
			"last_update", lastUpdate.Format(time.RFC3339),
			"threshold", s.staleAfter.String())
		return true
	}
	return false
}
