// Package crawler runs the journal abbreviation pipeline end to end:
// fetch the journal profile, normalize it into the intermediate file and
// tabulate it into the final list.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giygas/jcrcrawler/config"
	"github.com/giygas/jcrcrawler/fetcher"
	"github.com/giygas/jcrcrawler/metrics"
	"github.com/giygas/jcrcrawler/normalizer"
	"github.com/giygas/jcrcrawler/tabulator"
)

// ErrFetchFailed is returned when the journal profile could not be fetched.
// The intermediate and final files are left as they were.
var ErrFetchFailed = errors.New("fetch failed")

// Fetcher returns the response text for one request, or ok == false
type Fetcher interface {
	Fetch(ctx context.Context, url string, payload config.Payload) (string, bool)
}

// Result describes a completed run
type Result struct {
	Rows          []tabulator.Row
	Stats         tabulator.Stats
	DecodeErrors  int
	ResponseBytes int
	StartedAt     time.Time
	Duration      time.Duration
}

// Crawler holds the stages of one pipeline
type Crawler struct {
	cfg     *config.Config
	profile *config.Profile
	fetcher Fetcher
	chain   *normalizer.Chain
	logger  *slog.Logger
}

// Option configures a Crawler
type Option func(*Crawler)

// WithFetcher replaces the HTTP fetcher built from the profile
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) {
		c.fetcher = f
	}
}

// WithChain replaces the default normalization chain
func WithChain(chain *normalizer.Chain) Option {
	return func(c *Crawler) {
		c.chain = chain
	}
}

// New creates a Crawler. Unless WithFetcher is given, the fetcher draws
// from the profile's user agents and honours cfg.FetchTimeout.
func New(cfg *config.Config, profile *config.Profile, logger *slog.Logger, opts ...Option) (*Crawler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Crawler{
		cfg:     cfg,
		profile: profile,
		chain:   normalizer.Default(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		f, err := fetcher.New(profile.UserAgents, profile.Headers,
			fetcher.WithTimeout(cfg.FetchTimeout),
			fetcher.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create fetcher: %w", err)
		}
		c.fetcher = f
	}

	return c, nil
}

// Crawl runs the pipeline once and records the run in the metrics
func (c *Crawler) Crawl(ctx context.Context) (*Result, error) {
	start := time.Now()

	result, err := c.crawl(ctx)
	duration := time.Since(start)
	metrics.RunDuration.Observe(duration.Seconds())

	switch {
	case err == nil:
		metrics.RunsTotal.WithLabelValues("success").Inc()
		metrics.LastSuccess.SetToCurrentTime()
	case errors.Is(err, ErrFetchFailed):
		metrics.RunsTotal.WithLabelValues("fetch_failed").Inc()
		return nil, err
	default:
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result.StartedAt = start
	result.Duration = duration
	c.logger.Info("Done", "rows", len(result.Rows), "duration", duration.String())

	return result, nil
}

func (c *Crawler) crawl(ctx context.Context) (*Result, error) {
	c.logger.Info("Crawling data", "url", c.profile.URL)
	fetchStart := time.Now()
	body, ok := c.fetcher.Fetch(ctx, c.profile.URL, c.profile.Payload)
	metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	if !ok {
		return nil, ErrFetchFailed
	}
	metrics.ResponseBytes.Set(float64(len(body)))

	c.logger.Info("Parsing data", "bytes", len(body))
	text, report := c.chain.Apply(body)
	if report.DecodeErrors > 0 {
		metrics.DecodeErrorsTotal.Add(float64(report.DecodeErrors))
		c.logger.Warn("Replaced malformed escape sequences", "count", report.DecodeErrors)
	}
	if err := normalizer.WriteFile(c.cfg.IntermediateFile, text); err != nil {
		return nil, err
	}

	c.logger.Info("Saving data", "file", c.cfg.OutputFile)
	rows, stats, err := tabulator.Tabulate(c.cfg.IntermediateFile, c.cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to tabulate: %w", err)
	}

	if stats.Malformed > 0 {
		metrics.RowsSkippedTotal.WithLabelValues("malformed").Add(float64(stats.Malformed))
		c.logger.Warn("Skipped malformed rows",
			"malformed", stats.Malformed,
			"total_lines", stats.Lines,
			"rows_written", stats.Rows)
	}
	if stats.Duplicates > 0 {
		metrics.RowsSkippedTotal.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
		c.logger.Debug("Dropped duplicate rows", "count", stats.Duplicates)
	}
	metrics.RowsWritten.Set(float64(len(rows)))

	return &Result{
		Rows:          rows,
		Stats:         stats,
		DecodeErrors:  report.DecodeErrors,
		ResponseBytes: len(body),
	}, nil
}
