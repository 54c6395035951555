package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/jcrcrawler/config"
	"github.com/giygas/jcrcrawler/crawler"
	"github.com/giygas/jcrcrawler/data"
	"github.com/giygas/jcrcrawler/handlers"
	"github.com/giygas/jcrcrawler/health"
	"github.com/giygas/jcrcrawler/logging"
	"github.com/giygas/jcrcrawler/metrics"
	"github.com/giygas/jcrcrawler/scheduler"
	"github.com/giygas/jcrcrawler/server"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile, err := loadEnv()
	if err != nil {
		slog.Error("Failed to load environment", "error", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	profile, err := config.LoadProfile(cfg.LoggingSpecFile, cfg.UserAgentsFile, cfg.RequestSpecFile)
	if err != nil {
		slog.Error("Failed to load crawl profile", "error", err)
		return 1
	}

	if err := logging.InitLogger(profile.Logging, logging.Options{ConsoleLevel: cfg.LogLevel}); err != nil {
		slog.Error("Failed to initialize logging", "error", err)
		return 1
	}
	defer logging.DefaultLoggingService.Close()

	warnUnknownSettings(envFile)

	c, err := crawler.New(cfg, profile, logging.Logger())
	if err != nil {
		logging.Error("Failed to build crawler", "error", err)
		return 1
	}

	if !cfg.Scheduled() {
		return crawlOnce(cfg, c)
	}
	return serve(cfg, c)
}

// loadEnv reads .env from the working directory, then from the executable's
// directory, and returns the file it loaded. A missing file is not an error.
// Relative paths in the configuration stay relative to the working directory.
func loadEnv() (string, error) {
	err := godotenv.Load()
	if err == nil {
		return ".env", nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to load .env: %w", err)
	}

	ex, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exEnv := filepath.Join(filepath.Dir(ex), ".env")
	if err := godotenv.Load(exEnv); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load %s: %w", exEnv, err)
	}
	return exEnv, nil
}

// warnUnknownSettings logs .env entries that no option reads
func warnUnknownSettings(envFile string) {
	if envFile == "" {
		return
	}

	settings, err := godotenv.Read(envFile)
	if err != nil {
		logging.Warn("Failed to re-read environment file", "file", envFile, "error", err)
		return
	}
	for _, key := range config.UnknownEnvVars(settings) {
		logging.Warn("Unknown setting in environment file", "file", envFile, "key", key)
	}
}

// crawlOnce runs the pipeline a single time
func crawlOnce(cfg *config.Config, c *crawler.Crawler) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err := c.Crawl(ctx)

	if cfg.MetricsTextfile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logging.Warn("Failed to write metrics", "error", werr)
		}
	}

	if err != nil {
		logging.Error("Crawl failed", "error", err)
		return 1
	}
	return 0
}

// serve crawls on the schedule and exposes the result over HTTP until a
// signal arrives
func serve(cfg *config.Config, c *crawler.Crawler) int {
	schedule, err := config.ParseSchedule(cfg.ScheduleAt)
	if err != nil {
		logging.Error("Invalid schedule", "error", err)
		return 1
	}

	container := data.NewDataContainer()
	container.SetServerStartTime(time.Now())

	jobs := scheduler.NewScheduler(container, c, cfg.ScheduleAt, scheduler.WithFallbackFile(cfg.OutputFile))
	if err := jobs.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		return 1
	}
	defer jobs.Stop()

	checker := health.NewHealthChecker(container, schedule)
	srv := server.NewServer(cfg, handlers.NewHTTPHandler(container, checker))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	exitCode := 0
	select {
	case <-quit:
	case err := <-errCh:
		logging.Error("Server failed to start", "error", err)
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return 1
	}
	return exitCode
}
