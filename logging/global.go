// Package logging builds the process slog logger from the logging spec:
// console output plus weekly rotating files, and exposes package-level
// helpers that fall back to stderr before initialization.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/giygas/jcrcrawler/config"
)

// LoggingService owns the process logger and the files behind it
type LoggingService struct {
	Logger *slog.Logger
	files  []*RotatingLogger
}

// Options tune how a LoggingService is built from a spec
type Options struct {
	ConsoleLevel string    // Overrides the level of console handlers when set
	Console      io.Writer // Defaults to os.Stdout
}

var DefaultLoggingService *LoggingService

// NewLoggingService builds the logger named config.ProcessLogger from spec
func NewLoggingService(spec *config.LoggingSpec, opts Options) (*LoggingService, error) {
	if spec == nil {
		return nil, errors.New("logging spec is nil")
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	loggerSpec := spec.Process()
	service := &LoggingService{}

	// Stable handler order keeps output deterministic across runs
	names := append([]string(nil), loggerSpec.Handlers...)
	sort.Strings(names)

	var handlers []slog.Handler
	for _, name := range names {
		hs, ok := spec.Handlers[name]
		if !ok {
			service.Close()
			return nil, fmt.Errorf("unknown handler %q", name)
		}

		levelName := hs.Level
		if levelName == "" {
			levelName = loggerSpec.Level
		}

		var out io.Writer
		switch hs.Type {
		case "console":
			out = console
			if opts.ConsoleLevel != "" {
				levelName = opts.ConsoleLevel
			}
		case "file":
			rl := NewRotatingLoggerWithSizeLimit(hs.Dir, hs.RetentionWeeks, hs.MaxSizeMB*1024*1024)
			if err := rl.open(); err != nil {
				service.Close()
				return nil, fmt.Errorf("handler %s: %w", name, err)
			}
			rl.startCleanup()
			service.files = append(service.files, rl)
			out = rl
		default:
			service.Close()
			return nil, fmt.Errorf("handler %s: unsupported type %q", name, hs.Type)
		}

		handlerOpts := &slog.HandlerOptions{Level: parseLogLevel(levelName)}
		if hs.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(out, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, handlerOpts))
		}
	}

	service.Logger = slog.New(&multiHandler{handlers: handlers}).With("logger", config.ProcessLogger)
	return service, nil
}

// Close closes every log file of the service
func (s *LoggingService) Close() error {
	var errs []error
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}

// InitLogger builds the default logging service and installs it as the slog default
func InitLogger(spec *config.LoggingSpec, opts Options) error {
	service, err := NewLoggingService(spec, opts)
	if err != nil {
		return err
	}

	DefaultLoggingService = service
	slog.SetDefault(service.Logger)
	return nil
}

// Logger returns the default logger, or a stderr logger before InitLogger
func Logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return DefaultLoggingService.Logger
}

// parseLogLevel maps a level name to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}
