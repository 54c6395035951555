// Package config has the configuration for the crawler: environment settings
// and the external files describing logging, user agents and the request.
package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment of the process
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment converts a string to an Environment, accepting the long forms too
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// Config holds all process configuration read from the environment
type Config struct {
	Env              Environment
	LogLevel         string // Overrides the console level of the logging spec when set
	LoggingSpecFile  string
	UserAgentsFile   string
	RequestSpecFile  string
	IntermediateFile string
	OutputFile       string
	FetchTimeout     time.Duration // 0 means no client timeout
	ScheduleAt       string        // Empty runs the pipeline once and exits
	Address          string
	Port             string
	MetricsTextfile  string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvWithDefault("FETCH_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid FETCH_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Env:              env,
		LogLevel:         strings.ToLower(os.Getenv("LOG_LEVEL")),
		LoggingSpecFile:  getEnvWithDefault("LOG_CONFIG", "logging.yml"),
		UserAgentsFile:   getEnvWithDefault("USER_AGENTS_FILE", "user_agents.txt"),
		RequestSpecFile:  getEnvWithDefault("REQUEST_SPEC_FILE", "headers.yml"),
		IntermediateFile: getEnvWithDefault("INTERMEDIATE_FILE", "result.txt"),
		OutputFile:       getEnvWithDefault("OUTPUT_FILE", "UBC.txt"),
		FetchTimeout:     timeout,
		ScheduleAt:       strings.TrimSpace(os.Getenv("SCHEDULE_AT")),
		Address:          getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Port:             getEnvWithDefault("PORT", "8000"),
		MetricsTextfile:  os.Getenv("METRICS_TEXTFILE"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Scheduled reports whether the process runs as a scheduled service
func (c *Config) Scheduled() bool {
	return c.ScheduleAt != ""
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if cfg.LogLevel != "" {
		if err := ValidateLogLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	if cfg.FetchTimeout < 0 {
		return fmt.Errorf("invalid FETCH_TIMEOUT: must not be negative, got: %s", cfg.FetchTimeout)
	}

	paths := map[string]string{
		"LOG_CONFIG":        cfg.LoggingSpecFile,
		"USER_AGENTS_FILE":  cfg.UserAgentsFile,
		"REQUEST_SPEC_FILE": cfg.RequestSpecFile,
		"INTERMEDIATE_FILE": cfg.IntermediateFile,
		"OUTPUT_FILE":       cfg.OutputFile,
	}
	for name, path := range paths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}

	if cfg.IntermediateFile == cfg.OutputFile {
		return fmt.Errorf("INTERMEDIATE_FILE and OUTPUT_FILE must differ, both are %s", cfg.OutputFile)
	}

	// The listener settings only matter when running as a service
	if !cfg.Scheduled() {
		return nil
	}

	if err := validateSchedule(cfg.ScheduleAt); err != nil {
		return fmt.Errorf("invalid SCHEDULE_AT: %w", err)
	}

	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	return nil
}

// ValidateLogLevel validates a log level name
func ValidateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSchedule checks the gocron At() format: HH:MM times separated by semicolons
func validateSchedule(schedule string) error {
	_, err := ParseSchedule(schedule)
	return err
}

// ParseSchedule returns the daily run times of a SCHEDULE_AT value as
// offsets from midnight, in ascending order
func ParseSchedule(schedule string) ([]time.Duration, error) {
	var offsets []time.Duration
	for _, at := range strings.Split(schedule, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(at))
		if err != nil {
			return nil, fmt.Errorf("time %q must use HH:MM format", at)
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	slices.Sort(offsets)
	return offsets, nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"ENV",
		"LOG_LEVEL",
		"LOG_CONFIG",
		"USER_AGENTS_FILE",
		"REQUEST_SPEC_FILE",
		"INTERMEDIATE_FILE",
		"OUTPUT_FILE",
		"FETCH_TIMEOUT",
		"SCHEDULE_AT",
		"ADDRESS",
		"PORT",
		"METRICS_TEXTFILE",
	}
}

// UnknownEnvVars returns the keys of settings that no option reads, sorted.
// It catches misspelled entries in a .env file.
func UnknownEnvVars(settings map[string]string) []string {
	known := GetEnvVars()
	var unknown []string
	for key := range settings {
		if !slices.Contains(known, key) {
			unknown = append(unknown, key)
		}
	}
	slices.Sort(unknown)
	return unknown
}
