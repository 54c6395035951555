package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessLogger is the logger the logging spec must define for this process
const ProcessLogger = "jcrcrawler"

// ErrMissingKey is returned when a required key is absent from a spec file
var ErrMissingKey = errors.New("missing required key")

// Profile is the crawl configuration built once at startup from the three
// external files. It is never modified after LoadProfile returns.
type Profile struct {
	Logging    *LoggingSpec
	UserAgents []string
	Headers    map[string]string // Template, the user-agent entry is replaced per request
	URL        string
	Payload    Payload
}

// LoadProfile reads the logging spec, the user-agent list and the request spec
func LoadProfile(loggingPath, userAgentsPath, requestSpecPath string) (*Profile, error) {
	logging, err := LoadLoggingSpec(loggingPath)
	if err != nil {
		return nil, err
	}

	agents, err := LoadUserAgents(userAgentsPath)
	if err != nil {
		return nil, err
	}

	spec, err := LoadRequestSpec(requestSpecPath)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Logging:    logging,
		UserAgents: agents,
		Headers:    spec.Headers,
		URL:        spec.URL,
		Payload:    spec.Payload,
	}, nil
}

// LoadUserAgents returns every non-blank line of the file, shuffled once
func LoadUserAgents(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user agents file: %w", err)
	}
	defer file.Close()

	var agents []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if ua := strings.TrimSpace(scanner.Text()); ua != "" {
			agents = append(agents, ua)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user agents file %s: %w", path, err)
	}

	if len(agents) == 0 {
		return nil, fmt.Errorf("user agents file %s has no user agents", path)
	}

	rand.Shuffle(len(agents), func(i, j int) {
		agents[i], agents[j] = agents[j], agents[i]
	})

	return agents, nil
}

// Payload is the request body: either a form mapping or a raw string
type Payload struct {
	Form map[string]string
	Raw  string
}

// IsForm reports whether the payload is a form mapping
func (p Payload) IsForm() bool {
	return p.Form != nil
}

// Encode returns the request body and the content type it implies.
// Raw bodies carry no content type, the headers template decides.
func (p Payload) Encode() (string, string) {
	if !p.IsForm() {
		return p.Raw, ""
	}

	values := url.Values{}
	for k, v := range p.Form {
		values.Set(k, v)
	}
	return values.Encode(), "application/x-www-form-urlencoded"
}

// UnmarshalYAML accepts a mapping or a scalar
func (p *Payload) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		form := make(map[string]string)
		if err := value.Decode(&form); err != nil {
			return fmt.Errorf("payload mapping: %w", err)
		}
		p.Form = form
		p.Raw = ""
	case yaml.ScalarNode:
		p.Form = nil
		p.Raw = value.Value
	default:
		return fmt.Errorf("payload must be a mapping or a string (line %d)", value.Line)
	}
	return nil
}

// RequestSpec is the content of the request spec file
type RequestSpec struct {
	Headers map[string]string
	URL     string
	Payload Payload
}

type requestSpecFile struct {
	Headers *map[string]string `yaml:"headers"`
	URL     *string            `yaml:"url"`
	Payload *Payload           `yaml:"payload"`
}

// LoadRequestSpec reads the headers template, target URL and payload
func LoadRequestSpec(path string) (*RequestSpec, error) {
	var raw requestSpecFile
	if err := decodeYAMLFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to load request spec: %w", err)
	}

	switch {
	case raw.Headers == nil:
		return nil, fmt.Errorf("request spec %s: %w: headers", path, ErrMissingKey)
	case raw.URL == nil:
		return nil, fmt.Errorf("request spec %s: %w: url", path, ErrMissingKey)
	case raw.Payload == nil:
		return nil, fmt.Errorf("request spec %s: %w: payload", path, ErrMissingKey)
	}

	target, err := url.Parse(*raw.URL)
	if err != nil {
		return nil, fmt.Errorf("request spec %s: invalid url: %w", path, err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("request spec %s: url must be an absolute http(s) URL, got: %s", path, *raw.URL)
	}

	return &RequestSpec{
		Headers: *raw.Headers,
		URL:     *raw.URL,
		Payload: *raw.Payload,
	}, nil
}

// LoggingSpec describes the loggers and handlers of the process
type LoggingSpec struct {
	Loggers  map[string]LoggerSpec  `yaml:"loggers"`
	Handlers map[string]HandlerSpec `yaml:"handlers"`
}

// LoggerSpec is one named logger
type LoggerSpec struct {
	Level    string   `yaml:"level"`
	Handlers []string `yaml:"handlers"`
}

// HandlerSpec is one output of the logging system
type HandlerSpec struct {
	Type           string `yaml:"type"`   // console or file
	Level          string `yaml:"level"`  // defaults to the logger level
	Format         string `yaml:"format"` // text or json
	Dir            string `yaml:"dir"`
	RetentionWeeks int    `yaml:"retention_weeks"`
	MaxSizeMB      int64  `yaml:"max_size_mb"`
}

// Process returns the spec of the process logger
func (s *LoggingSpec) Process() LoggerSpec {
	return s.Loggers[ProcessLogger]
}

// LoadLoggingSpec reads and validates the logging spec file
func LoadLoggingSpec(path string) (*LoggingSpec, error) {
	var spec LoggingSpec
	if err := decodeYAMLFile(path, &spec); err != nil {
		return nil, fmt.Errorf("failed to load logging spec: %w", err)
	}

	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("logging spec %s: %w", path, err)
	}

	return &spec, nil
}

func (s *LoggingSpec) validate() error {
	logger, ok := s.Loggers[ProcessLogger]
	if !ok {
		return fmt.Errorf("%w: loggers.%s", ErrMissingKey, ProcessLogger)
	}

	if logger.Level != "" {
		if err := ValidateLogLevel(logger.Level); err != nil {
			return fmt.Errorf("logger %s: %w", ProcessLogger, err)
		}
	}

	if len(logger.Handlers) == 0 {
		return fmt.Errorf("logger %s has no handlers", ProcessLogger)
	}

	for _, name := range logger.Handlers {
		handler, ok := s.Handlers[name]
		if !ok {
			return fmt.Errorf("logger %s references unknown handler %q", ProcessLogger, name)
		}

		normalized, err := handler.normalize()
		if err != nil {
			return fmt.Errorf("handler %s: %w", name, err)
		}
		s.Handlers[name] = normalized
	}

	return nil
}

// normalize fills defaults and rejects unknown values
func (h HandlerSpec) normalize() (HandlerSpec, error) {
	if h.Level != "" {
		if err := ValidateLogLevel(h.Level); err != nil {
			return h, err
		}
	}

	switch h.Type {
	case "console":
		if h.Format == "" {
			h.Format = "text"
		}
	case "file":
		if h.Format == "" {
			h.Format = "json"
		}
		if h.Dir == "" {
			h.Dir = "logs"
		}
		if h.RetentionWeeks == 0 {
			h.RetentionWeeks = 4
		}
		if h.RetentionWeeks < 0 || h.RetentionWeeks > 52 {
			return h, fmt.Errorf("retention_weeks must be between 1 and 52, got: %d", h.RetentionWeeks)
		}
		if h.MaxSizeMB == 0 {
			h.MaxSizeMB = 100
		}
		if h.MaxSizeMB < 0 || h.MaxSizeMB > 1024 {
			return h, fmt.Errorf("max_size_mb must be between 1 and 1024, got: %d", h.MaxSizeMB)
		}
	default:
		return h, fmt.Errorf("type must be console or file, got: %q", h.Type)
	}

	if h.Format != "text" && h.Format != "json" {
		return h, fmt.Errorf("format must be text or json, got: %q", h.Format)
	}

	return h, nil
}

func decodeYAMLFile(path string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s is empty", path)
		}
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
