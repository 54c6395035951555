// Package fetcher issues the journal profile request with a rotating user agent.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/jcrcrawler/config"
	"golang.org/x/text/encoding/charmap"
)

const userAgentKey = "user-agent"

// Fetcher posts the configured payload, one attempt per call
type Fetcher struct {
	client  *http.Client
	agents  []string
	headers map[string]string
	logger  *slog.Logger

	timeout    time.Duration
	hasTimeout bool
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient sends requests through a copy of client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout sets a client timeout; zero keeps requests unbounded
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = timeout
		f.hasTimeout = true
	}
}

// WithLogger sets the logger fetch failures are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher drawing from agents and sending the headers template
func New(agents []string, headers map[string]string, opts ...Option) (*Fetcher, error) {
	if len(agents) == 0 {
		return nil, errors.New("fetcher needs at least one user agent")
	}

	f := &Fetcher{
		client:  &http.Client{},
		agents:  append([]string(nil), agents...),
		headers: headers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	// The fetcher owns its client; a caller's client is never modified
	var client http.Client
	if f.client != nil {
		client = *f.client
	}
	if f.hasTimeout {
		client.Timeout = f.timeout
	}
	f.client = &client

	return f, nil
}

// PickUserAgent draws one user agent uniformly at random
func (f *Fetcher) PickUserAgent() string {
	return f.agents[rand.IntN(len(f.agents))]
}

// WithUserAgent returns a copy of headers whose user-agent entry is ua.
// Any case variant of the key is replaced; headers itself is not modified.
func WithUserAgent(headers map[string]string, ua string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		if strings.EqualFold(k, userAgentKey) {
			continue
		}
		out[k] = v
	}
	out[userAgentKey] = ua
	return out
}

// Fetch posts payload to url and returns the response text. Any failure is
// logged at error level and reported as ok == false; there is no retry.
func (f *Fetcher) Fetch(ctx context.Context, url string, payload config.Payload) (string, bool) {
	body, err := f.fetch(ctx, url, payload)
	if err != nil {
		f.logger.Error("Crawl data exception", "url", url, "error", err)
		return "", false
	}
	return body, true
}

func (f *Fetcher) fetch(ctx context.Context, url string, payload config.Payload) (string, error) {
	requestBody, contentType := payload.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	headers := WithUserAgent(f.headers, f.PickUserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	response, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s from %s", response.Status, url)
	}

	text, err := decodeBody(bodyBytes)
	if err != nil {
		return "", err
	}

	f.logger.Debug("Journal profile fetched", "status", response.StatusCode, "bytes", len(bodyBytes))
	return text, nil
}

// decodeBody returns UTF-8 bodies as is and decodes anything else from ISO-8859-1
func decodeBody(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}

	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return "", fmt.Errorf("failed to decode ISO-8859-1 body: %w", err)
	}
	return string(decoded), nil
}
