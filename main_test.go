package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giygas/jcrcrawler/config"
	"github.com/giygas/jcrcrawler/crawler"
)

const journalTable = `{"html":"<table>` +
	`<tr><td>J. Am. Chem. Soc.<\/td><td>Journal of the American Chemical Society<\/td><\/tr>` +
	`<tr><td>Cell Biol.<\/td><td>Cell Biology\/Medicine<\/td><\/tr>` +
	`<\/table>"}`

func newOneShot(t *testing.T, url string) (*config.Config, *crawler.Crawler) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		IntermediateFile: filepath.Join(dir, "result.txt"),
		OutputFile:       filepath.Join(dir, "UBC.txt"),
		MetricsTextfile:  filepath.Join(dir, "jcrcrawler.prom"),
	}
	profile := &config.Profile{
		UserAgents: []string{"agent-a"},
		Headers:    map[string]string{"user-agent": "placeholder"},
		URL:        url,
		Payload:    config.Payload{Form: map[string]string{"abbrevName": "J"}},
	}

	c, err := crawler.New(cfg, profile, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("crawler.New failed: %v", err)
	}
	return cfg, c
}

func TestCrawlOnce(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(journalTable))
	}))
	defer upstream.Close()

	cfg, c := newOneShot(t, upstream.URL)

	if code := crawlOnce(cfg, c); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}

	output, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.HasPrefix(string(output), "Cell Biology/Medicine\tCell Biol.\tCell Biol\t") {
		t.Errorf("Expected sorted output, got %q", output)
	}

	prom, err := os.ReadFile(cfg.MetricsTextfile)
	if err != nil {
		t.Fatalf("Expected metrics textfile: %v", err)
	}
	if !strings.Contains(string(prom), "jcrcrawler_rows_written 2") {
		t.Errorf("Expected rows_written in metrics textfile, got %s", prom)
	}
}

func TestCrawlOnceFetchFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	cfg, c := newOneShot(t, upstream.URL)

	if code := crawlOnce(cfg, c); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if _, err := os.Stat(cfg.OutputFile); !os.IsNotExist(err) {
		t.Errorf("Expected no output file after a failed fetch, got %v", err)
	}
	if _, err := os.Stat(cfg.MetricsTextfile); err != nil {
		t.Errorf("Expected metrics textfile even after a failed run: %v", err)
	}
}

func TestLoadEnvKeepsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	before, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}

	envFile, err := loadEnv()
	if err != nil {
		t.Fatalf("Expected no error without a .env file, got %v", err)
	}
	if envFile != "" {
		t.Errorf("Expected no environment file, got %s", envFile)
	}

	after, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if after != before {
		t.Errorf("Expected working directory %s, got %s", before, after)
	}
}

func TestLoadEnvReadsWorkingDirectoryFile(t *testing.T) {
	const key = "JCRCRAWLER_LOADENV_TEST"

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("Unsetenv failed: %v", err)
	}

	envFile, err := loadEnv()
	if err != nil {
		t.Fatalf("loadEnv failed: %v", err)
	}
	if envFile != ".env" {
		t.Errorf("Expected .env, got %q", envFile)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("Expected from-dotenv, got %q", got)
	}
}
