package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotatingLogger(t *testing.T) {
	tempDir := t.TempDir()

	rl := NewRotatingLogger(tempDir, 1)
	if err := rl.open(); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	expectedFileName := filepath.Join(tempDir, "jcrcrawler-"+getWeekKey(time.Now())+".log")
	if _, err := os.Stat(expectedFileName); os.IsNotExist(err) {
		t.Errorf("Expected log file %s was not created", expectedFileName)
	}

	testMessage := "Test log message"
	if _, err := rl.Write([]byte(testMessage)); err != nil {
		t.Fatalf("Failed to write to log: %v", err)
	}

	content, err := os.ReadFile(expectedFileName)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), testMessage) {
		t.Errorf("Log file does not contain test message: %s", string(content))
	}

	if err := rl.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
}

func TestGetWeekKey(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC), "2025-W41"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W01"},
		{time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W53"},
	}

	for _, tt := range tests {
		if got := getWeekKey(tt.date); got != tt.expected {
			t.Errorf("Expected week key %s for %s, got %s", tt.expected, tt.date.Format(time.DateOnly), got)
		}
	}
}

func TestRotatingLoggerWithSizeLimit(t *testing.T) {
	tempDir := t.TempDir()

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 64)
	if err := rl.open(); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	defer rl.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	week := getWeekKey(time.Now())
	for _, name := range []string{
		"jcrcrawler-" + week + ".log",
		"jcrcrawler-" + week + "_01.log",
		"jcrcrawler-" + week + "_02.log",
	} {
		info, err := os.Stat(filepath.Join(tempDir, name))
		if err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
			continue
		}
		if info.Size() != int64(len(line)) {
			t.Errorf("Expected %s to hold one line, got %d bytes", name, info.Size())
		}
	}
}

func TestRotatingLoggerReusesFileBelowLimit(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())
	existing := filepath.Join(tempDir, "jcrcrawler-"+week+".log")
	if err := os.WriteFile(existing, []byte("previous run\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 1024)
	if err := rl.open(); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if _, err := rl.Write([]byte("this run\n")); err != nil {
		t.Fatal(err)
	}
	rl.Close()

	content, _ := os.ReadFile(existing)
	if string(content) != "previous run\nthis run\n" {
		t.Errorf("Expected append to existing file, got %q", content)
	}
}

func TestRotatingLoggerSkipsFullFile(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())
	full := filepath.Join(tempDir, "jcrcrawler-"+week+".log")
	if err := os.WriteFile(full, []byte(strings.Repeat("y", 32)), 0644); err != nil {
		t.Fatal(err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 32)
	if err := rl.open(); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if _, err := rl.Write([]byte("next\n")); err != nil {
		t.Fatal(err)
	}
	rl.Close()

	if _, err := os.Stat(filepath.Join(tempDir, "jcrcrawler-"+week+"_01.log")); err != nil {
		t.Errorf("Expected a numbered file when the weekly file is full: %v", err)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	old := filepath.Join(tempDir, "jcrcrawler-2020-W01.log")
	recent := filepath.Join(tempDir, "jcrcrawler-"+getWeekKey(time.Now())+".log")
	foreign := filepath.Join(tempDir, "other-2020-W01.log")
	for _, p := range []string{old, recent, foreign} {
		if err := os.WriteFile(p, []byte("log"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	twoWeeksAgo := time.Now().Add(-14 * 24 * time.Hour)
	_ = os.Chtimes(old, twoWeeksAgo, twoWeeksAgo)
	_ = os.Chtimes(foreign, twoWeeksAgo, twoWeeksAgo)

	deleted, err := rl.cleanupOldLogs()
	if err != nil {
		t.Fatalf("cleanupOldLogs failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("Expected old log to be removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("Expected recent log to be kept")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("Expected files of other programs to be kept")
	}
}

func TestRotatingLoggerWriteAfterClose(t *testing.T) {
	rl := NewRotatingLogger(t.TempDir(), 1)
	if err := rl.open(); err != nil {
		t.Fatal(err)
	}
	rl.Close()

	if _, err := rl.Write([]byte("late")); err == nil {
		t.Error("Expected error writing after Close")
	}
}
