package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/signloop/signloop/internal/config"
	"github.com/signloop/signloop/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Endpoint:             "https://cms.example.test/api/content",
		DataDir:              filepath.Join(dir, "data"),
		CacheDir:             filepath.Join(dir, "cache"),
		PollInterval:         time.Minute,
		RetryDelay:           time.Second,
		MaxRetries:           3,
		ReconnectDelay:       time.Second,
		ProbeAttempts:        1,
		FloorSeconds:         5,
		HTTPAddr:             "127.0.0.1:0",
		LogLevel:             "info",
		PlaylogPath:          filepath.Join(dir, "playlog.db"),
		PlaylogRetentionDays: 30,
		Display:              config.DisplayLog,
	}
}

// TestInitDaemonComponents wires the full component stack against temp
// directories and tears it down again.
func TestInitDaemonComponents(t *testing.T) {
	cfg := testConfig(t)

	comps, err := initDaemonComponents(cfg, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("initDaemonComponents: %v", err)
	}
	defer comps.Close()

	if comps.DeviceId == "" {
		t.Fatal("expected a resolved device id")
	}
	if comps.Hub != nil {
		t.Fatal("expected no display hub in log display mode")
	}
	if comps.Journal == nil {
		t.Fatal("expected a play journal")
	}
	if comps.Coord == nil || comps.Rotator == nil || comps.Web == nil {
		t.Fatal("expected all core components")
	}
}

func TestInitDaemonComponents_WSDisplay(t *testing.T) {
	cfg := testConfig(t)
	cfg.Display = config.DisplayWS

	comps, err := initDaemonComponents(cfg, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("initDaemonComponents: %v", err)
	}
	defer comps.Close()

	if comps.Hub == nil {
		t.Fatal("expected a display hub in ws display mode")
	}
}

// TestInitDaemonComponents_BadEndpoint exercises the cleanup path when
// a component constructor rejects its input.
func TestInitDaemonComponents_BadEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Endpoint = "not-a-url"

	if _, err := initDaemonComponents(cfg, logger.NewNopLogger()); err == nil {
		t.Fatal("expected error for relative endpoint")
	}
}

// TestInitDaemonComponents_JournalFailsOpen verifies a broken play log
// path degrades to a player without history instead of failing startup.
func TestInitDaemonComponents_JournalFailsOpen(t *testing.T) {
	cfg := testConfig(t)
	// A directory path cannot be opened as a SQLite database.
	cfg.PlaylogPath = t.TempDir()

	comps, err := initDaemonComponents(cfg, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("initDaemonComponents: %v", err)
	}
	defer comps.Close()

	if comps.Journal != nil {
		t.Fatal("expected nil journal for unopenable database")
	}
}

func TestBuildLogger_ConsoleOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogFile = ""

	lg, err := buildLogger(cfg)
	if err != nil {
		t.Fatalf("buildLogger: %v", err)
	}
	defer lg.Close()

	if _, ok := lg.(*logger.StandardLogger); !ok {
		t.Fatalf("expected StandardLogger without a log file, got %T", lg)
	}
}

// TestBuildLogger_WithFile verifies a configured log file pairs the
// console with the rotating file backend.
func TestBuildLogger_WithFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "signloop.log")

	lg, err := buildLogger(cfg)
	if err != nil {
		t.Fatalf("buildLogger: %v", err)
	}
	defer lg.Close()

	if _, ok := lg.(*logger.MultiLogger); !ok {
		t.Fatalf("expected MultiLogger with a log file, got %T", lg)
	}
}
