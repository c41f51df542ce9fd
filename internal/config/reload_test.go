package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestReloaderAppliesChangedRevision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elsie.yaml")
	writeConfig(t, path, "server:\n  log_level: info\n")

	var (
		mu      sync.Mutex
		applied *Config
		diff    ConfigDiff
	)
	r, err := WatchConfig(path, func(cfg *Config, d ConfigDiff) {
		mu.Lock()
		applied = cfg
		diff = d
		mu.Unlock()
	}, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("WatchConfig: %v", err)
	}
	defer r.Close()

	if r.Snapshot().Server.LogLevel != LogInfo {
		t.Fatalf("initial log level = %q", r.Snapshot().Server.LogLevel)
	}

	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "server:\n  log_level: debug\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got, d := applied, diff
		mu.Unlock()
		if got != nil {
			if got.Server.LogLevel != LogDebug {
				t.Fatalf("applied log level = %q", got.Server.LogLevel)
			}
			if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
				t.Fatalf("diff = %+v, want log level change to debug", d)
			}
			if r.Snapshot() != got {
				t.Fatal("Snapshot() must return the applied config")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("reloader never applied the change")
}

func TestReloaderRejectsInvalidRevision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elsie.yaml")
	writeConfig(t, path, "server:\n  log_level: info\n")

	r, err := WatchConfig(path, nil, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("WatchConfig: %v", err)
	}
	defer r.Close()

	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "server:\n  log_level: loud\n")

	// Give the poller a few rounds past the write-settle window.
	time.Sleep(400 * time.Millisecond)
	if r.Snapshot().Server.LogLevel != LogInfo {
		t.Errorf("invalid revision must keep the old config, got %q", r.Snapshot().Server.LogLevel)
	}
}

func TestReloaderInitialLoadFailure(t *testing.T) {
	if _, err := WatchConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}
