package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func waitForReload(t *testing.T, count *int32, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(count) > 0 {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func TestWatcherFileChange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	// Give the watch goroutine time to start
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, configPath, "updated: content")

	if !waitForReload(t, &reloadCount, 2*time.Second) {
		t.Error("Expected reload to be triggered")
	}
}

func TestWatcherAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// Simulate an editor's atomic save: write to temp, then rename
	tempPath := filepath.Join(tmpDir, "config.yaml.tmp")
	writeConfig(t, tempPath, "atomic: content")
	if err := os.Rename(tempPath, configPath); err != nil {
		t.Fatalf("Failed to rename temp file: %v", err)
	}

	if !waitForReload(t, &reloadCount, 2*time.Second) {
		t.Error("Expected reload to be triggered on atomic write")
	}
}

func TestWatcherDebouncesWriteBursts(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// A burst of writes inside the debounce window triggers one reload
	for i := 0; i < 5; i++ {
		writeConfig(t, configPath, "updated: content")
		time.Sleep(10 * time.Millisecond)
	}

	if !waitForReload(t, &reloadCount, 2*time.Second) {
		t.Fatal("Expected reload to be triggered")
	}

	// Let any stragglers fire, then verify the burst collapsed
	time.Sleep(500 * time.Millisecond)
	if got := atomic.LoadInt32(&reloadCount); got != 1 {
		t.Errorf("Expected a single reload for the burst, got %d", got)
	}
}

func TestWatcherSIGHUP(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("Failed to send SIGHUP: %v", err)
	}

	if !waitForReload(t, &reloadCount, 2*time.Second) {
		t.Error("Expected reload to be triggered on SIGHUP")
	}
}

func TestWatcherReloadError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return errors.New("reload failed")
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	writeConfig(t, configPath, "updated: content")

	// Reload should have been attempted even though it failed
	if !waitForReload(t, &reloadCount, 2*time.Second) {
		t.Error("Expected reload to be attempted despite error")
	}
}

func TestWatcherOtherFileIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	otherPath := filepath.Join(tmpDir, "other.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	writeConfig(t, otherPath, "other: content")

	time.Sleep(500 * time.Millisecond)
	if atomic.LoadInt32(&reloadCount) != 0 {
		t.Error("Expected no reload for changes to other files")
	}
}

func TestWatcherNonexistentDir(t *testing.T) {
	_, err := NewWatcher("/nonexistent/path/config.yaml", func(path string) error {
		return nil
	})
	if err == nil {
		t.Error("Expected error for nonexistent directory")
	}
}

func TestWatcherClose(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := NewWatcher(configPath, func(path string) error {
		atomic.AddInt32(&reloadCount, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}

	watcher.Close()
	// A second close must not panic
	watcher.Close()

	time.Sleep(100 * time.Millisecond)

	writeConfig(t, configPath, "updated: content")

	time.Sleep(300 * time.Millisecond)
	if atomic.LoadInt32(&reloadCount) != 0 {
		t.Error("Expected no reload after watcher closed")
	}
}
