package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests configuration loading from environment variables
func TestLoadConfig(t *testing.T) {
	os.Setenv("MEMORY_LOG_LEVEL", "debug")
	os.Setenv("MEMORY_BASE_PATH", "/tmp/jido-memory-test")
	os.Setenv("MEMORY_MAX_OPEN_STORES", "25")
	os.Setenv("MEMORY_IDLE_TIMEOUT_MS", "60000")
	os.Setenv("MEMORY_CLEANUP_INTERVAL_MS", "5000")
	os.Setenv("MEMORY_CLOSE_TIMEOUT_MS", "2000")
	os.Setenv("MEMORY_SESSION_MEMORY_LIMIT", "500")

	defer func() {
		os.Unsetenv("MEMORY_LOG_LEVEL")
		os.Unsetenv("MEMORY_BASE_PATH")
		os.Unsetenv("MEMORY_MAX_OPEN_STORES")
		os.Unsetenv("MEMORY_IDLE_TIMEOUT_MS")
		os.Unsetenv("MEMORY_CLEANUP_INTERVAL_MS")
		os.Unsetenv("MEMORY_CLOSE_TIMEOUT_MS")
		os.Unsetenv("MEMORY_SESSION_MEMORY_LIMIT")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got %q", cfg.LogLevel)
	}
	if cfg.BasePath != "/tmp/jido-memory-test" {
		t.Errorf("Expected base path override, got %q", cfg.BasePath)
	}
	if cfg.MaxOpenStores != 25 {
		t.Errorf("Expected MaxOpenStores 25, got %d", cfg.MaxOpenStores)
	}
	if cfg.IdleTimeoutMS != 60000 {
		t.Errorf("Expected IdleTimeoutMS 60000, got %d", cfg.IdleTimeoutMS)
	}
	if cfg.CleanupIntervalMS != 5000 {
		t.Errorf("Expected CleanupIntervalMS 5000, got %d", cfg.CleanupIntervalMS)
	}
	if cfg.CloseTimeoutMS != 2000 {
		t.Errorf("Expected CloseTimeoutMS 2000, got %d", cfg.CloseTimeoutMS)
	}
	if cfg.SessionMemoryLimit != 500 {
		t.Errorf("Expected SessionMemoryLimit 500, got %d", cfg.SessionMemoryLimit)
	}
}

// TestLoadConfigDefaults tests default values when no env vars are set
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.LogLevel)
	}
	if cfg.MaxOpenStores != 100 {
		t.Errorf("Expected default MaxOpenStores 100, got %d", cfg.MaxOpenStores)
	}
	if cfg.IdleTimeoutMS != 1800000 {
		t.Errorf("Expected default IdleTimeoutMS 1800000, got %d", cfg.IdleTimeoutMS)
	}
	if cfg.CleanupIntervalMS != 60000 {
		t.Errorf("Expected default CleanupIntervalMS 60000, got %d", cfg.CleanupIntervalMS)
	}
	if cfg.CloseTimeoutMS != 5000 {
		t.Errorf("Expected default CloseTimeoutMS 5000, got %d", cfg.CloseTimeoutMS)
	}
	if cfg.SessionMemoryLimit != 0 {
		t.Errorf("Expected default SessionMemoryLimit 0, got %d", cfg.SessionMemoryLimit)
	}
	if cfg.BasePath == "" {
		t.Error("Expected a non-empty default base path")
	}
}

// TestLoadConfigFileOverridesDefaults tests that a YAML config file's
// fields take precedence over the environment-derived defaults, leaving
// unset fields at their default.
func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.yaml")
	content := "log_level: debug\nmax_open_stores: 42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level override 'debug', got %q", cfg.LogLevel)
	}
	if cfg.MaxOpenStores != 42 {
		t.Errorf("expected max_open_stores override 42, got %d", cfg.MaxOpenStores)
	}
	if cfg.IdleTimeoutMS != 1800000 {
		t.Errorf("expected idle_timeout_ms to keep its default, got %d", cfg.IdleTimeoutMS)
	}
}

func TestLoadConfigFileMissingPath(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a nonexistent config file")
	}
}
