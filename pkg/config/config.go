package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the host process configuration for the memory subsystem.
// The core itself reads no environment variables (see spec); these knobs
// are read once by the binary that embeds the session store manager and
// passed in as plain constructor arguments.
type Config struct {
	LogLevel           string `yaml:"log_level"`
	BasePath           string `yaml:"base_path"`
	MaxOpenStores      int    `yaml:"max_open_stores"`
	IdleTimeoutMS      int    `yaml:"idle_timeout_ms"`
	CleanupIntervalMS  int    `yaml:"cleanup_interval_ms"`
	CloseTimeoutMS     int    `yaml:"close_timeout_ms"`
	SessionMemoryLimit int    `yaml:"session_memory_limit"`
}

// LoadConfig loads configuration from environment variables, falling back
// to defaults sized for a single-user coding-assistant runtime.
func LoadConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultBase := filepath.Join(home, ".jido", "memory")

	cfg := &Config{
		LogLevel:           getEnv("MEMORY_LOG_LEVEL", "info"),
		BasePath:           getEnv("MEMORY_BASE_PATH", defaultBase),
		MaxOpenStores:      getEnvAsInt("MEMORY_MAX_OPEN_STORES", 100),
		IdleTimeoutMS:      getEnvAsInt("MEMORY_IDLE_TIMEOUT_MS", 1800000),
		CleanupIntervalMS:  getEnvAsInt("MEMORY_CLEANUP_INTERVAL_MS", 60000),
		CloseTimeoutMS:     getEnvAsInt("MEMORY_CLOSE_TIMEOUT_MS", 5000),
		SessionMemoryLimit: getEnvAsInt("MEMORY_SESSION_MEMORY_LIMIT", 0),
	}

	return cfg, nil
}

// LoadConfigFile loads configuration from a YAML file, falling back to
// LoadConfig's environment-derived defaults for any field the file leaves
// zero-valued. Mirrors the teacher's plugin.yaml manifest parsing
// (pkg/plugins/service.go) applied to process configuration instead of a
// plugin definition.
func LoadConfigFile(path string) (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.BasePath != "" {
		cfg.BasePath = fileCfg.BasePath
	}
	if fileCfg.MaxOpenStores != 0 {
		cfg.MaxOpenStores = fileCfg.MaxOpenStores
	}
	if fileCfg.IdleTimeoutMS != 0 {
		cfg.IdleTimeoutMS = fileCfg.IdleTimeoutMS
	}
	if fileCfg.CleanupIntervalMS != 0 {
		cfg.CleanupIntervalMS = fileCfg.CleanupIntervalMS
	}
	if fileCfg.CloseTimeoutMS != 0 {
		cfg.CloseTimeoutMS = fileCfg.CloseTimeoutMS
	}
	if fileCfg.SessionMemoryLimit != 0 {
		cfg.SessionMemoryLimit = fileCfg.SessionMemoryLimit
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
