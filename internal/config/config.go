package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runner configuration.
type Config struct {
	APIBaseURL string
	APIToken   string
	LogLevel   string
	LogFormat  string
	// SnapshotBackend selects where in-progress state is cached:
	// "file" (default) or "redis" for shared lab machines.
	SnapshotBackend  string
	SnapshotDir      string
	RedisURL         string
	SnapshotStale    time.Duration
	AutosaveInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:5000/api"),
		APIToken:         getEnv("API_TOKEN", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		SnapshotBackend:  getEnv("SNAPSHOT_BACKEND", "file"),
		SnapshotDir:      getEnv("SNAPSHOT_DIR", defaultSnapshotDir()),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SnapshotStale:    time.Duration(getEnvInt("SNAPSHOT_STALE_MINUTES", 5)) * time.Minute,
		AutosaveInterval: time.Duration(getEnvInt("AUTOSAVE_SECONDS", 120)) * time.Second,
	}
}

func defaultSnapshotDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".attempt-runner"
	}
	return filepath.Join(dir, "attempt-runner")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
