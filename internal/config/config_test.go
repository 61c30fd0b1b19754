package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"API_BASE_URL", "API_TOKEN", "LOG_LEVEL", "LOG_FORMAT",
		"SNAPSHOT_BACKEND", "SNAPSHOT_DIR", "REDIS_URL",
		"SNAPSHOT_STALE_MINUTES", "AUTOSAVE_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "http://localhost:5000/api", cfg.APIBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "file", cfg.SnapshotBackend)
	assert.Equal(t, 5*time.Minute, cfg.SnapshotStale)
	assert.Equal(t, 120*time.Second, cfg.AutosaveInterval)
	assert.NotEmpty(t, cfg.SnapshotDir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://assess.example.com/api")
	t.Setenv("SNAPSHOT_BACKEND", "redis")
	t.Setenv("SNAPSHOT_STALE_MINUTES", "10")
	t.Setenv("AUTOSAVE_SECONDS", "30")

	cfg := Load()

	assert.Equal(t, "https://assess.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "redis", cfg.SnapshotBackend)
	assert.Equal(t, 10*time.Minute, cfg.SnapshotStale)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval)
}

func TestGetEnvIntBadValueFallsBack(t *testing.T) {
	t.Setenv("AUTOSAVE_SECONDS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 120*time.Second, cfg.AutosaveInterval)
}

func TestStorageKeys(t *testing.T) {
	assert.Equal(t, "attempt:5:state", StorageKey.AttemptStateKey(5))
	assert.Equal(t, "attempt:5:heartbeat", StorageKey.AttemptHeartbeatKey(5))
	assert.Equal(t, "attempt_5_state.json", StorageKey.AttemptStateFile(5))
	assert.Equal(t, "attempt_5_heartbeat", StorageKey.AttemptHeartbeatFile(5))
}
