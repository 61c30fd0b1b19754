package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/assesshub/attempt-runner/internal/config"
	"github.com/assesshub/attempt-runner/internal/model"
)

// FileStore keeps one snapshot file and one heartbeat file per attempt
// under a directory. This is the default backend for single-user devices.
type FileStore struct {
	dir       string
	threshold time.Duration
	log       zerolog.Logger
}

// NewFileStore creates a FileStore rooted at dir. A threshold of 0 uses
// DefaultStaleThreshold.
func NewFileStore(dir string, threshold time.Duration, log zerolog.Logger) *FileStore {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &FileStore{
		dir:       dir,
		threshold: threshold,
		log:       log.With().Str("component", "snapshot_file").Logger(),
	}
}

func (s *FileStore) statePath(attemptID int) string {
	return filepath.Join(s.dir, config.StorageKey.AttemptStateFile(attemptID))
}

func (s *FileStore) heartbeatPath(attemptID int) string {
	return filepath.Join(s.dir, config.StorageKey.AttemptHeartbeatFile(attemptID))
}

// Write overwrites the attempt's snapshot and refreshes its heartbeat.
func (s *FileStore) Write(ctx context.Context, attemptID int, snap *model.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.statePath(attemptID), raw, 0o600); err != nil {
		return err
	}

	hb := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return os.WriteFile(s.heartbeatPath(attemptID), []byte(hb), 0o600)
}

// Read returns the attempt's snapshot, or nil when absent, unparseable, or
// stale. A stale or heartbeat-less entry is deleted as a side effect so the
// state/heartbeat pair never diverges.
func (s *FileStore) Read(ctx context.Context, attemptID int) (*model.Snapshot, error) {
	hbRaw, err := os.ReadFile(s.heartbeatPath(attemptID))
	if err != nil {
		return nil, s.Clear(ctx, attemptID)
	}
	hbMilli, err := strconv.ParseInt(string(hbRaw), 10, 64)
	if err != nil {
		s.log.Warn().Int("attempt_id", attemptID).Msg("Heartbeat unparseable, discarding snapshot")
		return nil, s.Clear(ctx, attemptID)
	}

	if time.Since(time.UnixMilli(hbMilli)) > s.threshold {
		s.log.Debug().Int("attempt_id", attemptID).Msg("Snapshot stale, discarding")
		return nil, s.Clear(ctx, attemptID)
	}

	raw, err := os.ReadFile(s.statePath(attemptID))
	if err != nil {
		return nil, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn().Err(err).Int("attempt_id", attemptID).Msg("Snapshot unparseable")
		return nil, nil
	}
	return &snap, nil
}

// Clear removes the attempt's snapshot and heartbeat.
func (s *FileStore) Clear(ctx context.Context, attemptID int) error {
	stateErr := os.Remove(s.statePath(attemptID))
	hbErr := os.Remove(s.heartbeatPath(attemptID))
	if stateErr != nil && !os.IsNotExist(stateErr) {
		return stateErr
	}
	if hbErr != nil && !os.IsNotExist(hbErr) {
		return hbErr
	}
	return nil
}
