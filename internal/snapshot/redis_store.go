package snapshot

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/assesshub/attempt-runner/internal/config"
	"github.com/assesshub/attempt-runner/internal/model"
)

// RedisStore keeps snapshots in a local redis instance. Used on shared
// lab/kiosk machines where the cache should outlive the runner process
// and survive a machine account switch.
type RedisStore struct {
	rdb       *redis.Client
	threshold time.Duration
	log       zerolog.Logger
}

// NewRedisStore creates a RedisStore. A threshold of 0 uses
// DefaultStaleThreshold.
func NewRedisStore(rdb *redis.Client, threshold time.Duration, log zerolog.Logger) *RedisStore {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &RedisStore{
		rdb:       rdb,
		threshold: threshold,
		log:       log.With().Str("component", "snapshot_redis").Logger(),
	}
}

// Write overwrites the attempt's snapshot and refreshes its heartbeat.
// Keys carry a generous TTL so abandoned attempts age out on their own.
func (s *RedisStore) Write(ctx context.Context, attemptID int, snap *model.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	ttl := 24 * time.Hour
	if err := s.rdb.Set(ctx, config.StorageKey.AttemptStateKey(attemptID), raw, ttl).Err(); err != nil {
		return err
	}
	hb := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return s.rdb.Set(ctx, config.StorageKey.AttemptHeartbeatKey(attemptID), hb, ttl).Err()
}

// Read returns the attempt's snapshot, or nil when absent, unparseable, or
// stale. A stale or heartbeat-less entry is deleted as a side effect so the
// state/heartbeat pair never diverges.
func (s *RedisStore) Read(ctx context.Context, attemptID int) (*model.Snapshot, error) {
	hbRaw, err := s.rdb.Get(ctx, config.StorageKey.AttemptHeartbeatKey(attemptID)).Result()
	if err != nil {
		if err != redis.Nil {
			return nil, err
		}
		return nil, s.Clear(ctx, attemptID)
	}
	hbMilli, err := strconv.ParseInt(hbRaw, 10, 64)
	if err != nil {
		s.log.Warn().Int("attempt_id", attemptID).Msg("Heartbeat unparseable, discarding snapshot")
		return nil, s.Clear(ctx, attemptID)
	}

	if time.Since(time.UnixMilli(hbMilli)) > s.threshold {
		s.log.Debug().Int("attempt_id", attemptID).Msg("Snapshot stale, discarding")
		return nil, s.Clear(ctx, attemptID)
	}

	raw, err := s.rdb.Get(ctx, config.StorageKey.AttemptStateKey(attemptID)).Result()
	if err != nil {
		if err != redis.Nil {
			return nil, err
		}
		return nil, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn().Err(err).Int("attempt_id", attemptID).Msg("Snapshot unparseable")
		return nil, nil
	}
	return &snap, nil
}

// Clear removes the attempt's snapshot and heartbeat.
func (s *RedisStore) Clear(ctx context.Context, attemptID int) error {
	return s.rdb.Del(ctx,
		config.StorageKey.AttemptStateKey(attemptID),
		config.StorageKey.AttemptHeartbeatKey(attemptID),
	).Err()
}
