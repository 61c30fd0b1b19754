// Package snapshot caches in-progress attempt state on the candidate's
// device so a crash or forced exit does not lose work. The cache is a
// recovery aid only: every failure degrades to "no cached state" and the
// session keeps running without it.
package snapshot

import (
	"context"
	"time"

	"github.com/assesshub/attempt-runner/internal/model"
)

// DefaultStaleThreshold is how long a snapshot stays usable without a
// fresh heartbeat.
const DefaultStaleThreshold = 5 * time.Minute

// Store persists per-attempt snapshots with a freshness heartbeat.
//
// Read returns (nil, nil) when no usable snapshot exists: absent,
// unparseable, or stale. Reading a stale entry deletes it. Errors are
// returned for logging only; callers must treat any error the same as
// an absent snapshot.
type Store interface {
	Write(ctx context.Context, attemptID int, snap *model.Snapshot) error
	Read(ctx context.Context, attemptID int) (*model.Snapshot, error)
	Clear(ctx context.Context, attemptID int) error
}
