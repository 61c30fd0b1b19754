package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assesshub/attempt-runner/internal/config"
	"github.com/assesshub/attempt-runner/internal/model"
)

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		RemainingSeconds: 1200,
		QuestionIndex:    2,
		Answers:          map[int]string{1: "A", 2: "because"},
		SavedAt:          time.Now(),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, 7, testSnapshot()))

	got, err := store.Read(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1200, got.RemainingSeconds)
	assert.Equal(t, 2, got.QuestionIndex)
	assert.Equal(t, map[int]string{1: "A", 2: "because"}, got.Answers)
}

func TestFileStoreAbsent(t *testing.T) {
	store := NewFileStore(t.TempDir(), 5*time.Minute, zerolog.Nop())

	got, err := store.Read(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreCorruptState(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, 7, testSnapshot()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.StorageKey.AttemptStateFile(7)), []byte("{not json"), 0o600))

	got, err := store.Read(ctx, 7)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreStaleReadDeletes(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, 7, testSnapshot()))

	// Age the heartbeat past the threshold.
	old := time.Now().Add(-6 * time.Minute).UnixMilli()
	hbPath := filepath.Join(dir, config.StorageKey.AttemptHeartbeatFile(7))
	require.NoError(t, os.WriteFile(hbPath, []byte(strconv.FormatInt(old, 10)), 0o600))

	got, err := store.Read(ctx, 7)
	assert.NoError(t, err)
	assert.Nil(t, got)

	// Deletion is a side effect of the stale read.
	_, err = os.Stat(hbPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, config.StorageKey.AttemptStateFile(7)))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreMissingHeartbeatClearsState(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, 7, testSnapshot()))
	statePath := filepath.Join(dir, config.StorageKey.AttemptStateFile(7))
	require.NoError(t, os.Remove(filepath.Join(dir, config.StorageKey.AttemptHeartbeatFile(7))))

	got, err := store.Read(ctx, 7)
	assert.NoError(t, err)
	assert.Nil(t, got)

	// The orphaned state file goes with the heartbeat.
	_, err = os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreUnparseableHeartbeatClearsPair(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, 7, testSnapshot()))
	hbPath := filepath.Join(dir, config.StorageKey.AttemptHeartbeatFile(7))
	require.NoError(t, os.WriteFile(hbPath, []byte("not-millis"), 0o600))

	got, err := store.Read(ctx, 7)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = os.Stat(hbPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, config.StorageKey.AttemptStateFile(7)))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreClear(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, 7, testSnapshot()))
	require.NoError(t, store.Clear(ctx, 7))

	got, err := store.Read(ctx, 7)
	assert.NoError(t, err)
	assert.Nil(t, got)

	// Clearing an absent entry is not an error.
	assert.NoError(t, store.Clear(ctx, 7))
}

func TestFileStoreWriteIsolatedPerAttempt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	first := testSnapshot()
	second := testSnapshot()
	second.RemainingSeconds = 42

	require.NoError(t, store.Write(ctx, 1, first))
	require.NoError(t, store.Write(ctx, 2, second))

	got1, err := store.Read(ctx, 1)
	require.NoError(t, err)
	got2, err := store.Read(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 1200, got1.RemainingSeconds)
	assert.Equal(t, 42, got2.RemainingSeconds)
}
