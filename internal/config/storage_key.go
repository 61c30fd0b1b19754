package config

import (
	"fmt"
)

type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// AttemptStateKey returns the storage key for an attempt's cached snapshot
func (r *StorageKeyStruct) AttemptStateKey(attemptID int) string {
	return fmt.Sprintf("attempt:%d:state", attemptID)
}

// AttemptHeartbeatKey returns the storage key for an attempt's freshness marker
func (r *StorageKeyStruct) AttemptHeartbeatKey(attemptID int) string {
	return fmt.Sprintf("attempt:%d:heartbeat", attemptID)
}

// AttemptStateFile returns the snapshot file name for an attempt
func (r *StorageKeyStruct) AttemptStateFile(attemptID int) string {
	return fmt.Sprintf("attempt_%d_state.json", attemptID)
}

// AttemptHeartbeatFile returns the heartbeat file name for an attempt
func (r *StorageKeyStruct) AttemptHeartbeatFile(attemptID int) string {
	return fmt.Sprintf("attempt_%d_heartbeat", attemptID)
}

var StorageKey = NewStorageKeyStruct()
