package model

import (
	"time"
)

// Snapshot is the device-local recovery copy of an in-progress attempt.
// It is never authoritative: the backend's confirmed answers win over it
// on reconciliation, and it is discarded once stale.
type Snapshot struct {
	RemainingSeconds int            `json:"time_left_seconds"`
	QuestionIndex    int            `json:"current_question_index"`
	Answers          map[int]string `json:"answers"`
	SavedAt          time.Time      `json:"saved_at"`
}

// Stale reports whether the snapshot's heartbeat is older than threshold.
func (s *Snapshot) Stale(threshold time.Duration, now time.Time) bool {
	return now.Sub(s.SavedAt) > threshold
}
