package domain

import "time"

// State represents the persistent agent state for crash recovery.
type State struct {
	LastSnapshotID string    `json:"last_snapshot_id"`
	LastCycleAt    time.Time `json:"last_cycle_at"`
	Cycles         uint64    `json:"cycles"`

	// ConsecutiveFailures counts cycles where every source failed.
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// RecordSuccess updates state after a cycle produced a snapshot.
func (s *State) RecordSuccess(snapshotID string, at time.Time) {
	s.LastSnapshotID = snapshotID
	s.LastCycleAt = at
	s.Cycles++
	s.ConsecutiveFailures = 0
	s.LastError = ""
}

// RecordFailure updates state after a cycle produced nothing.
func (s *State) RecordFailure(err error, at time.Time) {
	s.LastCycleAt = at
	s.Cycles++
	s.ConsecutiveFailures++
	if err != nil {
		s.LastError = err.Error()
	}
}
