package models

import "time"

// PauseReason explains why automation is standing down.
type PauseReason string

const (
	PauseUserIntent PauseReason = "user_intent"
)

// CoordinationState is the durable per-user record of the coordination cycle.
// PendingDebounce mirrors the in-memory debounce table; PreviousSetpoints is
// non-nil exactly while a boost is active.
type CoordinationState struct {
	StoveOn           bool               `json:"stoveOn"`
	AutomationPaused  bool               `json:"automationPaused"`
	PausedUntil       *time.Time         `json:"pausedUntil,omitempty"`
	PauseReason       *PauseReason       `json:"pauseReason,omitempty"`
	LastStateChange   time.Time          `json:"lastStateChange"`
	PendingDebounce   bool               `json:"pendingDebounce"`
	DebounceStartedAt *time.Time         `json:"debounceStartedAt,omitempty"`
	PreviousSetpoints map[string]float64 `json:"previousSetpoints,omitempty"`
	AppliedSetpoints  map[string]float64 `json:"appliedSetpoints,omitempty"`
	LastStoveStatus   string             `json:"lastStoveStatus,omitempty"`
	LastCycleAt       *time.Time         `json:"lastCycleAt,omitempty"`
}

// BoostActive reports whether a boost is currently applied.
func (s CoordinationState) BoostActive() bool {
	return s.PreviousSetpoints != nil
}

// ClearPause drops every pause field.
func (s *CoordinationState) ClearPause() {
	s.AutomationPaused = false
	s.PausedUntil = nil
	s.PauseReason = nil
}

// ClearBoost forgets the boost baseline and the values the system applied.
func (s *CoordinationState) ClearBoost() {
	s.PreviousSetpoints = nil
	s.AppliedSetpoints = nil
}
