package models

import "time"

// Coordination event types stored in the event log.
const (
	EventCycle       = "CYCLE"
	EventBoost       = "BOOST"
	EventRestore     = "RESTORE"
	EventPause       = "PAUSE"
	EventResume      = "RESUME"
	EventDebounce    = "DEBOUNCE"
	EventNotify      = "NOTIFY"
	EventVendorError = "VENDOR_ERROR"
)

// CoordinationEvent is a single log entry.
type CoordinationEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// CronExecution records one scheduled poll of a user's stove.
type CronExecution struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	StartedAt   time.Time `json:"startedAt"`
	DurationMs  int64     `json:"durationMs"`
	StoveStatus string    `json:"stoveStatus"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
}
