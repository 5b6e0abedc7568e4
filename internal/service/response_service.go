package service

import (
	"time"

	"stove_coordination/internal/debounce"
	"stove_coordination/internal/models"
	"stove_coordination/internal/ratelimit"
	"stove_coordination/internal/throttle"
)

// PreferencesPatch is a partial update; nil fields keep their stored value.
type PreferencesPatch struct {
	Enabled                 *bool                    `json:"enabled,omitempty"`
	DefaultBoostAmount      *float64                 `json:"defaultBoostAmount,omitempty"`
	Zones                   *[]models.ZonePreference `json:"zones,omitempty"`
	NotificationPreferences map[string]bool          `json:"notificationPreferences,omitempty"`
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "CYCLE", "BOOST", "RESTORE", "PAUSE", "RESUME", "DEBOUNCE", "NOTIFY", "VENDOR_ERROR"
}

// StateSnapshot is the durable state plus the volatile debounce view.
type StateSnapshot struct {
	State            models.CoordinationState `json:"state"`
	Debounce         debounce.Status          `json:"debounce"`
	PauseRemainingMs int64                    `json:"pauseRemainingMs"`
}

type LimitsStatus struct {
	RateLimit ratelimit.Status `json:"rateLimit"`
	Throttle  throttle.Status  `json:"notificationThrottle"`
}

// PollTarget is one user whose stove the poller watches.
type PollTarget struct {
	UserID string
	HomeID string
	Device string
}
