package models

import (
	"errors"
	"fmt"
	"time"
)

// Boost bounds accepted for DefaultBoostAmount and zone overrides (°C).
const (
	MinBoostAmount     = 0.5
	MaxBoostAmount     = 5.0
	DefaultBoostAmount = 2.0
)

// Notification kinds.
const (
	NotifyUserIntentPause = "user_intent_pause"
	NotifyBoostApplied    = "boost_applied"
	NotifyBoostRestored   = "boost_restored"
	NotifyAuthError       = "auth_error"
)

// ZonePreference is one thermostat room the coordination may boost.
type ZonePreference struct {
	RoomID        string   `json:"roomId"`
	RoomName      string   `json:"roomName"`
	Enabled       bool     `json:"enabled"`
	BoostOverride *float64 `json:"boostOverride,omitempty"`
}

// CoordinationPreferences is the versioned per-user configuration.
type CoordinationPreferences struct {
	Enabled                 bool             `json:"enabled"`
	DefaultBoostAmount      float64          `json:"defaultBoostAmount"`
	Zones                   []ZonePreference `json:"zones"`
	NotificationPreferences map[string]bool  `json:"notificationPreferences,omitempty"`
	Version                 int              `json:"version"`
	UpdatedAt               time.Time        `json:"updatedAt"`
}

// DefaultPreferences is what a user gets before saving anything: coordination
// off until zones are chosen.
func DefaultPreferences() CoordinationPreferences {
	return CoordinationPreferences{
		Enabled:            false,
		DefaultBoostAmount: DefaultBoostAmount,
		Zones:              []ZonePreference{},
	}
}

// EnabledZones returns the zones with Enabled set, in order.
func (p CoordinationPreferences) EnabledZones() []ZonePreference {
	out := make([]ZonePreference, 0, len(p.Zones))
	for _, z := range p.Zones {
		if z.Enabled {
			out = append(out, z)
		}
	}
	return out
}

// NotificationEnabled defaults to true for kinds the user never toggled.
func (p CoordinationPreferences) NotificationEnabled(kind string) bool {
	v, ok := p.NotificationPreferences[kind]
	return !ok || v
}

// ErrInvalidPreferences wraps every preferences validation failure.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Validate checks ranges and zone identity. It never mutates p.
func (p CoordinationPreferences) Validate() error {
	if p.DefaultBoostAmount < MinBoostAmount || p.DefaultBoostAmount > MaxBoostAmount {
		return fmt.Errorf("%w: defaultBoostAmount %.1f outside [%.1f, %.1f]",
			ErrInvalidPreferences, p.DefaultBoostAmount, MinBoostAmount, MaxBoostAmount)
	}
	seen := make(map[string]struct{}, len(p.Zones))
	for i, z := range p.Zones {
		if z.RoomID == "" {
			return fmt.Errorf("%w: zones[%d] has no roomId", ErrInvalidPreferences, i)
		}
		if _, dup := seen[z.RoomID]; dup {
			return fmt.Errorf("%w: room %s listed twice", ErrInvalidPreferences, z.RoomID)
		}
		seen[z.RoomID] = struct{}{}
		if o := z.BoostOverride; o != nil && (*o < MinBoostAmount || *o > MaxBoostAmount) {
			return fmt.Errorf("%w: room %s boostOverride %.1f outside [%.1f, %.1f]",
				ErrInvalidPreferences, z.RoomID, *o, MinBoostAmount, MaxBoostAmount)
		}
	}
	return nil
}

// BoostFor returns the zone override or the default amount.
func (p CoordinationPreferences) BoostFor(z ZonePreference) float64 {
	if z.BoostOverride != nil {
		return *z.BoostOverride
	}
	return p.DefaultBoostAmount
}
