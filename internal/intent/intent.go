// Package intent infers a manual thermostat override by comparing what the
// climate system reports against what coordination last commanded.
package intent

import (
	"context"
	"math"

	"stove_coordination/internal/netatmo"
	"stove_coordination/internal/pause"
)

// Tolerance is the setpoint drift (°C) above which a change counts as manual.
const Tolerance = 0.5

type ChangeType string

const (
	SetpointChanged ChangeType = "setpoint_changed"
	ModeChanged     ChangeType = "mode_changed"
)

type Change struct {
	RoomID   string     `json:"roomId"`
	RoomName string     `json:"roomName"`
	Type     ChangeType `json:"type"`
	Expected any        `json:"expected"`
	Actual   any        `json:"actual"`
}

// Room identifies a zone to inspect.
type Room struct {
	ID   string
	Name string
}

// Result aggregates the changes found in one detection. Err is set when the
// home status could not be fetched; ManualChange is then false.
type Result struct {
	ManualChange bool     `json:"manualChange"`
	Changes      []Change `json:"changes"`
	Reason       string   `json:"reason,omitempty"`
	Error        string   `json:"error,omitempty"`
	Err          error    `json:"-"`
}

// Kind summarises the changes for the pause reason.
func (r Result) Kind() pause.ChangeType {
	var setpoint, mode bool
	for _, c := range r.Changes {
		switch c.Type {
		case SetpointChanged:
			setpoint = true
		case ModeChanged:
			mode = true
		}
	}
	switch {
	case setpoint && mode:
		return pause.ChangeBoth
	case setpoint:
		return pause.ChangeSetpoint
	case mode:
		return pause.ChangeMode
	default:
		return pause.ChangeOther
	}
}

// overrideMode reports whether mode can only have been set by hand.
func overrideMode(mode string, hasExpected bool) bool {
	switch mode {
	case netatmo.ModeHome, netatmo.ModeSchedule:
		return false
	case netatmo.ModeManual:
		return !hasExpected
	default:
		return true
	}
}

// Detector runs detections against one climate API handle.
type Detector struct {
	api  netatmo.API
	lang string
}

func NewDetector(api netatmo.API, lang string) *Detector {
	return &Detector{api: api, lang: lang}
}

// DetectUserIntent fetches the home status once and diffs every requested
// room present in it. It never returns an error: fetch failures end up in
// Result.Err.
func (d *Detector) DetectUserIntent(ctx context.Context, homeID string, rooms []Room, expected map[string]float64) Result {
	status, err := d.api.GetHomeStatus(ctx, homeID)
	if err != nil {
		return Result{Changes: []Change{}, Error: err.Error(), Err: err}
	}

	changes := []Change{}
	for _, room := range rooms {
		rs, ok := status.Room(room.ID)
		if !ok {
			continue
		}
		name := room.Name
		if name == "" {
			name = room.ID
		}
		want, hasExpected := expected[room.ID]

		actual := rs.SetpointTemperature
		if overrideMode(rs.SetpointMode, hasExpected) {
			changes = append(changes, Change{RoomID: room.ID, RoomName: name, Type: ModeChanged, Expected: netatmo.ModeManual, Actual: rs.SetpointMode})
		}
		if rs.SetpointMode == netatmo.ModeFrost || rs.SetpointMode == netatmo.ModeOff {
			actual = netatmo.FrostGuardTemp
		}
		if hasExpected && math.Abs(actual-want) > Tolerance {
			changes = append(changes, Change{RoomID: room.ID, RoomName: name, Type: SetpointChanged, Expected: want, Actual: actual})
		}
	}

	res := Result{ManualChange: len(changes) > 0, Changes: changes}
	if res.ManualChange {
		res.Reason = reason(d.lang, res)
	}
	return res
}

// WasManuallyChanged checks a single room and reports false on any error.
func (d *Detector) WasManuallyChanged(ctx context.Context, homeID, roomID string, expectedTemp float64) bool {
	res := d.DetectUserIntent(ctx, homeID, []Room{{ID: roomID}}, map[string]float64{roomID: expectedTemp})
	return res.Err == nil && res.ManualChange
}
