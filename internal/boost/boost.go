// Package boost raises the setpoint of a set of rooms while the stove heats
// and puts them back afterwards. Rooms are handled independently: one
// failing room never stops the others.
package boost

import (
	"context"
	"errors"
	"fmt"

	"stove_coordination/internal/logger"
	"stove_coordination/internal/netatmo"
)

// MaxSetpoint is the highest temperature (°C) a boost may command.
const MaxSetpoint = 30.0

// RestoredToSchedule is reported for rooms handed back to the weekly schedule.
const RestoredToSchedule = "schedule"

var errRoomNotReported = errors.New("room not reported by home status")

// Room is a zone to act on. A nil Boost uses the call's default amount.
type Room struct {
	ID    string
	Name  string
	Boost *float64
}

type RoomError struct {
	RoomID string `json:"roomId"`
	Err    error  `json:"-"`
	Msg    string `json:"error"`
}

type BoostResult struct {
	Success           bool               `json:"success"`
	AppliedSetpoints  map[string]float64 `json:"appliedSetpoints"`
	PreviousSetpoints map[string]float64 `json:"previousSetpoints"`
	CappedRooms       []string           `json:"cappedRooms"`
	Errors            []RoomError        `json:"errors,omitempty"`
}

type RestoredRoom struct {
	RoomID      string `json:"roomId"`
	RoomName    string `json:"roomName"`
	HadPrevious bool   `json:"hadPrevious"`
	RestoredTo  any    `json:"restoredTo"`
}

type RestoreResult struct {
	Success       bool           `json:"success"`
	RestoredRooms []RestoredRoom `json:"restoredRooms"`
	Errors        []RoomError    `json:"errors,omitempty"`
}

// AuthFailed reports whether any room failed on rejected credentials.
func AuthFailed(errs []RoomError) bool {
	for _, e := range errs {
		if netatmo.IsAuth(e.Err) {
			return true
		}
	}
	return false
}

// Applied returns min(current+amount, MaxSetpoint) and whether it was capped.
func Applied(current, amount float64) (float64, bool) {
	target := current + amount
	if target > MaxSetpoint {
		return MaxSetpoint, true
	}
	return target, false
}

type Applier struct {
	api netatmo.API
	log *logger.Logger
}

func NewApplier(api netatmo.API, log *logger.Logger) *Applier {
	return &Applier{api: api, log: logger.OrNop(log).Named("boost")}
}

// SetRoomsToBoostMode reads every room from one home status fetch and sets
// each to its boosted value. previous keeps an existing baseline: a room
// already present there is not overwritten, so repeated boosts restore to
// the pre-automation value. The returned error is set only when the home
// status itself could not be read.
func (a *Applier) SetRoomsToBoostMode(ctx context.Context, homeID string, rooms []Room, amount float64, previous map[string]float64) (BoostResult, error) {
	res := BoostResult{
		AppliedSetpoints:  map[string]float64{},
		PreviousSetpoints: map[string]float64{},
		CappedRooms:       []string{},
	}
	for id, v := range previous {
		res.PreviousSetpoints[id] = v
	}

	status, err := a.api.GetHomeStatus(ctx, homeID)
	if err != nil {
		return res, fmt.Errorf("boost %s: %w", homeID, err)
	}

	for _, room := range rooms {
		rs, ok := status.Room(room.ID)
		if !ok {
			res.Errors = append(res.Errors, roomError(room.ID, errRoomNotReported))
			continue
		}

		inc := amount
		if room.Boost != nil {
			inc = *room.Boost
		}
		target, capped := Applied(rs.SetpointTemperature, inc)

		err := a.api.SetRoomSetpoint(ctx, netatmo.SetpointRequest{HomeID: homeID, RoomID: room.ID, Mode: netatmo.ModeManual, Temp: target})
		if err != nil {
			a.log.Warnw("boost_room_failed", "home_id", homeID, "room_id", room.ID, "error", err)
			res.Errors = append(res.Errors, roomError(room.ID, err))
			continue
		}

		res.AppliedSetpoints[room.ID] = target
		if _, kept := previous[room.ID]; !kept {
			res.PreviousSetpoints[room.ID] = rs.SetpointTemperature
		}
		if capped {
			res.CappedRooms = append(res.CappedRooms, room.ID)
		}
		a.log.Infow("boost_room_applied", "home_id", homeID, "room_id", room.ID, "from", rs.SetpointTemperature, "to", target, "capped", capped)
	}

	res.Success = len(res.AppliedSetpoints) > 0
	return res, nil
}

// RestoreRoomSetpoints sets each room back to its recorded value, or hands
// it back to the schedule when none was recorded.
func (a *Applier) RestoreRoomSetpoints(ctx context.Context, homeID string, rooms []Room, previous map[string]float64) RestoreResult {
	res := RestoreResult{RestoredRooms: []RestoredRoom{}}

	for _, room := range rooms {
		req := netatmo.SetpointRequest{HomeID: homeID, RoomID: room.ID, Mode: netatmo.ModeHome}
		out := RestoredRoom{RoomID: room.ID, RoomName: room.Name, RestoredTo: RestoredToSchedule}
		if v, ok := previous[room.ID]; ok {
			req.Mode = netatmo.ModeManual
			req.Temp = v
			out.HadPrevious = true
			out.RestoredTo = v
		}

		if err := a.api.SetRoomSetpoint(ctx, req); err != nil {
			a.log.Warnw("restore_room_failed", "home_id", homeID, "room_id", room.ID, "error", err)
			res.Errors = append(res.Errors, roomError(room.ID, err))
			continue
		}
		res.RestoredRooms = append(res.RestoredRooms, out)
	}

	res.Success = len(res.RestoredRooms) > 0
	return res
}

func roomError(roomID string, err error) RoomError {
	return RoomError{RoomID: roomID, Err: err, Msg: err.Error()}
}
