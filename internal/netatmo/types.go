package netatmo

import (
	"strconv"

	"stove_coordination/internal/pause"
)

// Room setpoint modes as reported by homestatus and accepted by
// setroomthermpoint.
const (
	ModeManual   = "manual"
	ModeHome     = "home" // back to the weekly schedule
	ModeSchedule = "schedule"
	ModeAway     = "away"
	ModeFrost    = "hg"
	ModeOff      = "off"
	ModeMax      = "max"
)

// FrostGuardTemp is what a room in hg or off mode effectively targets.
const FrostGuardTemp = 7.0

type RoomStatus struct {
	ID                  string  `json:"id"`
	MeasuredTemperature float64 `json:"therm_measured_temperature"`
	SetpointTemperature float64 `json:"therm_setpoint_temperature"`
	SetpointMode        string  `json:"therm_setpoint_mode"`
	SetpointEndTime     int64   `json:"therm_setpoint_end_time,omitempty"`
	Reachable           bool    `json:"reachable"`
}

type HomeStatus struct {
	ID    string       `json:"id"`
	Rooms []RoomStatus `json:"rooms"`
}

// Room returns the status of roomID, if reported.
func (h HomeStatus) Room(roomID string) (RoomStatus, bool) {
	for _, r := range h.Rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return RoomStatus{}, false
}

type homeStatusResponse struct {
	Status string `json:"status"`
	Body   struct {
		Home HomeStatus `json:"home"`
	} `json:"body"`
}

// SetpointRequest is one setroomthermpoint command. Temp is ignored unless
// Mode is ModeManual; EndTime 0 means until the next schedule change.
type SetpointRequest struct {
	HomeID  string
	RoomID  string
	Mode    string
	Temp    float64
	EndTime int64
}

type TimetableEntry struct {
	ZoneID        int `json:"zone_id"`
	OffsetMinutes int `json:"m_offset"`
}

type ScheduleZone struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Type int      `json:"type"`
	Temp *float64 `json:"temp,omitempty"`
}

type ThermSchedule struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Selected  bool             `json:"selected"`
	Timetable []TimetableEntry `json:"timetable"`
	Zones     []ScheduleZone   `json:"zones"`
}

// PauseSchedule converts the vendor schedule for the pause calculator.
func (s *ThermSchedule) PauseSchedule() *pause.Schedule {
	if s == nil {
		return nil
	}
	out := &pause.Schedule{Timetable: make([]pause.Slot, 0, len(s.Timetable))}
	for _, e := range s.Timetable {
		out.Timetable = append(out.Timetable, pause.Slot{OffsetMinutes: e.OffsetMinutes, ZoneID: strconv.Itoa(e.ZoneID)})
	}
	if s.Zones != nil {
		out.Zones = make([]pause.Zone, 0, len(s.Zones))
		for _, z := range s.Zones {
			out.Zones = append(out.Zones, pause.Zone{ID: strconv.Itoa(z.ID), Name: z.Name, Temp: z.Temp})
		}
	}
	return out
}

// Selected returns the active schedule, or the first one when none is
// flagged.
func Selected(schedules []ThermSchedule) *ThermSchedule {
	for i := range schedules {
		if schedules[i].Selected {
			return &schedules[i]
		}
	}
	if len(schedules) > 0 {
		return &schedules[0]
	}
	return nil
}

type homesDataResponse struct {
	Status string `json:"status"`
	Body   struct {
		Homes []struct {
			ID             string          `json:"id"`
			ThermSchedules []ThermSchedule `json:"therm_schedules"`
		} `json:"homes"`
	} `json:"body"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
