// Package pause computes how long coordination stands down after a manual
// override: until the next transition of the weekly heating schedule.
package pause

import (
	"sort"
	"time"
)

const (
	MinutesPerDay  = 24 * 60
	MinutesPerWeek = 7 * MinutesPerDay

	// FallbackMinutes is used when no schedule is available.
	FallbackMinutes = 60
)

// Slot is one timetable entry: from OffsetMinutes after Monday 00:00 UTC the
// schedule switches to ZoneID.
type Slot struct {
	OffsetMinutes int    `json:"offsetMinutes"`
	ZoneID        string `json:"zoneId"`
}

// Zone is a named schedule zone ("Comfort", "Night", ...).
type Zone struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Temp *float64 `json:"temp,omitempty"`
}

// Schedule is the weekly program. A nil Zones table means names are unknown.
type Schedule struct {
	Timetable []Slot `json:"timetable"`
	Zones     []Zone `json:"zones,omitempty"`
}

type NextSlot struct {
	OffsetMinutes int      `json:"offsetMinutes"`
	ZoneName      string   `json:"zoneName"`
	Temp          *float64 `json:"temp,omitempty"`
}

type Decision struct {
	PauseUntil  time.Time `json:"pauseUntil"`
	WaitMinutes int       `json:"waitMinutes"`
	NextSlot    *NextSlot `json:"nextSlot"`
}

// WeekOffset is the number of minutes since Monday 00:00 UTC.
func WeekOffset(t time.Time) int {
	t = t.UTC()
	day := (int(t.Weekday()) + 6) % 7
	return day*MinutesPerDay + t.Hour()*60 + t.Minute()
}

// CalculatePauseUntil returns the pause ending at the first slot strictly
// after now, wrapping to the first slot of the following week.
func CalculatePauseUntil(now time.Time, schedule *Schedule) Decision {
	if schedule == nil || len(schedule.Timetable) == 0 {
		return Decision{PauseUntil: now.Add(FallbackMinutes * time.Minute), WaitMinutes: FallbackMinutes}
	}

	slots := make([]Slot, len(schedule.Timetable))
	copy(slots, schedule.Timetable)
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].OffsetMinutes < slots[j].OffsetMinutes })

	nowOffset := WeekOffset(now)
	i := sort.Search(len(slots), func(i int) bool { return slots[i].OffsetMinutes > nowOffset })

	var next Slot
	var wait int
	if i < len(slots) {
		next = slots[i]
		wait = next.OffsetMinutes - nowOffset
	} else {
		next = slots[0]
		wait = (MinutesPerWeek - nowOffset) + next.OffsetMinutes
	}

	name, temp := schedule.zone(next.ZoneID)
	return Decision{
		PauseUntil:  now.Add(time.Duration(wait) * time.Minute),
		WaitMinutes: wait,
		NextSlot:    &NextSlot{OffsetMinutes: next.OffsetMinutes, ZoneName: name, Temp: temp},
	}
}

func (s *Schedule) zone(id string) (string, *float64) {
	for _, z := range s.Zones {
		if z.ID == id {
			return z.Name, z.Temp
		}
	}
	return "Zone " + id, nil
}
