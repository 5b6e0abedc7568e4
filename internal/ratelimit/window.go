// Package ratelimit bounds outbound climate API calls per user with two
// windows enforced together: a sliding 10 s burst window (50 calls) and a
// fixed one-hour window (400 calls).
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	BurstWindow  = 10 * time.Second
	BurstLimit   = 50
	HourlyWindow = time.Hour
	HourlyLimit  = 400
)

// ErrLimited is returned by Track when either window is exhausted.
var ErrLimited = errors.New("ratelimit: climate API call budget exhausted")

// Window names the constraint reported in a Decision.
type Window string

const (
	WindowBurst  Window = "burst"
	WindowHourly Window = "hourly"
)

// Usage is the per-user record, identical in memory and in the durable store.
type Usage struct {
	Timestamps  []int64 `json:"timestamps"`  // unix ms of calls inside the burst window
	Count       int     `json:"count"`       // calls in the current hourly window
	WindowStart int64   `json:"windowStart"` // unix ms
}

// Decision is the outcome of Check/Track. CurrentCount, Limit and Remaining
// describe the binding window: the one with fewer calls left, the burst
// window on a tie.
type Decision struct {
	Allowed      bool          `json:"allowed"`
	CurrentCount int           `json:"currentCount"`
	Limit        int           `json:"limit"`
	Remaining    int           `json:"remaining"`
	ResetIn      time.Duration `json:"-"`
	Window       Window        `json:"window"`
}

// ResetInSeconds rounds ResetIn up to whole seconds.
func (d Decision) ResetInSeconds() int {
	return ceilSeconds(d.ResetIn)
}

// MarshalJSON reports the reset delay as resetInSeconds, present only when
// the call was rejected.
func (d Decision) MarshalJSON() ([]byte, error) {
	type plain Decision
	return json.Marshal(struct {
		plain
		ResetInSeconds int `json:"resetInSeconds,omitempty"`
	}{plain(d), d.ResetInSeconds()})
}

// WindowStatus describes one window independently of the other.
type WindowStatus struct {
	Count     int           `json:"count"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"-"`
}

func (w WindowStatus) MarshalJSON() ([]byte, error) {
	type plain WindowStatus
	return json.Marshal(struct {
		plain
		ResetInSeconds int `json:"resetInSeconds"`
	}{plain(w), ceilSeconds(w.ResetIn)})
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// Status reports both windows plus the combined decision.
type Status struct {
	Burst    WindowStatus `json:"burst"`
	Hourly   WindowStatus `json:"hourly"`
	Decision Decision     `json:"decision"`
}

// Limiter is implemented by the volatile and durable variants.
type Limiter interface {
	Check(ctx context.Context, userID string) (Decision, error)
	Track(ctx context.Context, userID string) (Decision, error)
	Status(ctx context.Context, userID string) (Status, error)
}

// prune drops burst timestamps older than the window and expires the hourly
// counter.
func (u Usage) prune(now time.Time) Usage {
	nowMs := now.UnixMilli()
	cutoff := nowMs - BurstWindow.Milliseconds()
	kept := make([]int64, 0, len(u.Timestamps))
	for _, ts := range u.Timestamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	u.Timestamps = kept
	if u.hourlyExpired(nowMs) {
		u.Count = 0
		u.WindowStart = 0
	}
	return u
}

func (u Usage) hourlyExpired(nowMs int64) bool {
	return nowMs-u.WindowStart > HourlyWindow.Milliseconds()
}

// empty reports whether nothing in u still counts against the user.
func (u Usage) empty(now time.Time) bool {
	p := u.prune(now)
	return len(p.Timestamps) == 0 && p.Count == 0
}

func (u Usage) windows(now time.Time) (burst, hourly WindowStatus) {
	p := u.prune(now)
	nowMs := now.UnixMilli()

	burst = WindowStatus{Count: len(p.Timestamps), Limit: BurstLimit}
	burst.Remaining = max(BurstLimit-burst.Count, 0)
	if len(p.Timestamps) > 0 {
		oldest := p.Timestamps[0]
		for _, ts := range p.Timestamps[1:] {
			oldest = min(oldest, ts)
		}
		burst.ResetIn = time.Duration(oldest+BurstWindow.Milliseconds()-nowMs) * time.Millisecond
	}

	hourly = WindowStatus{Count: p.Count, Limit: HourlyLimit}
	hourly.Remaining = max(HourlyLimit-hourly.Count, 0)
	if p.Count > 0 {
		hourly.ResetIn = time.Duration(p.WindowStart+HourlyWindow.Milliseconds()-nowMs) * time.Millisecond
	}
	return burst, hourly
}

// evaluate computes the decision for one more call without recording it.
func (u Usage) evaluate(now time.Time) Decision {
	burst, hourly := u.windows(now)
	d := Decision{
		Allowed:      burst.Count < BurstLimit && hourly.Count < HourlyLimit,
		CurrentCount: burst.Count,
		Limit:        BurstLimit,
		Remaining:    burst.Remaining,
		Window:       WindowBurst,
	}
	reset := burst.ResetIn
	if hourly.Remaining < burst.Remaining {
		d.CurrentCount = hourly.Count
		d.Limit = HourlyLimit
		d.Remaining = hourly.Remaining
		d.Window = WindowHourly
		reset = hourly.ResetIn
	}
	if !d.Allowed {
		d.ResetIn = reset
	}
	return d
}

func (u Usage) status(now time.Time) Status {
	burst, hourly := u.windows(now)
	return Status{Burst: burst, Hourly: hourly, Decision: u.evaluate(now)}
}

// record evaluates and, when allowed, counts one call in both windows.
func (u Usage) record(now time.Time) (Usage, Decision) {
	p := u.prune(now)
	d := p.evaluate(now)
	if !d.Allowed {
		return u, d
	}
	nowMs := now.UnixMilli()
	p.Timestamps = append(p.Timestamps, nowMs)
	if p.hourlyExpired(nowMs) || p.Count == 0 {
		p.Count = 1
		p.WindowStart = nowMs
	} else {
		p.Count++
	}
	return p, p.evaluateAfterRecord(now)
}

// evaluateAfterRecord reports the post-call counts; Allowed stays true since
// the call was admitted.
func (u Usage) evaluateAfterRecord(now time.Time) Decision {
	d := u.evaluate(now)
	d.Allowed = true
	d.ResetIn = 0
	return d
}
