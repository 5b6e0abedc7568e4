package ratelimit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)

func burstOf(n int, at time.Time) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = at.UnixMilli()
	}
	return ts
}

func TestEvaluate_FiftyInBurstRejected(t *testing.T) {
	u := Usage{Timestamps: burstOf(50, t0.Add(-2*time.Second)), Count: 50, WindowStart: t0.Add(-time.Minute).UnixMilli()}

	d := u.evaluate(t0)

	assert.False(t, d.Allowed)
	assert.Equal(t, BurstLimit, d.Limit)
	assert.Equal(t, 50, d.CurrentCount)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, WindowBurst, d.Window)
	assert.Equal(t, 8*time.Second, d.ResetIn)
	assert.Equal(t, 8, d.ResetInSeconds())
}

func TestEvaluate_OldTimestampsExcluded(t *testing.T) {
	ts := burstOf(49, t0.Add(-3*time.Second))
	ts = append(ts, t0.Add(-10*time.Second).UnixMilli(), t0.Add(-11*time.Second).UnixMilli())
	u := Usage{Timestamps: ts}

	d := u.evaluate(t0)

	assert.True(t, d.Allowed)
	assert.Equal(t, 49, d.CurrentCount)
	assert.Equal(t, 1, d.Remaining)
}

func TestEvaluate_HourlyBindsWhenFewerLeft(t *testing.T) {
	u := Usage{Timestamps: burstOf(3, t0.Add(-time.Second)), Count: 398, WindowStart: t0.Add(-30 * time.Minute).UnixMilli()}

	d := u.evaluate(t0)

	assert.True(t, d.Allowed)
	assert.Equal(t, WindowHourly, d.Window)
	assert.Equal(t, HourlyLimit, d.Limit)
	assert.Equal(t, 398, d.CurrentCount)
	assert.Equal(t, 2, d.Remaining)
}

func TestEvaluate_HourlyExhausted(t *testing.T) {
	u := Usage{Count: 400, WindowStart: t0.Add(-50 * time.Minute).UnixMilli()}

	d := u.evaluate(t0)

	assert.False(t, d.Allowed)
	assert.Equal(t, WindowHourly, d.Window)
	assert.Equal(t, 10*time.Minute, d.ResetIn)
}

// Both windows full: the burst window is reported.
func TestEvaluate_TieReportsBurst(t *testing.T) {
	u := Usage{Timestamps: burstOf(50, t0.Add(-time.Second)), Count: 400, WindowStart: t0.Add(-time.Minute).UnixMilli()}

	d := u.evaluate(t0)

	assert.False(t, d.Allowed)
	assert.Equal(t, WindowBurst, d.Window)
	assert.Equal(t, BurstLimit, d.Limit)
	assert.Equal(t, 0, d.Remaining)
}

func TestRecord_HourlyResetAfterWindow(t *testing.T) {
	u := Usage{Count: 400, WindowStart: t0.Add(-time.Hour - time.Second).UnixMilli()}

	next, d := u.record(t0)

	assert.True(t, d.Allowed)
	assert.Equal(t, 1, next.Count)
	assert.Equal(t, t0.UnixMilli(), next.WindowStart)
	assert.Len(t, next.Timestamps, 1)
}

func TestRecord_IncrementsWithinWindow(t *testing.T) {
	u := Usage{Timestamps: burstOf(2, t0.Add(-time.Second)), Count: 10, WindowStart: t0.Add(-time.Minute).UnixMilli()}

	next, d := u.record(t0)

	assert.True(t, d.Allowed)
	assert.Equal(t, 11, next.Count)
	assert.Equal(t, t0.Add(-time.Minute).UnixMilli(), next.WindowStart)
	assert.Len(t, next.Timestamps, 3)
	assert.Equal(t, 47, d.Remaining)
}

func TestRecord_RejectedLeavesUsage(t *testing.T) {
	u := Usage{Timestamps: burstOf(50, t0.Add(-time.Second)), Count: 50, WindowStart: t0.Add(-time.Minute).UnixMilli()}

	next, d := u.record(t0)

	assert.False(t, d.Allowed)
	assert.Equal(t, u, next)
}

func TestStatus_BothWindows(t *testing.T) {
	u := Usage{Timestamps: burstOf(5, t0.Add(-4*time.Second)), Count: 120, WindowStart: t0.Add(-15 * time.Minute).UnixMilli()}

	s := u.status(t0)

	assert.Equal(t, WindowStatus{Count: 5, Limit: 50, Remaining: 45, ResetIn: 6 * time.Second}, s.Burst)
	assert.Equal(t, WindowStatus{Count: 120, Limit: 400, Remaining: 280, ResetIn: 45 * time.Minute}, s.Hourly)
	assert.True(t, s.Decision.Allowed)
}

func TestDecision_JSONUsesSeconds(t *testing.T) {
	u := Usage{Timestamps: burstOf(50, t0.Add(-2*time.Second)), Count: 50, WindowStart: t0.Add(-time.Minute).UnixMilli()}

	b, err := json.Marshal(u.evaluate(t0))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"allowed":false,"currentCount":50,"limit":50,"remaining":0,"window":"burst","resetInSeconds":8}`, string(b))

	b, err = json.Marshal(Usage{}.evaluate(t0))
	assert.NoError(t, err)
	assert.NotContains(t, string(b), "resetIn")
}

func TestStatus_JSONUsesSeconds(t *testing.T) {
	u := Usage{Timestamps: burstOf(5, t0.Add(-4500*time.Millisecond)), Count: 120, WindowStart: t0.Add(-15 * time.Minute).UnixMilli()}

	b, err := json.Marshal(u.status(t0))
	assert.NoError(t, err)

	var got struct {
		Burst  map[string]any `json:"burst"`
		Hourly map[string]any `json:"hourly"`
	}
	assert.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, float64(6), got.Burst["resetInSeconds"])
	assert.Equal(t, float64(2700), got.Hourly["resetInSeconds"])
	assert.NotContains(t, got.Burst, "resetIn")
}
