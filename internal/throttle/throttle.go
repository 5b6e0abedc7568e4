// Package throttle caps user-facing notifications to one per user per
// window, whatever triggered them.
package throttle

import (
	"context"
	"time"
)

const Window = 30 * time.Minute

const ReasonThrottled = "throttled"

type Decision struct {
	Allowed     bool   `json:"allowed"`
	WaitSeconds int    `json:"waitSeconds"`
	Reason      string `json:"reason,omitempty"`
}

type Status struct {
	LastSentAt    *time.Time `json:"lastSentAt"`
	NextAllowedAt *time.Time `json:"nextAllowedAt"`
	WaitSeconds   int        `json:"waitSeconds"`
}

// Throttle is implemented by Memory and Durable. Acquire is ShouldSend and
// RecordSent in one step; the durable variant performs it in a single
// transaction.
type Throttle interface {
	ShouldSend(ctx context.Context, userID string) (Decision, error)
	RecordSent(ctx context.Context, userID string) error
	Acquire(ctx context.Context, userID string) (Decision, error)
	Status(ctx context.Context, userID string) (Status, error)
	Clear(ctx context.Context, userID string) (bool, error)
}

// Entry is the stored shape, shared by both variants.
type Entry struct {
	LastSentAt int64 `json:"lastSentAt"` // unix ms
}

func (e Entry) lastSent() time.Time { return time.UnixMilli(e.LastSentAt).UTC() }

func waitSeconds(e Entry, now time.Time) int {
	if e.LastSentAt == 0 {
		return 0
	}
	ms := e.LastSentAt + Window.Milliseconds() - now.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}

func decide(e Entry, now time.Time) Decision {
	wait := waitSeconds(e, now)
	if wait > 0 {
		return Decision{Allowed: false, WaitSeconds: wait, Reason: ReasonThrottled}
	}
	return Decision{Allowed: true}
}

func statusOf(e Entry, found bool, now time.Time) Status {
	if !found || e.LastSentAt == 0 {
		return Status{}
	}
	last := e.lastSent()
	next := last.Add(Window)
	return Status{LastSentAt: &last, NextAllowedAt: &next, WaitSeconds: waitSeconds(e, now)}
}

func expired(e Entry, now time.Time) bool {
	return now.UnixMilli()-e.LastSentAt >= Window.Milliseconds()
}
