package notify

import (
	"context"
	"sync"
	"time"

	"stove_coordination/internal/logger"
	"stove_coordination/internal/throttle"
)

// Skip reasons reported by Throttled.Notify.
const (
	SkipDisabled  = "disabled"
	SkipThrottled = "throttled"
	SkipError     = "error"
)

// Outcome tells the caller whether an alert left the process.
type Outcome struct {
	Sent        bool   `json:"sent"`
	Reason      string `json:"reason,omitempty"`
	WaitSeconds int    `json:"waitSeconds,omitempty"`
}

// Throttled gates a Notifier behind the per-user throttle and delivers in
// the background. Delivery failures are logged, never returned.
type Throttled struct {
	notifier Notifier
	throttle throttle.Throttle
	log      *logger.Logger
	timeout  time.Duration
	onResult func(kind, result string)

	wg sync.WaitGroup
}

func NewThrottled(n Notifier, t throttle.Throttle, log *logger.Logger, onResult func(kind, result string)) *Throttled {
	return &Throttled{
		notifier: n,
		throttle: t,
		log:      logger.OrNop(log).Named("notify"),
		timeout:  10 * time.Second,
		onResult: onResult,
	}
}

// Notify sends kind to userID unless it is disabled or the throttle window
// is still open. The throttle slot is taken before delivery starts.
func (t *Throttled) Notify(ctx context.Context, userID, kind string, enabled bool, payload map[string]any) Outcome {
	if !enabled {
		t.report(kind, SkipDisabled)
		return Outcome{Reason: SkipDisabled}
	}

	d, err := t.throttle.Acquire(ctx, userID)
	if err != nil {
		t.log.Errorw("notification_throttle_failed", "user_id", userID, "kind", kind, "error", err)
		t.report(kind, SkipError)
		return Outcome{Reason: SkipError}
	}
	if !d.Allowed {
		t.log.Debugw("notification_throttled", "user_id", userID, "kind", kind, "wait_seconds", d.WaitSeconds)
		t.report(kind, SkipThrottled)
		return Outcome{Reason: SkipThrottled, WaitSeconds: d.WaitSeconds}
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.notifier.Trigger(sendCtx, userID, kind, payload); err != nil {
			t.log.Warnw("notification_failed", "user_id", userID, "kind", kind, "error", err)
			t.report(kind, SkipError)
			return
		}
		t.report(kind, "sent")
	}()
	return Outcome{Sent: true}
}

// Wait blocks until in-flight deliveries finish.
func (t *Throttled) Wait() { t.wg.Wait() }

func (t *Throttled) report(kind, result string) {
	if t.onResult != nil {
		t.onResult(kind, result)
	}
}
