// Package debounce delays reacting to a stove state transition until the
// new state has held for a fixed window. Entries live in process memory; the
// durable CoordinationState only mirrors whether one is pending.
package debounce

import (
	"context"
	"sync"
	"time"

	"stove_coordination/internal/logger"
	"stove_coordination/internal/models"
	"stove_coordination/internal/repository"
)

// Target is the stove state a timer is waiting to confirm.
type Target string

const (
	TargetOn  Target = "ON"
	TargetOff Target = "OFF"
)

// TargetFor maps a boolean stove state to a Target.
func TargetFor(on bool) Target {
	if on {
		return TargetOn
	}
	return TargetOff
}

const (
	OnDelay       = 120 * time.Second
	OffRetryDelay = 30 * time.Second
	MaxEntryAge   = 5 * time.Minute
)

// Callback runs once the target state has been stable for the full window.
type Callback func(ctx context.Context)

// Stopper is the cancellable handle of a scheduled callback.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

type entry struct {
	target    Target
	duration  time.Duration
	startedAt time.Time
	timer     Stopper
	gen       uint64
}

// Status is a side-effect free view of one user's timer.
type Status struct {
	Pending     bool          `json:"pending"`
	Target      Target        `json:"targetState,omitempty"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	Duration    time.Duration `json:"-"`
	Remaining   time.Duration `json:"-"`
	DurationMs  int64         `json:"durationMs,omitempty"`
	RemainingMs int64         `json:"remainingMs"`
}

// Service owns the per-user timer table. Every entry carries a generation
// token; a callback whose token no longer matches the table is dropped, so
// a rapid cancel/start sequence never fires a stale timer.
type Service struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	state           repository.StateRepo
	log             *logger.Logger
	now             func() time.Time
	afterFunc       AfterFunc
	callbackTimeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithAfterFunc(f AfterFunc) Option { return func(s *Service) { s.afterFunc = f } }

// WithCallbackTimeout bounds the context handed to callbacks fired by a
// timer. Non-positive values keep the default.
func WithCallbackTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callbackTimeout = d
		}
	}
}

func New(state repository.StateRepo, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		entries:         make(map[string]*entry),
		state:           state,
		log:             logger.OrNop(log).Named("debounce"),
		now:             time.Now,
		afterFunc:       realAfterFunc,
		callbackTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start replaces any timer for userID with a new one firing cb after d. A
// non-positive d runs cb synchronously on the caller's goroutine.
func (s *Service) Start(ctx context.Context, userID string, target Target, cb Callback, d time.Duration) error {
	if d <= 0 {
		if _, err := s.Cancel(ctx, userID); err != nil {
			return err
		}
		cb(ctx)
		return nil
	}

	now := s.now()
	s.mu.Lock()
	if old, ok := s.entries[userID]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	e := &entry{target: target, duration: d, startedAt: now, gen: gen}
	e.timer = s.afterFunc(d, func() { s.fire(userID, gen, cb) })
	s.entries[userID] = e
	s.mu.Unlock()

	if err := s.syncPending(ctx, userID); err != nil {
		s.mu.Lock()
		if cur, ok := s.entries[userID]; ok && cur.gen == gen {
			cur.timer.Stop()
			delete(s.entries, userID)
		}
		s.mu.Unlock()
		return err
	}
	s.log.Debugw("debounce_started", "user_id", userID, "target", target, "delay_ms", d.Milliseconds())
	return nil
}

func (s *Service) fire(userID string, gen uint64, cb Callback) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, userID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.callbackTimeout)
	defer cancel()

	if err := s.syncPending(ctx, userID); err != nil {
		s.log.Errorw("debounce_persist_failed", "user_id", userID, "error", err)
	}
	s.log.Debugw("debounce_fired", "user_id", userID, "target", e.target)
	cb(ctx)
}

// Cancel removes the user's timer, if any, and clears the durable pending
// flag. It is safe to call when nothing is pending.
func (s *Service) Cancel(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	e, existed := s.entries[userID]
	if existed {
		e.timer.Stop()
		delete(s.entries, userID)
	}
	s.mu.Unlock()

	if existed {
		s.log.Debugw("debounce_cancelled", "user_id", userID, "target", e.target)
	}
	return existed, s.syncPending(ctx, userID)
}

// Pending reports whether userID has a live timer.
func (s *Service) Pending(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

func (s *Service) Status(userID string) Status {
	s.mu.Lock()
	e, ok := s.entries[userID]
	var cp entry
	if ok {
		cp = *e
	}
	s.mu.Unlock()
	if !ok {
		return Status{}
	}

	remaining := cp.duration - s.now().Sub(cp.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	started := cp.startedAt
	remaining = remaining.Truncate(time.Millisecond)
	return Status{
		Pending:     true,
		Target:      cp.target,
		StartedAt:   &started,
		Duration:    cp.duration,
		Remaining:   remaining,
		DurationMs:  cp.duration.Milliseconds(),
		RemainingMs: remaining.Milliseconds(),
	}
}

// Sweep drops entries started more than MaxEntryAge ago, whether or not
// their timer is still armed, and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-MaxEntryAge)
	var stale []string

	s.mu.Lock()
	for id, e := range s.entries {
		if e.startedAt.Before(cutoff) {
			e.timer.Stop()
			delete(s.entries, id)
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		s.log.Warnw("debounce_swept", "user_id", id)
		if err := s.syncPending(ctx, id); err != nil {
			s.log.Errorw("debounce_persist_failed", "user_id", id, "error", err)
		}
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// syncPending mirrors the timer table into the durable state. The table is
// read inside the store transaction, so whichever write commits last carries
// the table as it was after the last change.
func (s *Service) syncPending(ctx context.Context, userID string) error {
	_, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) {
		s.mu.Lock()
		e, ok := s.entries[userID]
		var startedAt time.Time
		if ok {
			startedAt = e.startedAt
		}
		s.mu.Unlock()

		st.PendingDebounce = ok
		st.DebounceStartedAt = nil
		if ok {
			t := startedAt.UTC()
			st.DebounceStartedAt = &t
		}
	})
	return err
}
