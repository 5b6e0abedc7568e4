package debounce

import (
	"context"
	"time"
)

// Action tells the caller what HandleStoveStateChange did.
type Action string

const (
	ActionTimerStarted        Action = "timer_started"
	ActionRetryStarted        Action = "retry_started"
	ActionExecutedImmediately Action = "executed_immediately"
	ActionNoChange            Action = "no_change"
)

type Result struct {
	Action Action        `json:"action"`
	Target Target        `json:"targetState,omitempty"`
	Delay  time.Duration `json:"delay"`
}

// DelayMs is Delay in milliseconds.
func (r Result) DelayMs() int64 { return r.Delay.Milliseconds() }

// HandleStoveStateChange applies the debounce policy to one observation.
// stable is the last confirmed stove state. A transition to ON waits
// OnDelay; a transition to OFF runs cb immediately, unless an ON timer is
// pending, in which case it is replaced by an OffRetryDelay timer
// confirming the shutdown.
func (s *Service) HandleStoveStateChange(ctx context.Context, userID string, observed, stable Target, cb Callback) (Result, error) {
	s.mu.Lock()
	var pending Target
	if e, ok := s.entries[userID]; ok {
		pending = e.target
	}
	s.mu.Unlock()

	switch {
	case pending == "":
		return s.fromStable(ctx, userID, observed, stable, cb)

	case observed == pending:
		return Result{Action: ActionNoChange, Target: pending}, nil

	case observed == TargetOff:
		// ON was still unconfirmed: wait before treating the stove as off.
		if err := s.Start(ctx, userID, TargetOff, cb, OffRetryDelay); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionRetryStarted, Target: TargetOff, Delay: OffRetryDelay}, nil

	default:
		// Stove came back during the shutdown retry.
		if _, err := s.Cancel(ctx, userID); err != nil {
			return Result{}, err
		}
		return s.fromStable(ctx, userID, observed, stable, cb)
	}
}

func (s *Service) fromStable(ctx context.Context, userID string, observed, stable Target, cb Callback) (Result, error) {
	if observed == stable {
		return Result{Action: ActionNoChange, Target: stable}, nil
	}
	if observed == TargetOn {
		if err := s.Start(ctx, userID, TargetOn, cb, OnDelay); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionTimerStarted, Target: TargetOn, Delay: OnDelay}, nil
	}
	if err := s.Start(ctx, userID, TargetOff, cb, 0); err != nil {
		return Result{}, err
	}
	return Result{Action: ActionExecutedImmediately, Target: TargetOff}, nil
}
