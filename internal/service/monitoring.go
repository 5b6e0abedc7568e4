package service

import (
	"context"
	"time"

	"stove_coordination/internal/debounce"
	"stove_coordination/internal/repository"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
	debounce  *debounce.Service
	now       func() time.Time
}

func NewMonitoringService(stateRepo repository.StateRepo, d *debounce.Service, now func() time.Time) *MonitoringService {
	if now == nil {
		now = time.Now
	}
	return &MonitoringService{stateRepo: stateRepo, debounce: d, now: now}
}

// GetState returns the persisted coordination state for userID. A user
// that never ran a cycle gets the zero state.
func (s *MonitoringService) GetState(ctx context.Context, userID string) (StateSnapshot, error) {
	st, err := s.stateRepo.Load(ctx, userID)
	if err != nil {
		return StateSnapshot{}, err
	}
	snap := StateSnapshot{State: st}
	if s.debounce != nil {
		snap.Debounce = s.debounce.Status(userID)
	}
	if st.AutomationPaused && st.PausedUntil != nil {
		if rem := st.PausedUntil.Sub(s.now()); rem > 0 {
			snap.PauseRemainingMs = rem.Milliseconds()
		}
	}
	return snap, nil
}
