package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stove_coordination/internal/debounce"
	"stove_coordination/internal/models"
	"stove_coordination/internal/repository"
)

// monitoringStateRepoStub is a local, uniquely named test stub that satisfies repository.StateRepo.
type monitoringStateRepoStub struct {
	loadResp models.CoordinationState
	loadErr  error
	gotUser  string
}

func (s *monitoringStateRepoStub) Load(_ context.Context, userID string) (models.CoordinationState, error) {
	s.gotUser = userID
	return s.loadResp, s.loadErr
}

func (s *monitoringStateRepoStub) Update(context.Context, string, func(*models.CoordinationState)) (models.CoordinationState, error) {
	return models.CoordinationState{}, errors.New("read only")
}

func TestMonitoringService_GetState(t *testing.T) {
	now := time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)
	future := now.Add(90 * time.Second)
	past := now.Add(-time.Minute)

	cases := []struct {
		name          string
		repoResp      models.CoordinationState
		repoErr       error
		wantErr       bool
		wantRemaining int64
	}{
		{name: "propagates repository error", repoErr: errors.New("db down"), wantErr: true},
		{name: "zero state for new user"},
		{
			name:          "pause remaining",
			repoResp:      models.CoordinationState{AutomationPaused: true, PausedUntil: &future},
			wantRemaining: 90000,
		},
		{
			name:     "expired pause reports zero",
			repoResp: models.CoordinationState{AutomationPaused: true, PausedUntil: &past},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &monitoringStateRepoStub{loadResp: tc.repoResp, loadErr: tc.repoErr}
			svc := NewMonitoringService(repo, nil, func() time.Time { return now })

			got, err := svc.GetState(context.Background(), "u1")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if repo.gotUser != "u1" {
				t.Fatalf("repo loaded %q", repo.gotUser)
			}
			if got.PauseRemainingMs != tc.wantRemaining {
				t.Fatalf("PauseRemainingMs = %d, want %d", got.PauseRemainingMs, tc.wantRemaining)
			}
		})
	}
}

func TestMonitoringService_IncludesDebounce(t *testing.T) {
	now := time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	state := repository.NewStateStore(repository.NewMemoryStore())
	sched := &manualScheduler{}
	deb := debounce.New(state, nil, debounce.WithClock(clock), debounce.WithAfterFunc(sched.AfterFunc))

	if err := deb.Start(context.Background(), "u1", debounce.TargetOn, func(context.Context) {}, debounce.OnDelay); err != nil {
		t.Fatalf("start: %v", err)
	}
	now = now.Add(20 * time.Second)

	snap, err := NewMonitoringService(state, deb, clock).GetState(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !snap.State.PendingDebounce || !snap.Debounce.Pending {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Debounce.Remaining != 100*time.Second {
		t.Fatalf("remaining = %v", snap.Debounce.Remaining)
	}
}
