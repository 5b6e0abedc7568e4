package service

import (
	"context"
	"time"

	"stove_coordination/internal/debounce"
	"stove_coordination/internal/models"
	"stove_coordination/internal/ratelimit"
	"stove_coordination/internal/repository"
	"stove_coordination/internal/stove"
	"stove_coordination/internal/throttle"
)

type Authorization interface {
	IssueToken(userID string, ttl time.Duration) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Coordination runs cycles and the manual overrides exposed over HTTP.
type Coordination interface {
	ProcessCoordinationCycle(ctx context.Context, userID, homeID string, status stove.Status) (CycleResult, error)
	ResumeAutomation(ctx context.Context, userID string) (models.CoordinationState, error)
	CancelDebounce(ctx context.Context, userID string) (bool, error)
	DebounceStatus(userID string) debounce.Status
}

// Monitoring exposes read-only coordination state.
type Monitoring interface {
	GetState(ctx context.Context, userID string) (StateSnapshot, error)
}

type Preferences interface {
	GetPreferences(ctx context.Context, userID string) (models.CoordinationPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, p PreferencesPatch) (models.CoordinationPreferences, error)
}

// Limits reports and resets the per-user call and notification budgets.
type Limits interface {
	LimitsStatus(ctx context.Context, userID string) (LimitsStatus, error)
	ClearThrottle(ctx context.Context, userID string) (bool, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, userID string, f LogFilter) ([]models.CoordinationEvent, error)
}

// Poller runs the background loop polling every configured stove.
// Stop via context cancellation in main() for graceful shutdown.
type Poller interface {
	Run(ctx context.Context, tick time.Duration)
}

type Service struct {
	Coordination
	Monitoring
	Preferences
	Limits
	EventLog
	Poller
	Authorization
}

// Deps carries everything NewService wires beyond the repositories.
type Deps struct {
	Coordination CoordinationDeps
	Debounce     *debounce.Service
	RateLimiter  ratelimit.Limiter
	Throttle     throttle.Throttle
	Stove        stove.Poller
	Targets      []PollTarget
	Events       CronPublisher
	SigningKey   string
}

func NewService(repos *repository.Repository, d Deps) *Service {
	cd := d.Coordination
	cd.State = repos.State
	cd.Prefs = repos.Preferences
	cd.Debounce = d.Debounce
	coord := NewCoordinationService(cd)

	return &Service{
		Coordination:  coord,
		Monitoring:    NewMonitoringService(repos.State, d.Debounce, cd.Now),
		Preferences:   NewPreferencesService(repos.Preferences),
		Limits:        NewLimitsService(d.RateLimiter, d.Throttle),
		EventLog:      NewEventLogService(repos.Events),
		Poller:        NewPollerService(coord, d.Stove, d.Targets, d.Events, cd.Logger, cd.Now),
		Authorization: NewAuthService(d.SigningKey),
	}
}
