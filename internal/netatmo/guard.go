package netatmo

import (
	"context"

	"stove_coordination/internal/ratelimit"
)

// Guarded charges every call to one user's rate limit budget before it
// reaches the vendor. A refused call returns ratelimit.ErrLimited.
type Guarded struct {
	api     API
	limiter ratelimit.Limiter
	userID  string
	onCall  func(method string, err error)
}

var _ API = (*Guarded)(nil)

// WithRateLimit wraps api for userID. onCall, when not nil, observes every
// attempted call, including refused ones.
func WithRateLimit(api API, limiter ratelimit.Limiter, userID string, onCall func(method string, err error)) *Guarded {
	return &Guarded{api: api, limiter: limiter, userID: userID, onCall: onCall}
}

func (g *Guarded) track(ctx context.Context, method string) error {
	if _, err := g.limiter.Track(ctx, g.userID); err != nil {
		g.observe(method, err)
		return err
	}
	return nil
}

func (g *Guarded) observe(method string, err error) {
	if g.onCall != nil {
		g.onCall(method, err)
	}
}

func (g *Guarded) GetHomeStatus(ctx context.Context, homeID string) (HomeStatus, error) {
	if err := g.track(ctx, "homestatus"); err != nil {
		return HomeStatus{}, err
	}
	hs, err := g.api.GetHomeStatus(ctx, homeID)
	g.observe("homestatus", err)
	return hs, err
}

func (g *Guarded) SetRoomSetpoint(ctx context.Context, req SetpointRequest) error {
	if err := g.track(ctx, "setroomthermpoint"); err != nil {
		return err
	}
	err := g.api.SetRoomSetpoint(ctx, req)
	g.observe("setroomthermpoint", err)
	return err
}

func (g *Guarded) GetThermSchedules(ctx context.Context, homeID string) ([]ThermSchedule, error) {
	if err := g.track(ctx, "homesdata"); err != nil {
		return nil, err
	}
	s, err := g.api.GetThermSchedules(ctx, homeID)
	g.observe("homesdata", err)
	return s, err
}
