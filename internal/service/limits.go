package service

import (
	"context"

	"stove_coordination/internal/ratelimit"
	"stove_coordination/internal/throttle"
)

type LimitsService struct {
	limiter  ratelimit.Limiter
	throttle throttle.Throttle
}

func NewLimitsService(l ratelimit.Limiter, t throttle.Throttle) *LimitsService {
	return &LimitsService{limiter: l, throttle: t}
}

func (s *LimitsService) LimitsStatus(ctx context.Context, userID string) (LimitsStatus, error) {
	rl, err := s.limiter.Status(ctx, userID)
	if err != nil {
		return LimitsStatus{}, err
	}
	th, err := s.throttle.Status(ctx, userID)
	if err != nil {
		return LimitsStatus{}, err
	}
	return LimitsStatus{RateLimit: rl, Throttle: th}, nil
}

func (s *LimitsService) ClearThrottle(ctx context.Context, userID string) (bool, error) {
	return s.throttle.Clear(ctx, userID)
}
