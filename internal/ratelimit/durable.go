package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stove_coordination/internal/repository"
)

// Bucket is the rateLimits/{userId}/{bucket} path segment for climate calls.
const Bucket = "netatmo"

// Durable keeps both windows in one document of the shared store so that a
// call is admitted or refused by a single transaction across all instances.
type Durable struct {
	store repository.Store
	now   func() time.Time
}

var _ Limiter = (*Durable)(nil)

func NewDurable(store repository.Store, now func() time.Time) *Durable {
	if now == nil {
		now = time.Now
	}
	return &Durable{store: store, now: now}
}

func (d *Durable) load(ctx context.Context, userID string) (Usage, error) {
	var u Usage
	if _, err := d.store.Get(ctx, repository.RateLimitKey(userID, Bucket), &u); err != nil {
		return Usage{}, fmt.Errorf("load rate limit for %s: %w", userID, err)
	}
	return u, nil
}

func (d *Durable) Check(ctx context.Context, userID string) (Decision, error) {
	u, err := d.load(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return u.evaluate(d.now()), nil
}

func (d *Durable) Track(ctx context.Context, userID string) (Decision, error) {
	var decision Decision
	now := d.now()
	_, err := repository.TransactJSON(ctx, d.store, repository.RateLimitKey(userID, Bucket), func(u *Usage, _ bool) error {
		next, dec := u.record(now)
		decision = dec
		if !dec.Allowed {
			return ErrLimited
		}
		*u = next
		return nil
	})
	if errors.Is(err, ErrLimited) {
		return decision, ErrLimited
	}
	if err != nil {
		return Decision{}, fmt.Errorf("track rate limit for %s: %w", userID, err)
	}
	return decision, nil
}

func (d *Durable) Status(ctx context.Context, userID string) (Status, error) {
	u, err := d.load(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return u.status(d.now()), nil
}
