package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stove_coordination/internal/repository"
)

var errDenied = errors.New("throttle: denied")

// Durable keeps the last-sent time in the shared store so the window holds
// across process instances.
type Durable struct {
	store repository.Store
	now   func() time.Time
}

var _ Throttle = (*Durable)(nil)

func NewDurable(store repository.Store, now func() time.Time) *Durable {
	if now == nil {
		now = time.Now
	}
	return &Durable{store: store, now: now}
}

func (d *Durable) load(ctx context.Context, userID string) (Entry, bool, error) {
	var e Entry
	found, err := d.store.Get(ctx, repository.ThrottleKey(userID), &e)
	if err != nil {
		return Entry{}, false, fmt.Errorf("load throttle for %s: %w", userID, err)
	}
	return e, found, nil
}

func (d *Durable) ShouldSend(ctx context.Context, userID string) (Decision, error) {
	e, _, err := d.load(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return decide(e, d.now()), nil
}

func (d *Durable) RecordSent(ctx context.Context, userID string) error {
	if err := d.store.Set(ctx, repository.ThrottleKey(userID), Entry{LastSentAt: d.now().UnixMilli()}); err != nil {
		return fmt.Errorf("record throttle for %s: %w", userID, err)
	}
	return nil
}

func (d *Durable) Acquire(ctx context.Context, userID string) (Decision, error) {
	now := d.now()
	var dec Decision
	_, err := repository.TransactJSON(ctx, d.store, repository.ThrottleKey(userID), func(e *Entry, _ bool) error {
		dec = decide(*e, now)
		if !dec.Allowed {
			return errDenied
		}
		e.LastSentAt = now.UnixMilli()
		return nil
	})
	if errors.Is(err, errDenied) {
		return dec, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("acquire throttle for %s: %w", userID, err)
	}
	return dec, nil
}

func (d *Durable) Status(ctx context.Context, userID string) (Status, error) {
	e, found, err := d.load(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return statusOf(e, found, d.now()), nil
}

func (d *Durable) Clear(ctx context.Context, userID string) (bool, error) {
	_, found, err := d.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := d.store.Delete(ctx, repository.ThrottleKey(userID)); err != nil {
		return false, fmt.Errorf("clear throttle for %s: %w", userID, err)
	}
	return true, nil
}
