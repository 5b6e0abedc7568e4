package repository

import (
	"context"
	"fmt"
	"time"

	"stove_coordination/internal/models"
)

// StateStore is the CoordinationState accessor. All writes are merge-updates
// executed inside a single store transaction.
type StateStore struct {
	store Store
	now   func() time.Time
}

var _ StateRepo = (*StateStore)(nil)

func NewStateStore(store Store) *StateStore {
	return &StateStore{store: store, now: time.Now}
}

// Load returns the stored state, or the zero state when none exists yet.
func (r *StateStore) Load(ctx context.Context, userID string) (models.CoordinationState, error) {
	var st models.CoordinationState
	if _, err := r.store.Get(ctx, StateKey(userID), &st); err != nil {
		return models.CoordinationState{}, fmt.Errorf("load state for %s: %w", userID, err)
	}
	return normalizeState(st), nil
}

// Update applies fn to the current state and writes it back atomically.
// LastStateChange is always refreshed.
func (r *StateStore) Update(ctx context.Context, userID string, fn func(*models.CoordinationState)) (models.CoordinationState, error) {
	st, err := TransactJSON(ctx, r.store, StateKey(userID), func(st *models.CoordinationState, _ bool) error {
		fn(st)
		st.LastStateChange = r.now().UTC()
		return nil
	})
	if err != nil {
		return models.CoordinationState{}, fmt.Errorf("update state for %s: %w", userID, err)
	}
	return normalizeState(st), nil
}

// normalizeState keeps timestamps in UTC, preserving nil/zero values.
func normalizeState(st models.CoordinationState) models.CoordinationState {
	st.LastStateChange = toUTC(st.LastStateChange)
	st.PausedUntil = ptrUTC(st.PausedUntil)
	st.DebounceStartedAt = ptrUTC(st.DebounceStartedAt)
	st.LastCycleAt = ptrUTC(st.LastCycleAt)
	return st
}

func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func ptrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
