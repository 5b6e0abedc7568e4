package repository

import (
	"context"
	"fmt"
	"time"

	"stove_coordination/internal/models"
)

// PreferencesStore is the validated accessor for CoordinationPreferences.
type PreferencesStore struct {
	store Store
	now   func() time.Time
}

var _ PreferencesRepo = (*PreferencesStore)(nil)

func NewPreferencesStore(store Store) *PreferencesStore {
	return &PreferencesStore{store: store, now: time.Now}
}

// Load returns the stored preferences or DefaultPreferences.
func (r *PreferencesStore) Load(ctx context.Context, userID string) (models.CoordinationPreferences, error) {
	prefs := models.DefaultPreferences()
	found, err := r.store.Get(ctx, PreferencesKey(userID), &prefs)
	if err != nil {
		return models.CoordinationPreferences{}, fmt.Errorf("load preferences for %s: %w", userID, err)
	}
	if !found {
		return models.DefaultPreferences(), nil
	}
	return prefs, nil
}

// Update reads, merges through fn, validates, bumps Version and writes, all in
// one transaction. Any error from fn or Validate leaves the stored value as it
// was.
func (r *PreferencesStore) Update(ctx context.Context, userID string, fn func(*models.CoordinationPreferences) error) (models.CoordinationPreferences, error) {
	return TransactJSON(ctx, r.store, PreferencesKey(userID), func(p *models.CoordinationPreferences, exists bool) error {
		if !exists {
			*p = models.DefaultPreferences()
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		p.Version++
		p.UpdatedAt = r.now().UTC()
		return nil
	})
}
