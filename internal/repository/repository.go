package repository

import (
	"context"
	"database/sql"
	"time"

	"stove_coordination/internal/models"
)

type StateRepo interface {
	Load(ctx context.Context, userID string) (models.CoordinationState, error)
	Update(ctx context.Context, userID string, fn func(*models.CoordinationState)) (models.CoordinationState, error)
}

type PreferencesRepo interface {
	Load(ctx context.Context, userID string) (models.CoordinationPreferences, error)
	Update(ctx context.Context, userID string, fn func(*models.CoordinationPreferences) error) (models.CoordinationPreferences, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.CoordinationEvent) error
	List(ctx context.Context, userID string, from, to time.Time, typ string) ([]models.CoordinationEvent, error)
}

type Repository struct {
	Store       Store
	State       StateRepo
	Preferences PreferencesRepo
	Events      EventRepo
}

// NewRepository wires the accessors. db backs the event log; store holds
// every piece of cross-instance state and may or may not live in the same
// SQLite file.
func NewRepository(db *sql.DB, store Store) *Repository {
	return &Repository{
		Store:       store,
		State:       NewStateStore(store),
		Preferences: NewPreferencesStore(store),
		Events:      NewEventSQLite(db),
	}
}
