package service

import (
	"context"

	"stove_coordination/internal/models"
	"stove_coordination/internal/repository"
)

type PreferencesService struct {
	repo repository.PreferencesRepo
}

func NewPreferencesService(repo repository.PreferencesRepo) *PreferencesService {
	return &PreferencesService{repo: repo}
}

func (s *PreferencesService) GetPreferences(ctx context.Context, userID string) (models.CoordinationPreferences, error) {
	return s.repo.Load(ctx, userID)
}

// UpdatePreferences merges p into the stored preferences. A patch failing
// validation returns models.ErrInvalidPreferences and writes nothing.
func (s *PreferencesService) UpdatePreferences(ctx context.Context, userID string, p PreferencesPatch) (models.CoordinationPreferences, error) {
	return s.repo.Update(ctx, userID, func(cur *models.CoordinationPreferences) error {
		if p.Enabled != nil {
			cur.Enabled = *p.Enabled
		}
		if p.DefaultBoostAmount != nil {
			cur.DefaultBoostAmount = *p.DefaultBoostAmount
		}
		if p.Zones != nil {
			cur.Zones = append([]models.ZonePreference(nil), (*p.Zones)...)
		}
		if len(p.NotificationPreferences) > 0 {
			merged := make(map[string]bool, len(cur.NotificationPreferences)+len(p.NotificationPreferences))
			for k, v := range cur.NotificationPreferences {
				merged[k] = v
			}
			for k, v := range p.NotificationPreferences {
				merged[k] = v
			}
			cur.NotificationPreferences = merged
		}
		return nil
	})
}
