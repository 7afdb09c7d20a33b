package service

import (
	"context"
	"fmt"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
)

type PreferenceService struct {
	cache *cache.Cache
}

func NewPreferenceService(c *cache.Cache) *PreferenceService {
	return &PreferenceService{cache: c}
}

func (s *PreferenceService) Get(ctx context.Context) domain.Preferences {
	return s.cache.GetPreferences(ctx)
}

func (s *PreferenceService) Update(ctx context.Context, prefs domain.Preferences) (domain.Preferences, error) {
	if !prefs.DefaultCategory.Valid() {
		prefs.DefaultCategory = domain.CategoryPersonal
	}
	if err := s.cache.StorePreferences(ctx, prefs); err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to store preferences: %w", err)
	}
	return prefs, nil
}
