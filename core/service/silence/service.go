package silence

import (
	"context"
	"time"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
)

// Service reads and writes per-user silence settings.
type Service struct {
	repo domain.SilenceRepository
}

// NewService creates a silence settings service.
func NewService(repo domain.SilenceRepository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's settings, falling back to disabled defaults when
// nothing is stored.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*domain.SilenceSettings, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("get silence settings", err)
	}
	if settings == nil {
		return domain.DefaultSilenceSettings(userID), nil
	}
	return settings, nil
}

// Update validates and stores new settings.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, enabled bool, ranges []domain.SilenceRange, now time.Time) (*domain.SilenceSettings, error) {
	settings := &domain.SilenceSettings{
		UserID:    userID,
		Enabled:   enabled,
		Ranges:    ranges,
		UpdatedAt: now,
	}
	if settings.Ranges == nil {
		settings.Ranges = []domain.SilenceRange{}
	}
	if err := settings.Validate(); err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, apperr.Persistence("upsert silence settings", err)
	}
	return settings, nil
}

// ActiveNow is a convenience wrapper loading settings and evaluating them.
func (s *Service) ActiveNow(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return IsActive(settings, now), nil
}
