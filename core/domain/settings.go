package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SilenceRange is a quiet-hour range, times as "HH:MM". A range whose end
// precedes its start wraps past midnight; start == end is never active.
type SilenceRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks the HH:MM format of both bounds.
func (r SilenceRange) Validate() error {
	for _, v := range []string{r.Start, r.End} {
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("invalid time-of-day %q: want HH:MM", v)
		}
	}
	return nil
}

// SilenceSettings is the per-user do-not-disturb configuration.
type SilenceSettings struct {
	UserID    uuid.UUID      `json:"user_id"`
	Enabled   bool           `json:"enabled"`
	Ranges    []SilenceRange `json:"ranges"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Validate checks every configured range.
func (s *SilenceSettings) Validate() error {
	for _, r := range s.Ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultSilenceSettings returns disabled settings for a user with no row.
func DefaultSilenceSettings(userID uuid.UUID) *SilenceSettings {
	return &SilenceSettings{
		UserID:  userID,
		Enabled: false,
		Ranges:  []SilenceRange{},
	}
}

// SilenceRepository is the persistence port for silence settings.
type SilenceRepository interface {
	// Get returns nil (no error) when the user has no stored settings.
	Get(ctx context.Context, userID uuid.UUID) (*SilenceSettings, error)
	Upsert(ctx context.Context, settings *SilenceSettings) error
}
