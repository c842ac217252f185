package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"recap_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SettingsAdapter implements domain.SilenceRepository using PostgreSQL.
// Quiet-hour ranges are stored as a JSONB column.
type SettingsAdapter struct {
	db *sqlx.DB
}

// NewSettingsAdapter creates a new silence settings adapter.
func NewSettingsAdapter(db *sqlx.DB) *SettingsAdapter {
	return &SettingsAdapter{db: db}
}

type silenceRow struct {
	UserID    uuid.UUID `db:"user_id"`
	Enabled   bool      `db:"enabled"`
	Ranges    []byte    `db:"ranges"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *silenceRow) toDomain() *domain.SilenceSettings {
	s := &domain.SilenceSettings{
		UserID:    r.UserID,
		Enabled:   r.Enabled,
		Ranges:    []domain.SilenceRange{},
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Ranges) > 0 {
		json.Unmarshal(r.Ranges, &s.Ranges)
	}
	return s
}

// Get returns the stored settings, or nil when the user has none.
func (a *SettingsAdapter) Get(ctx context.Context, userID uuid.UUID) (*domain.SilenceSettings, error) {
	var row silenceRow
	query := `SELECT * FROM silence_settings WHERE user_id = $1`
	err := a.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Upsert writes the full settings row for the user.
func (a *SettingsAdapter) Upsert(ctx context.Context, settings *domain.SilenceSettings) error {
	ranges := settings.Ranges
	if ranges == nil {
		ranges = []domain.SilenceRange{}
	}
	rangesBytes, err := json.Marshal(ranges)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO silence_settings (user_id, enabled, ranges, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    ranges = EXCLUDED.ranges,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = a.db.ExecContext(ctx, query, settings.UserID, settings.Enabled, rangesBytes, settings.UpdatedAt)
	return err
}

// Ensure interface compliance
var _ domain.SilenceRepository = (*SettingsAdapter)(nil)
