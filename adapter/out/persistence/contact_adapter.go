package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ContactAdapter implements domain.ContactRepository using PostgreSQL.
type ContactAdapter struct {
	db *sqlx.DB
}

// NewContactAdapter creates a new contact knowledge-base adapter.
func NewContactAdapter(db *sqlx.DB) *ContactAdapter {
	return &ContactAdapter{db: db}
}

type vipRow struct {
	ID        int64     `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Label     string    `db:"label"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *vipRow) toDomain() *domain.VipEntry {
	return &domain.VipEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		Label:     r.Label,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
	}
}

type aliasRow struct {
	ID          int64     `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	Key         string    `db:"key"`
	Value       string    `db:"value"`
	Confidence  float64   `db:"confidence"`
	AutoCreated bool      `db:"auto_created"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *aliasRow) toDomain() *domain.AliasEntry {
	return &domain.AliasEntry{
		ID:          r.ID,
		UserID:      r.UserID,
		Key:         r.Key,
		Value:       r.Value,
		Confidence:  r.Confidence,
		AutoCreated: r.AutoCreated,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type vendorRow struct {
	ID        int64          `db:"id"`
	UserID    uuid.UUID      `db:"user_id"`
	Name      string         `db:"name"`
	Domains   pq.StringArray `db:"domains"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *vendorRow) toDomain() *domain.VendorEntry {
	return &domain.VendorEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Domains:   []string(r.Domains),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ===== VIPs =====

// ListVips returns the user's VIP contacts, newest first.
func (a *ContactAdapter) ListVips(ctx context.Context, userID uuid.UUID) ([]*domain.VipEntry, error) {
	var rows []vipRow
	query := `SELECT * FROM memory_vips WHERE user_id = $1 ORDER BY created_at DESC`
	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	vips := make([]*domain.VipEntry, len(rows))
	for i, row := range rows {
		vips[i] = row.toDomain()
	}
	return vips, nil
}

// CreateVip inserts a VIP entry. Duplicate email for the same user maps to
// ALREADY_EXISTS.
func (a *ContactAdapter) CreateVip(ctx context.Context, entry *domain.VipEntry) error {
	query := `
		INSERT INTO memory_vips (user_id, label, email, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := a.db.QueryRowContext(ctx, query, entry.UserID, entry.Label, strings.ToLower(entry.Email), entry.CreatedAt).
		Scan(&entry.ID)
	if isUniqueViolation(err) {
		return apperr.AlreadyExists("vip")
	}
	return err
}

// DeleteVip removes a VIP entry owned by the user.
func (a *ContactAdapter) DeleteVip(ctx context.Context, userID uuid.UUID, id int64) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM memory_vips WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("vip")
	}
	return nil
}

// ===== Aliases =====

// ListAliases returns all aliases for the user.
func (a *ContactAdapter) ListAliases(ctx context.Context, userID uuid.UUID) ([]*domain.AliasEntry, error) {
	var rows []aliasRow
	query := `SELECT * FROM memory_aliases WHERE user_id = $1 ORDER BY key`
	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	aliases := make([]*domain.AliasEntry, len(rows))
	for i, row := range rows {
		aliases[i] = row.toDomain()
	}
	return aliases, nil
}

// GetAlias looks up an alias by its case-insensitive key. Returns nil for an
// unknown key.
func (a *ContactAdapter) GetAlias(ctx context.Context, userID uuid.UUID, key string) (*domain.AliasEntry, error) {
	var row aliasRow
	query := `SELECT * FROM memory_aliases WHERE user_id = $1 AND key = $2`
	err := a.db.GetContext(ctx, &row, query, userID, strings.ToLower(key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// UpsertAlias creates or updates an alias. A manual write always replaces the
// stored value; an auto-created write only replaces another auto-created one,
// so confirmed aliases are never silently overwritten by heuristics.
func (a *ContactAdapter) UpsertAlias(ctx context.Context, entry *domain.AliasEntry) error {
	query := `
		INSERT INTO memory_aliases (user_id, key, value, confidence, auto_created, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, key) DO UPDATE
		SET value = EXCLUDED.value,
		    confidence = EXCLUDED.confidence,
		    auto_created = EXCLUDED.auto_created,
		    updated_at = EXCLUDED.updated_at
		WHERE memory_aliases.auto_created = true OR EXCLUDED.auto_created = false
		RETURNING id, created_at, updated_at
	`
	err := a.db.QueryRowContext(ctx, query,
		entry.UserID,
		strings.ToLower(entry.Key),
		entry.Value,
		entry.Confidence,
		entry.AutoCreated,
		entry.UpdatedAt,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Auto-created write skipped by a confirmed alias. Hand back the
		// stored row so the caller sees what actually holds.
		existing, getErr := a.GetAlias(ctx, entry.UserID, entry.Key)
		if getErr != nil {
			return getErr
		}
		if existing != nil {
			*entry = *existing
		}
		return nil
	}
	return err
}

// DeleteAlias removes an alias owned by the user.
func (a *ContactAdapter) DeleteAlias(ctx context.Context, userID uuid.UUID, id int64) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM memory_aliases WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("alias")
	}
	return nil
}

// ===== Vendors =====

// ListVendors returns all recognized vendors for the user.
func (a *ContactAdapter) ListVendors(ctx context.Context, userID uuid.UUID) ([]*domain.VendorEntry, error) {
	var rows []vendorRow
	query := `SELECT * FROM memory_vendors WHERE user_id = $1 ORDER BY name`
	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	vendors := make([]*domain.VendorEntry, len(rows))
	for i, row := range rows {
		vendors[i] = row.toDomain()
	}
	return vendors, nil
}

// UpsertVendor creates or updates a vendor, keyed by (user_id, name).
func (a *ContactAdapter) UpsertVendor(ctx context.Context, entry *domain.VendorEntry) error {
	domains := make([]string, len(entry.Domains))
	for i, d := range entry.Domains {
		domains[i] = strings.ToLower(strings.TrimPrefix(d, "@"))
	}

	query := `
		INSERT INTO memory_vendors (user_id, name, domains, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, name) DO UPDATE
		SET domains = EXCLUDED.domains,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	return a.db.QueryRowContext(ctx, query, entry.UserID, entry.Name, pq.Array(domains), entry.UpdatedAt).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
}

// DeleteVendor removes a vendor owned by the user.
func (a *ContactAdapter) DeleteVendor(ctx context.Context, userID uuid.UUID, id int64) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM memory_vendors WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("vendor")
	}
	return nil
}

// Stats counts knowledge-base entries per category.
func (a *ContactAdapter) Stats(ctx context.Context, userID uuid.UUID) (*domain.MemoryStats, error) {
	var stats domain.MemoryStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM memory_vips WHERE user_id = $1) AS vips,
			(SELECT COUNT(*) FROM memory_aliases WHERE user_id = $1) AS aliases,
			(SELECT COUNT(*) FROM memory_vendors WHERE user_id = $1) AS vendors
	`
	if err := a.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ensure interface compliance
var _ domain.ContactRepository = (*ContactAdapter)(nil)
