package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"recap_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ThreadAdapter implements domain.ThreadRepository using PostgreSQL.
type ThreadAdapter struct {
	db *sqlx.DB
}

// NewThreadAdapter creates a new thread status adapter.
func NewThreadAdapter(db *sqlx.DB) *ThreadAdapter {
	return &ThreadAdapter{db: db}
}

type threadRow struct {
	ID             int64          `db:"id"`
	UserID         uuid.UUID      `db:"user_id"`
	AccountID      sql.NullString `db:"account_id"`
	ThreadID       string         `db:"thread_id"`
	Subject        sql.NullString `db:"subject"`
	Status         string         `db:"status"`
	WaitingSince   sql.NullTime   `db:"waiting_since"`
	LastActivityAt time.Time      `db:"last_activity_at"`
	LastUpdatedAt  time.Time      `db:"last_updated_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *threadRow) toDomain() *domain.ThreadStatus {
	t := &domain.ThreadStatus{
		ID:             r.ID,
		UserID:         r.UserID,
		ThreadID:       r.ThreadID,
		Status:         domain.ThreadState(r.Status),
		LastActivityAt: r.LastActivityAt,
		LastUpdatedAt:  r.LastUpdatedAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.AccountID.Valid {
		t.AccountID = r.AccountID.String
	}
	if r.Subject.Valid {
		t.Subject = r.Subject.String
	}
	if r.WaitingSince.Valid {
		t.WaitingSince = &r.WaitingSince.Time
	}
	return t
}

// Get returns the tracked status, or nil for a thread never touched.
func (a *ThreadAdapter) Get(ctx context.Context, userID uuid.UUID, threadID string) (*domain.ThreadStatus, error) {
	var row threadRow
	query := `SELECT * FROM thread_statuses WHERE user_id = $1 AND thread_id = $2`
	err := a.db.GetContext(ctx, &row, query, userID, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Upsert atomically creates or updates the status row. The waiting_since
// transition happens inside the statement: entering WAITING sets it once,
// leaving WAITING clears it. Repeated WAITING writes keep the original
// timestamp.
func (a *ThreadAdapter) Upsert(ctx context.Context, status *domain.ThreadStatus, now time.Time) (*domain.ThreadStatus, error) {
	query := `
		INSERT INTO thread_statuses (user_id, account_id, thread_id, subject, status, waiting_since, last_activity_at, last_updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5,
			CASE WHEN $5 = 'WAITING' THEN $6::timestamptz ELSE NULL END,
			$6, $6, $6)
		ON CONFLICT (user_id, thread_id) DO UPDATE
		SET status = EXCLUDED.status,
		    subject = COALESCE(NULLIF(EXCLUDED.subject, ''), thread_statuses.subject),
		    account_id = COALESCE(NULLIF(EXCLUDED.account_id, ''), thread_statuses.account_id),
		    waiting_since = CASE
		        WHEN EXCLUDED.status <> 'WAITING' THEN NULL
		        WHEN thread_statuses.waiting_since IS NULL THEN $6::timestamptz
		        ELSE thread_statuses.waiting_since
		    END,
		    last_updated_at = $6
		RETURNING *
	`

	var accountID, subject sql.NullString
	if status.AccountID != "" {
		accountID = sql.NullString{String: status.AccountID, Valid: true}
	}
	if status.Subject != "" {
		subject = sql.NullString{String: status.Subject, Valid: true}
	}

	var row threadRow
	err := a.db.GetContext(ctx, &row, query,
		status.UserID,
		accountID,
		status.ThreadID,
		subject,
		string(status.Status),
		now,
	)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Touch creates an OPEN record on first sight and bumps last_activity_at on
// subsequent sightings without changing the tracked status.
func (a *ThreadAdapter) Touch(ctx context.Context, userID uuid.UUID, accountID, threadID, subject string, now time.Time) error {
	query := `
		INSERT INTO thread_statuses (user_id, account_id, thread_id, subject, status, last_activity_at, last_updated_at, created_at)
		VALUES ($1, $2, $3, $4, 'OPEN', $5, $5, $5)
		ON CONFLICT (user_id, thread_id) DO UPDATE
		SET last_activity_at = GREATEST(thread_statuses.last_activity_at, $5),
		    subject = COALESCE(NULLIF(EXCLUDED.subject, ''), thread_statuses.subject)
	`

	var acc, subj sql.NullString
	if accountID != "" {
		acc = sql.NullString{String: accountID, Valid: true}
	}
	if subject != "" {
		subj = sql.NullString{String: subject, Valid: true}
	}

	_, err := a.db.ExecContext(ctx, query, userID, acc, threadID, subj, now)
	return err
}

// ListByStatus returns tracked threads, optionally filtered by state, most
// recently active first.
func (a *ThreadAdapter) ListByStatus(ctx context.Context, userID uuid.UUID, status *domain.ThreadState, limit int) ([]*domain.ThreadStatus, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := `SELECT * FROM thread_statuses WHERE user_id = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND status = $2 ORDER BY last_activity_at DESC LIMIT $3`
		args = append(args, string(*status), limit)
	} else {
		query += ` ORDER BY last_activity_at DESC LIMIT $2`
		args = append(args, limit)
	}

	var rows []threadRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	threads := make([]*domain.ThreadStatus, len(rows))
	for i, row := range rows {
		threads[i] = row.toDomain()
	}
	return threads, nil
}

// ListWaiting returns all WAITING threads, oldest waiting first.
func (a *ThreadAdapter) ListWaiting(ctx context.Context, userID uuid.UUID) ([]*domain.ThreadStatus, error) {
	var rows []threadRow
	query := `SELECT * FROM thread_statuses WHERE user_id = $1 AND status = 'WAITING' ORDER BY waiting_since ASC`
	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	threads := make([]*domain.ThreadStatus, len(rows))
	for i, row := range rows {
		threads[i] = row.toDomain()
	}
	return threads, nil
}

// CountByStatus returns thread counts per state.
func (a *ThreadAdapter) CountByStatus(ctx context.Context, userID uuid.UUID) (map[domain.ThreadState]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM thread_statuses WHERE user_id = $1 GROUP BY status`
	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	counts := make(map[domain.ThreadState]int, len(rows))
	for _, row := range rows {
		counts[domain.ThreadState(row.Status)] = row.Count
	}
	return counts, nil
}

// Ensure interface compliance
var _ domain.ThreadRepository = (*ThreadAdapter)(nil)
